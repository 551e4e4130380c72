// Package output 提供命令行输出格式化
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
)

// Format 输出格式
type Format string

const (
	// FormatJSON JSON格式（默认）
	FormatJSON Format = "json"
	// FormatPretty 美化JSON格式
	FormatPretty Format = "pretty"
	// FormatTable 表格格式
	FormatTable Format = "table"
	// FormatText 纯文本格式
	FormatText Format = "text"
)

// ParseFormat 解析格式名，空串为默认 JSON
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatPretty, FormatTable, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (json|pretty|table|text)", s)
	}
}

// Formatter 输出格式化器
//
// 数据写入 writer，提示信息写入 logWriter，避免污染 JSON 输出。
type Formatter struct {
	format    Format
	writer    io.Writer
	logWriter io.Writer
	silent    bool
}

// NewFormatter 创建格式化器
func NewFormatter(format Format, writer io.Writer) *Formatter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Formatter{
		format:    format,
		writer:    writer,
		logWriter: os.Stderr,
	}
}

// SetLogWriter 设置提示信息输出目标（默认 stderr）
func (f *Formatter) SetLogWriter(writer io.Writer) {
	if writer == nil {
		writer = os.Stderr
	}
	f.logWriter = writer
}

// SetSilent 设置静默模式
func (f *Formatter) SetSilent(silent bool) {
	f.silent = silent
}

// Print 按格式打印任意数据
func (f *Formatter) Print(data interface{}) error {
	if f.silent {
		return nil
	}
	switch f.format {
	case FormatPretty:
		return f.printJSON(data, true)
	case FormatTable:
		return f.printTable(data)
	case FormatText:
		return f.printText(data)
	default:
		return f.printJSON(data, false)
	}
}

// BatchRow 批次中单个调用的输出行
type BatchRow struct {
	ID     int         `json:"id"`
	Method string      `json:"method"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// PrintBatch 打印批次结果；表格与文本格式按 id 排序输出每个调用
func (f *Formatter) PrintBatch(rows []BatchRow) error {
	if f.silent {
		return nil
	}
	sorted := make([]BatchRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	switch f.format {
	case FormatTable:
		tw := tabwriter.NewWriter(f.writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tMETHOD\tRESULT")
		for _, row := range sorted {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", row.ID, row.Method, rowValue(row))
		}
		return tw.Flush()
	case FormatText:
		for _, row := range sorted {
			if _, err := fmt.Fprintf(f.writer, "%s: %s\n", row.Method, rowValue(row)); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
		}
		return nil
	default:
		return f.Print(sorted)
	}
}

func rowValue(row BatchRow) string {
	if row.Error != "" {
		return "error: " + row.Error
	}
	return formatValue(row.Result)
}

func (f *Formatter) printJSON(data interface{}, pretty bool) error {
	var (
		out []byte
		err error
	)
	if pretty {
		out, err = json.MarshalIndent(data, "", "  ")
	} else {
		out, err = json.Marshal(data)
	}
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if _, err := fmt.Fprintln(f.writer, string(out)); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// printTable 两列键值表；非 map 数据降级为美化 JSON
func (f *Formatter) printTable(data interface{}) error {
	m, ok := toMap(data)
	if !ok {
		return f.printJSON(data, true)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(f.writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tVALUE")
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%s\n", k, formatValue(m[k]))
	}
	return tw.Flush()
}

// toMap 将 map 或结构体（经 JSON）转换为键值表
func toMap(data interface{}) (map[string]interface{}, bool) {
	if m, ok := data.(map[string]interface{}); ok {
		return m, true
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

func (f *Formatter) printText(data interface{}) error {
	if _, err := fmt.Fprintln(f.writer, formatValue(data)); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// PrintInfo 打印提示信息
func (f *Formatter) PrintInfo(message string) {
	if f.silent {
		return
	}
	_, _ = fmt.Fprintf(f.logWriter, "ℹ️  %s\n", message)
}

// PrintWarning 打印警告
func (f *Formatter) PrintWarning(message string) {
	if f.silent {
		return
	}
	_, _ = fmt.Fprintf(f.logWriter, "⚠️  %s\n", message)
}

// PrintError 打印错误（静默模式下仍输出）
func (f *Formatter) PrintError(err error) {
	_, _ = fmt.Fprintf(f.logWriter, "❌ Error: %v\n", err)
}

// formatValue 单元格文本
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "-"
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case json.RawMessage:
		return string(v)
	case bool, int, int64, uint, uint64:
		return fmt.Sprintf("%v", v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
