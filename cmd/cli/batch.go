package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weisyn/batchrpc/client/core/commands"
	"github.com/weisyn/batchrpc/client/core/output"
	"github.com/weisyn/batchrpc/client/core/rpc"
)

var batchFile string

// callCmd 单个任意方法调用
var callCmd = &cobra.Command{
	Use:   "call <method> [param...]",
	Short: "调用任意 JSON-RPC 方法",
	Long: `调用任意 JSON-RPC 方法并输出原始结果

每个参数先按 JSON 解析，失败时作为字符串传递，例如:
  batchrpc call eth_getBalance 0xabc... latest
  batchrpc call eth_getBlockByNumber '"0x10"' false`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := make([]any, 0, len(args)-1)
		for _, arg := range args[1:] {
			params = append(params, parseParam(arg))
		}
		return runCalls(cmd.Context(), commands.Raw(args[0], params...))
	},
}

// batchCmd 从文件读取一组调用，作为一个批次发送
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "以单个批次发送文件中的调用",
	Long: `从 JSON 文件读取调用列表并作为一个批次发送

文件格式:
  [{"method": "eth_chainId"}, {"method": "eth_getBalance", "params": ["0x...", "latest"]}]

使用 --file - 从标准输入读取。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		calls, err := readBatchFile(batchFile)
		if err != nil {
			return err
		}
		return runCalls(cmd.Context(), calls...)
	},
}

func init() {
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "-", "调用列表文件")
}

// batchEntry 批次文件中的一项
type batchEntry struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

func readBatchFile(path string) ([]rpc.Descriptor, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = readAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("读取批次文件: %w", err)
	}

	var entries []batchEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("解析批次文件: %w", err)
	}
	if len(entries) == 0 {
		return nil, rpc.ErrEmptyBatch
	}
	calls := make([]rpc.Descriptor, 0, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.Method) == "" {
			return nil, fmt.Errorf("批次文件第 %d 项缺少 method", i)
		}
		calls = append(calls, commands.Raw(e.Method, e.Params...))
	}
	return calls, nil
}

// parseParam 先按 JSON 解析，失败时原样作为字符串
func parseParam(arg string) any {
	var v any
	if err := json.Unmarshal([]byte(arg), &v); err == nil {
		return v
	}
	return arg
}

// runCalls 以 HTTP 客户端执行一个批次并输出每个调用的结果
func runCalls(ctx context.Context, calls ...rpc.Descriptor) error {
	c, err := getClient()
	if err != nil {
		return err
	}
	defer closeClient(c)

	b := rpc.NewBatch()
	for _, call := range calls {
		if _, err := b.AddCall(call); err != nil {
			return err
		}
	}
	exec, err := c.Execute(ctx, b)
	if err != nil {
		return err
	}
	batchErr := exec.Wait()
	if v := exec.Violations(); v != nil {
		formatter.PrintWarning(fmt.Sprintf("节点回复存在协议违规: %v", v))
	}
	if err := formatter.PrintBatch(batchRows(b)); err != nil {
		return err
	}
	return batchErr
}

// batchRows 把批次中每个 Slot 的终态转换为输出行
func batchRows(b *rpc.Batch) []output.BatchRow {
	items := b.Items()
	rows := make([]output.BatchRow, 0, len(items))
	for _, item := range items {
		row := output.BatchRow{
			ID:     item.ID(),
			Method: item.Descriptor().Method(),
		}
		value, err := item.Result()
		if err != nil {
			row.Error = err.Error()
		} else {
			row.Result = value
		}
		rows = append(rows, row)
	}
	return rows
}
