// Package contract 封装外部 solc 编译器
package contract

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	logimpl "github.com/weisyn/batchrpc/internal/core/infrastructure/log"
	"github.com/weisyn/batchrpc/pkg/interfaces/infrastructure/log"
)

// 源文件在临时目录中的名字
const sourceFile = "contract.sol"

// Compiler solc 子进程封装
type Compiler struct {
	solc   string
	logger log.Logger
}

// NewCompiler 创建编译器；solc 为可执行文件路径或 PATH 中的名字
func NewCompiler(solc string, logger log.Logger) *Compiler {
	return &Compiler{
		solc:   solc,
		logger: logimpl.NewModuleLogger(logger, "contract"),
	}
}

// CompiledContract 单个合约的编译产物
type CompiledContract struct {
	Name string          `json:"name"`
	Bin  hexutil.Bytes   `json:"bin,omitempty"`
	ABI  json.RawMessage `json:"abi,omitempty"`
}

// Result 一次编译的结果
//
// Success 为 false 表示 solc 以非零状态退出，此时 Contracts 为空，原因见 Stderr。
type Result struct {
	Success   bool               `json:"success"`
	Stdout    []string           `json:"stdout"`
	Stderr    []string           `json:"stderr"`
	Errors    []string           `json:"errors,omitempty"`
	Contracts []CompiledContract `json:"contracts"`
}

// Names 合约名列表
func (r *Result) Names() []string {
	names := make([]string, 0, len(r.Contracts))
	for _, c := range r.Contracts {
		names = append(names, c.Name)
	}
	return names
}

// Contract 按名称查找
func (r *Result) Contract(name string) (*CompiledContract, bool) {
	for i := range r.Contracts {
		if r.Contracts[i].Name == name {
			return &r.Contracts[i], true
		}
	}
	return nil, false
}

// CompileFile 编译源文件
func (c *Compiler) CompileFile(ctx context.Context, path string, optimize bool) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()
	return c.Compile(ctx, f, optimize)
}

// CompileString 编译源码文本
func (c *Compiler) CompileString(ctx context.Context, source string, optimize bool) (*Result, error) {
	return c.Compile(ctx, strings.NewReader(source), optimize)
}

// Compile 在临时目录中运行 solc 并收集产物，结束后删除临时目录
//
// 只有 solc 无法启动或临时目录操作失败时返回错误；编译失败体现在 Result.Success。
func (c *Compiler) Compile(ctx context.Context, source io.Reader, optimize bool) (*Result, error) {
	dir, err := os.MkdirTemp("", "batchrpc-compile")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			c.logger.Warnf("清理临时目录失败 %s: %v", dir, err)
		}
	}()

	src, err := os.Create(filepath.Join(dir, sourceFile))
	if err != nil {
		return nil, fmt.Errorf("create source file: %w", err)
	}
	if _, err := io.Copy(src, source); err != nil {
		src.Close()
		return nil, fmt.Errorf("write source file: %w", err)
	}
	if err := src.Close(); err != nil {
		return nil, fmt.Errorf("close source file: %w", err)
	}

	args := []string{}
	if optimize {
		args = append(args, "--optimize")
	}
	args = append(args, "--abi", "--bin", "--output-dir", "./", "./"+sourceFile)

	cmd := exec.CommandContext(ctx, c.solc, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debugf("执行 %s %s", c.solc, strings.Join(args, " "))
	runErr := cmd.Run()

	result := &Result{
		Stdout: lines(&stdout),
		Stderr: lines(&stderr),
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) || ctx.Err() != nil {
			return nil, fmt.Errorf("run solc: %w", runErr)
		}
		c.logger.Warnf("solc 编译失败: %v", runErr)
		return result, nil
	}

	result.Success = true
	result.Contracts, result.Errors = collect(dir)
	return result, nil
}

// collect 读取目录中的 *.bin 与同名 *.abi
func collect(dir string) ([]CompiledContract, []string) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.bin"))
	if err != nil {
		return nil, []string{err.Error()}
	}
	sort.Strings(matches)

	var errs []string
	contracts := make([]CompiledContract, 0, len(matches))
	for _, binPath := range matches {
		name := strings.TrimSuffix(filepath.Base(binPath), ".bin")
		contract := CompiledContract{Name: name}

		if data, err := os.ReadFile(binPath); err != nil {
			errs = append(errs, err.Error())
		} else if hex := strings.Join(strings.Fields(string(data)), ""); hex != "" {
			bin, err := hexutil.Decode("0x" + hex)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s.bin: %v", name, err))
			}
			contract.Bin = bin
		}

		if data, err := os.ReadFile(filepath.Join(dir, name+".abi")); err != nil {
			errs = append(errs, err.Error())
		} else if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 {
			contract.ABI = json.RawMessage(trimmed)
		}

		contracts = append(contracts, contract)
	}
	return contracts, errs
}

func lines(buf *bytes.Buffer) []string {
	out := []string{}
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		out = append(out, scanner.Text())
	}
	return out
}
