package main

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/weisyn/batchrpc/client/core/commands"
	"github.com/weisyn/batchrpc/client/core/contract"
	"github.com/weisyn/batchrpc/client/core/rpc"
	"github.com/weisyn/batchrpc/pkg/types"
)

var (
	contractSolc     string
	contractOptimize bool
	contractFrom     string
	contractBlock    string
	contractData     string
)

// contractCmd 合约相关命令
var contractCmd = &cobra.Command{
	Use:   "contract",
	Short: "编译与只读调用合约",
}

// contractCompileCmd 调用本地 solc 编译合约
var contractCompileCmd = &cobra.Command{
	Use:   "compile <file.sol>",
	Short: "编译 Solidity 合约",
	Long:  "调用本地 solc 编译合约，输出每个合约的 ABI 与字节码",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		compiler := contract.NewCompiler(contractSolc, logger)
		result, err := compiler.CompileFile(cmd.Context(), args[0], contractOptimize)
		if err != nil {
			return err
		}
		if !result.Success {
			for _, line := range result.Stderr {
				formatter.PrintWarning(line)
			}
			return fmt.Errorf("编译失败: %s", strings.Join(result.Errors, "; "))
		}
		return formatter.Print(result)
	},
}

// contractCallCmd 按函数签名构造 calldata 并以 eth_call 执行，多个目标地址共用一个批次
var contractCallCmd = &cobra.Command{
	Use:   "call <signature> <address>...",
	Short: "只读调用合约函数",
	Long: `以 eth_call 调用无参数的合约函数，例如:
  batchrpc contract call "totalSupply()" 0xToken1 0xToken2

使用 --data 传入完整 calldata 时忽略签名。`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, err := types.ParseBlockTag(contractBlock)
		if err != nil {
			return err
		}
		data := hexutil.Bytes(commands.Selector(args[0]))
		if contractData != "" {
			data, err = hexutil.Decode(contractData)
			if err != nil {
				return fmt.Errorf("无效的 calldata: %w", err)
			}
		}
		var from *common.Address
		if contractFrom != "" {
			addrs, err := parseAddresses([]string{contractFrom})
			if err != nil {
				return err
			}
			from = &addrs[0]
		}
		targets, err := parseAddresses(args[1:])
		if err != nil {
			return err
		}

		calls := make([]rpc.Descriptor, 0, len(targets))
		for _, to := range targets {
			calls = append(calls, commands.Call(commands.CallMsg{From: from, To: to, Data: data}, tag))
		}
		return runCalls(cmd.Context(), calls...)
	},
}

func init() {
	contractCompileCmd.Flags().StringVar(&contractSolc, "solc", "solc", "solc 可执行文件")
	contractCompileCmd.Flags().BoolVar(&contractOptimize, "optimize", false, "启用优化器")

	contractCallCmd.Flags().StringVar(&contractFrom, "from", "", "调用者地址")
	contractCallCmd.Flags().StringVar(&contractBlock, "block", string(types.Latest), "查询的区块 (高度或标签)")
	contractCallCmd.Flags().StringVar(&contractData, "data", "", "完整 calldata (0x 十六进制)")

	contractCmd.AddCommand(contractCompileCmd)
	contractCmd.AddCommand(contractCallCmd)
}
