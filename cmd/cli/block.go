package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weisyn/batchrpc/client/core/commands"
	"github.com/weisyn/batchrpc/client/core/rpc"
	"github.com/weisyn/batchrpc/pkg/types"
)

var blockFullTx bool // 是否包含完整交易

// blockCmd 区块相关命令
var blockCmd = &cobra.Command{
	Use:   "block",
	Short: "查询区块信息",
}

// blockGetCmd 按高度或标签获取区块，多个参数在同一批次中查询
var blockGetCmd = &cobra.Command{
	Use:   "get <number|tag>...",
	Short: "获取区块",
	Long:  "按高度 (十进制或 0x 十六进制) 或标签 (latest|pending|earliest|safe|finalized) 获取区块",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		calls := make([]rpc.Descriptor, 0, len(args))
		for _, arg := range args {
			tag, err := types.ParseBlockTag(arg)
			if err != nil {
				return fmt.Errorf("无效的区块参数 %q: %w", arg, err)
			}
			calls = append(calls, commands.GetBlockByNumber(tag, blockFullTx))
		}
		return runCalls(cmd.Context(), calls...)
	},
}

// blockNumberCmd 最新高度
var blockNumberCmd = &cobra.Command{
	Use:   "number",
	Short: "查询最新区块高度",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCalls(cmd.Context(), commands.BlockNumber())
	},
}

func init() {
	blockGetCmd.Flags().BoolVar(&blockFullTx, "full", false, "返回完整交易对象")

	blockCmd.AddCommand(blockGetCmd)
	blockCmd.AddCommand(blockNumberCmd)
}
