package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/weisyn/batchrpc/client/core/commands"
	"github.com/weisyn/batchrpc/client/core/rpc"
	"github.com/weisyn/batchrpc/pkg/types"
)

var accountBlock string // 查询的区块

// accountCmd 账户相关命令
var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "查询账户状态",
}

// accountBalanceCmd 一个批次查询多个地址的余额与 nonce
var accountBalanceCmd = &cobra.Command{
	Use:   "balance <address>...",
	Short: "查询余额",
	Long:  "在同一批次中查询每个地址的余额 (eth_getBalance) 与 nonce (eth_getTransactionCount)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, err := types.ParseBlockTag(accountBlock)
		if err != nil {
			return err
		}
		addrs, err := parseAddresses(args)
		if err != nil {
			return err
		}
		calls := make([]rpc.Descriptor, 0, 2*len(addrs))
		for _, addr := range addrs {
			calls = append(calls,
				commands.GetBalance(addr, tag),
				commands.GetTransactionCount(addr, tag),
			)
		}
		return runCalls(cmd.Context(), calls...)
	},
}

// accountCodeCmd 合约代码
var accountCodeCmd = &cobra.Command{
	Use:   "code <address>",
	Short: "查询合约代码",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, err := types.ParseBlockTag(accountBlock)
		if err != nil {
			return err
		}
		addrs, err := parseAddresses(args)
		if err != nil {
			return err
		}
		return runCalls(cmd.Context(), commands.GetCode(addrs[0], tag))
	},
}

func init() {
	accountCmd.PersistentFlags().StringVar(&accountBlock, "block", string(types.Latest), "查询的区块 (高度或标签)")

	accountCmd.AddCommand(accountBalanceCmd)
	accountCmd.AddCommand(accountCodeCmd)
}

func parseAddresses(args []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(args))
	for _, arg := range args {
		if !common.IsHexAddress(arg) {
			return nil, fmt.Errorf("无效的地址: %s", arg)
		}
		out = append(out, common.HexToAddress(arg))
	}
	return out, nil
}
