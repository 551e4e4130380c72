package main

import (
	"github.com/spf13/cobra"

	"github.com/weisyn/batchrpc/client/core/commands"
)

// versionCmd 节点版本
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "查询节点客户端版本",
	Long:  "通过 web3_clientVersion 与 net_version 查询节点版本与网络 id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCalls(cmd.Context(),
			commands.ClientVersion(),
			commands.NetVersion(),
		)
	},
}

// chainCmd 链相关命令
var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "查询链状态",
	Long:  "查询链 id、同步状态、最新区块高度等",
}

// chainInfoCmd 以一个批次查询链的概况
var chainInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "查询链信息",
	Long:  "以单个批次查询链 id、最新区块高度、gas 价格、对等节点数与同步状态",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCalls(cmd.Context(),
			commands.ChainID(),
			commands.BlockNumber(),
			commands.GasPrice(),
			commands.NetPeerCount(),
			commands.NetListening(),
			commands.Syncing(),
		)
	},
}

// chainSyncingCmd 同步状态
var chainSyncingCmd = &cobra.Command{
	Use:   "syncing",
	Short: "查询同步状态",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCalls(cmd.Context(), commands.Syncing())
	},
}

func init() {
	chainCmd.AddCommand(chainInfoCmd)
	chainCmd.AddCommand(chainSyncingCmd)
}
