package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// configCmd 配置相关命令
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "查看与生成配置文件",
}

// configShowCmd 输出生效的配置
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "显示生效的配置",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return formatter.Print(cfg)
	},
}

// configInitCmd 写出当前生效的配置
var configInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "生成配置文件 (.json|.yaml)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Save(args[0]); err != nil {
			return err
		}
		formatter.PrintInfo(fmt.Sprintf("配置已写入 %s", args[0]))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
