package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weisyn/batchrpc/client"
	"github.com/weisyn/batchrpc/client/core/commands"
	"github.com/weisyn/batchrpc/client/core/transport"
)

var eventsLimit int // 收到多少条后退出，0 表示不限

// eventsCmd 事件相关命令
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "订阅实时事件 (WebSocket)",
}

// eventsSubscribeCmd 订阅事件
var eventsSubscribeCmd = &cobra.Command{
	Use:   "subscribe <newHeads|newPendingTransactions>",
	Short: "订阅实时事件流",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := args[0]
		switch kind {
		case commands.SubscribeNewHeads, commands.SubscribeNewPendingTransactions:
		default:
			return fmt.Errorf("未知的事件类型: %s (可用: %s, %s)",
				kind, commands.SubscribeNewHeads, commands.SubscribeNewPendingTransactions)
		}

		ctx := cmd.Context()
		c, ws, err := getWSClient(ctx)
		if err != nil {
			return err
		}
		defer closeClient(c)

		subID, ok, err := client.Execute(ctx, c, commands.Subscribe(kind))
		if err != nil {
			return fmt.Errorf("订阅失败: %w", err)
		}
		if !ok {
			return fmt.Errorf("订阅失败: 连接中断")
		}
		sub, err := ws.Listen(subID)
		if err != nil {
			return err
		}
		defer unsubscribe(c, sub)

		formatter.PrintInfo(fmt.Sprintf("已订阅 %s (id %s)，按 Ctrl+C 退出", kind, subID))
		return streamNotifications(ctx, kind, sub)
	},
}

func init() {
	eventsSubscribeCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 0, "收到指定条数后退出")
	eventsCmd.AddCommand(eventsSubscribeCmd)
}

func streamNotifications(ctx context.Context, kind string, sub *transport.Subscription) error {
	received := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-sub.Err():
			if ok && err != nil {
				return fmt.Errorf("订阅中断: %w", err)
			}
			return nil
		case n, ok := <-sub.Notifications():
			if !ok {
				return nil
			}
			if rpcErr := n.ExtractError(); rpcErr != nil {
				formatter.PrintWarning(fmt.Sprintf("推送错误: %v", rpcErr))
				continue
			}
			if err := printNotification(kind, n); err != nil {
				return err
			}
			received++
			if eventsLimit > 0 && received >= eventsLimit {
				return nil
			}
		}
	}
}

func printNotification(kind string, n transport.Notification) error {
	if kind == commands.SubscribeNewHeads {
		head, err := n.BlockResult()
		if err != nil {
			return err
		}
		return formatter.Print(map[string]interface{}{
			"number":    head.Number,
			"hash":      head.Hash.Hex(),
			"timestamp": head.Timestamp,
			"gas_used":  head.GasUsed,
		})
	}
	hash, err := n.StringResult()
	if err != nil {
		return err
	}
	return formatter.Print(map[string]interface{}{"tx_hash": hash})
}

// unsubscribe 停止接收并尽力通知节点取消订阅
func unsubscribe(c *client.Client, sub *transport.Subscription) {
	sub.Close()
	if dropped := sub.Dropped(); dropped > 0 {
		formatter.PrintWarning(fmt.Sprintf("缓冲已满，丢弃了 %d 条推送", dropped))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, _, err := client.Execute(ctx, c, commands.Unsubscribe(sub.ID())); err != nil {
		logger.Debugf("取消订阅 %s 失败: %v", sub.ID(), err)
	}
}
