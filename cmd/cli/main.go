// Command batchrpc 批量 JSON-RPC 命令行客户端
package main

func main() {
	Execute()
}
