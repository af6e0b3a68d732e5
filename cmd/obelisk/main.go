// obelisk 链状态核心节点
//
// 装配并运行分叉选择与链重组核心：BadgerDB 持久化、事件总线、
// 开发模式账本/验证器。对外协作者（P2P、RPC、真实账本）由
// 部署方以 fx 模块形式替换注入。
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "obelisk",
		Short:         "PoW 链状态核心（分叉选择与链重组）",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand())
	root.AddCommand(newVersionCommand())
	return root
}
