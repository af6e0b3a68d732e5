package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// 构建期通过 -ldflags 注入
var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "打印版本信息",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Printf("obelisk %s\n", version)
			fmt.Printf("  commit:  %s\n", gitCommit)
			fmt.Printf("  built:   %s\n", buildTime)
			fmt.Printf("  go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
