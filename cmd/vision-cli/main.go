// cmd/vision-cli/main.go
package main

import (
	"os"

	"github.com/Corphon/LiveVision/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
