package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mehmetcc/billadmin/internal/cli"
	"go.uber.org/zap"
)

func main() {
	// init logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if err := cli.Execute(context.Background(), logger, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}
