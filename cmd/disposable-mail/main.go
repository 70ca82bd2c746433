package main

import (
	"context"
	"fmt"
	"os"

	"tempmail/disposable/internal/cli"
	"tempmail/disposable/internal/config"
	"tempmail/disposable/internal/logger"
)

// main 解析子命令并以其退出码结束进程。
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(cli.ExitError)
	}

	log, err := logger.NewLogger(logger.FromConfig(cfg.Log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(cli.ExitError)
	}

	app := cli.New(cfg, cli.WithLogger(log))
	code := app.Execute(context.Background(), os.Args[1:])
	_ = log.Sync()
	os.Exit(code)
}
