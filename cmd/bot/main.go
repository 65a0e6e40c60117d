package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"publishbot/internal/app"
	"publishbot/internal/config"
)

const defaultConfigPath = "./config.json"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", defaultConfigPath, "path to config (json or yaml)")
	flag.Parse()

	if _, err := config.LoadDotEnv(); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfgm := config.NewConfigManager(cfgPath)
	// Without an explicit -config the bot can run from env vars alone.
	cfgm.SetOptional(cfgPath == defaultConfigPath)

	a, err := app.New(cfgm)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		_ = a.Stop(context.Background(), app.StopFatalError)
		os.Exit(1)
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)

	if err := a.Err(); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}
