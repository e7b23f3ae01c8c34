package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/kit/log"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/hashicorp/consul/api"
	"github.com/ichigozero/todokit/tasksvc/client"
	"github.com/ichigozero/todokit/tasksvc/config"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskservice"
	"github.com/ichigozero/todokit/tasksvc/ui"
	"github.com/spf13/pflag"
)

func main() {
	cfg, err := config.LoadClient(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := log.NewNopLogger()
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		logger = log.NewLogfmtLogger(log.NewSyncWriter(f))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	var service taskservice.Service
	if cfg.Consul.Addr != "" {
		consulConfig := api.DefaultConfig()
		consulConfig.Address = cfg.Consul.Addr
		consulClient, err := api.NewClient(consulConfig)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		service, err = client.New(consulsd.NewClient(consulClient), logger, cfg.Retry.Max, cfg.Retry.Timeout)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	} else {
		service, err = client.NewDirect(cfg.API.URL, logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ui.Run(ctx, service); err != nil && !errors.Is(err, context.Canceled) {
		logger.Log("exit", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
