// Command pbx runs the PBX switch: it listens for TU client connections on
// the configured port and, optionally, for admin monitor connections.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sebas/pbx/internal/banner"
	"github.com/sebas/pbx/internal/logger"
	"github.com/sebas/pbx/internal/pbx/admin"
	"github.com/sebas/pbx/internal/pbx/config"
	"github.com/sebas/pbx/internal/pbx/core"
	"github.com/sebas/pbx/internal/pbx/server"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pbx:", err)
		fmt.Fprintln(os.Stderr, "usage: pbx -p <port> [-bind addr] [-extensions N] [-loglevel level] [-admin addr]")
		return 2
	}

	logger.Init(os.Stdout)
	logger.SetLevel(cfg.LogLevel)

	banner.Fprint(os.Stdout, "PBX Switch", []banner.ConfigLine{
		{Label: "port", Value: fmt.Sprintf("%d", cfg.Port)},
		{Label: "bind", Value: cfg.BindAddr},
		{Label: "extensions", Value: fmt.Sprintf("%d", cfg.MaxExtensions)},
		{Label: "loglevel", Value: cfg.LogLevel},
		{Label: "admin", Value: adminLabel(cfg.AdminAddr)},
	})

	pbx := core.New(cfg.MaxExtensions, slog.Default())
	srv := server.New(pbx, slog.Default())

	var mon *admin.Monitor
	if cfg.AdminAddr != "" {
		mon = admin.New(pbx, slog.Default())
		go func() {
			if err := mon.Start(cfg.AdminAddr); err != nil {
				slog.Error("admin monitor stopped", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.Port))
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			slog.Error("listener failed", "error", err)
		}
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if mon != nil {
		_ = mon.Close()
	}
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		return 1
	}

	<-errCh // wait for Start to return after the listener closes
	slog.Info("shutdown complete")
	return 0
}

func adminLabel(addr string) string {
	if addr == "" {
		return "disabled"
	}
	return addr
}
