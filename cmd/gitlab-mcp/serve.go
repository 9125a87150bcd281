package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/gitlab-mcp/internal/server"
)

func cmdServe(args []string) {
	startupCheck := true

	for _, arg := range args {
		switch arg {
		case "--no-startup-check":
			startupCheck = false
		case "--help", "-h":
			printServeUsage()
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown option: %s\n\n", arg)
			printServeUsage()
			os.Exit(1)
		}
	}

	a := loadApp()

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	authSrv := a.newAuthServer()
	mcpSrv := server.New(a.newAuthClient(), a.logger)

	g, gctx := errgroup.WithContext(ctx)

	// If another instance owns the callback port, polling goes to it and
	// this process serves MCP only.
	l, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		a.logger.Warn("auth server address unavailable, using the running instance", "addr", a.cfg.ListenAddr, "error", err)
	} else {
		g.Go(func() error {
			return authSrv.Serve(gctx, l)
		})
	}

	g.Go(func() error {
		defer cancel()
		return mcpSrv.RunStdio(gctx)
	})

	if startupCheck {
		g.Go(func() error {
			outcome, err := a.tokens.CheckOnStartup(gctx)
			if err != nil {
				a.logger.Error("startup token check failed", "error", err)
				return nil
			}
			a.logger.Info("startup token check", "outcome", outcome.String())
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func printServeUsage() {
	fmt.Print(`gitlab-mcp serve - Start the MCP server

Usage:
  gitlab-mcp serve [options]

Options:
  --no-startup-check   Do not validate the stored token on startup
  --help, -h           Show this help

The MCP server speaks stdio. The local auth server listens on the callback
address (default localhost:4000) and serves:
  POST /auth/validate/start    Create a session and open the sign-in page
  GET  /auth/validate/status   Poll a session
  GET  /auth/callback          Identity provider redirect target
  GET  /health                 Liveness and session count

Configuration:
  1. User config: ~/.config/gitlab-mcp/config.kdl
  2. Project config: .gitlab-mcp.kdl (in current directory)
  3. Environment: GITLAB_MCP_* variables

  Later sources override earlier ones.
`)
}
