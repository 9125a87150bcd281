package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/standardbeagle/gitlab-mcp/internal/config"
	"github.com/standardbeagle/gitlab-mcp/internal/credential"
	"github.com/standardbeagle/gitlab-mcp/internal/logging"
	"github.com/standardbeagle/gitlab-mcp/internal/token"
)

func cmdAuthLogin(args []string) {
	currentPath := ""
	for _, arg := range args {
		switch {
		case arg == "--help" || arg == "-h":
			printAuthUsage()
			return
		case strings.HasPrefix(arg, "--path="):
			currentPath = strings.TrimPrefix(arg, "--path=")
		}
	}

	a := loadApp()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Serve the callback in-process unless a running server already has the port.
	serveCtx, stopServe := context.WithCancel(ctx)
	served := make(chan error, 1)
	if l, err := net.Listen("tcp", a.cfg.ListenAddr); err == nil {
		go func() { served <- a.newAuthServer().Serve(serveCtx, l) }()
	} else {
		close(served)
	}

	fmt.Println("Opening the sign-in page in your browser...")
	result, err := a.newAuthClient().Run(ctx, currentPath)
	stopServe()
	<-served

	if err != nil {
		fmt.Fprintf(os.Stderr, "Authentication error: %v\n", err)
		os.Exit(1)
	}
	if !result.Success {
		fmt.Fprintf(os.Stderr, "Authentication failed: %s\n", result.Error)
		os.Exit(1)
	}
	fmt.Printf("Authenticated. Token stored (%s).\n", logging.Redact(result.Token))
}

func cmdAuthLogout(args []string) {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			printAuthUsage()
			return
		}
	}

	a := loadApp()
	if err := a.tokens.Logout(); err != nil {
		fmt.Fprintf(os.Stderr, "Error removing token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Logged out.")
}

func cmdAuthStatus(args []string) {
	offline := false
	for _, arg := range args {
		switch arg {
		case "--offline":
			offline = true
		case "--help", "-h":
			printAuthUsage()
			return
		}
	}

	a := loadApp()
	fmt.Printf("Store:  %v\n", a.store)

	tok, err := a.tokens.StoredToken()
	if errors.Is(err, credential.ErrNotFound) {
		fmt.Println("Token:  none")
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading token: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Token:  %s\n", logging.Redact(tok))

	if info := token.Inspect(tok); info.IsJWT {
		if info.Subject != "" {
			fmt.Printf("Subject: %s\n", info.Subject)
		}
		if !info.ExpiresAt.IsZero() {
			state := "valid"
			if info.Expired(time.Now()) {
				state = "expired"
			}
			fmt.Printf("Expires: %s (%s)\n", info.ExpiresAt.Local().Format(time.RFC3339), state)
		}
	}

	if offline {
		return
	}
	if a.tokens.Validate(context.Background(), tok) {
		fmt.Println("Remote: accepted")
	} else {
		fmt.Println("Remote: rejected, run 'gitlab-mcp auth login'")
	}
}

func cmdPaths(args []string) {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			fmt.Print(`gitlab-mcp paths - Show config and credential file paths

Usage:
  gitlab-mcp paths

Config file precedence (later overrides earlier):
  1. User config (~/.config/gitlab-mcp/config.kdl)
  2. Project config (.gitlab-mcp.kdl)
  3. GITLAB_MCP_* environment variables
`)
			return
		}
	}

	cwd, _ := os.Getwd()
	paths := config.ConfigPaths(cwd)
	paths["credentials"] = credential.DefaultFilePath()

	fmt.Println("File paths:")
	fmt.Printf("  User:        %s\n", paths["user"])
	fmt.Printf("  Project:     %s\n", paths["project"])
	fmt.Printf("  Credentials: %s\n", paths["credentials"])

	fmt.Println("\nFile status:")
	for _, name := range []string{"user", "project", "credentials"} {
		exists := "not found"
		if _, err := os.Stat(paths[name]); err == nil {
			exists = "exists"
		}
		fmt.Printf("  %-12s  %s\n", name+":", exists)
	}
}
