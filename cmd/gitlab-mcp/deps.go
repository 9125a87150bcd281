package main

import (
	"fmt"
	"os"

	"github.com/standardbeagle/gitlab-mcp/internal/authclient"
	"github.com/standardbeagle/gitlab-mcp/internal/authserver"
	"github.com/standardbeagle/gitlab-mcp/internal/browser"
	"github.com/standardbeagle/gitlab-mcp/internal/config"
	"github.com/standardbeagle/gitlab-mcp/internal/credential"
	"github.com/standardbeagle/gitlab-mcp/internal/logging"
	"github.com/standardbeagle/gitlab-mcp/internal/session"
	"github.com/standardbeagle/gitlab-mcp/internal/token"
)

// app holds everything the commands share, built from one resolved config.
type app struct {
	cfg    *config.Config
	logger logging.Logger
	store  credential.Store
	tokens *token.Service
}

// loadApp resolves the config for the current directory and builds the
// token service. Errors are fatal.
func loadApp() *app {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting current directory: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	mode, err := credential.ParseMode(cfg.Storage.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error in storage config: %v\n", err)
		os.Exit(1)
	}

	store, err := credential.New(mode, credential.Options{
		Account: cfg.Storage.Account,
		Service: cfg.Storage.Service,
		Path:    cfg.Storage.Path,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening credential store: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Default()
	tokens := token.NewService(token.Options{
		AuthServiceURL:  cfg.AuthServiceURL,
		QRCodeURL:       cfg.QRCodeURL,
		CallbackURL:     cfg.CallbackURL,
		ValidateTimeout: cfg.Timeouts.Validate,
	}, store, browser.NewSystem(cfg.Browser), logger)

	return &app{cfg: cfg, logger: logger, store: store, tokens: tokens}
}

func (a *app) newAuthServer() *authserver.Server {
	registry := session.NewRegistry(
		session.WithTTL(a.cfg.Timeouts.SessionTTL),
		session.WithSweepInterval(a.cfg.Timeouts.Sweep),
		session.WithLogger(a.logger),
	)
	return authserver.New(registry, a.tokens, authserver.Options{
		EditorScheme: a.cfg.EditorScheme,
		Logger:       a.logger,
	})
}

func (a *app) newAuthClient() *authclient.Client {
	return authclient.New(a.cfg.TokenServerURL(), authclient.Options{
		PollInterval:   a.cfg.Timeouts.PollInterval,
		Timeout:        a.cfg.Timeouts.Auth,
		RequestTimeout: a.cfg.Timeouts.Request,
		StartTimeout:   a.cfg.Timeouts.Start,
		Logger:         a.logger,
	})
}
