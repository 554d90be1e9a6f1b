package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"signdesk/go-client/internal/adapters/rpc"
	"signdesk/go-client/internal/app"
	"signdesk/go-client/internal/config"
	"signdesk/go-client/internal/docflow"
	"signdesk/go-client/internal/platform/privacylog"
	"signdesk/go-client/internal/registry"
	"signdesk/go-client/internal/session"
	"signdesk/go-client/internal/signlink"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	rpcAddr := flag.String("rpc-addr", "", "JSON-RPC listen address")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	dataDir := flag.String("data-dir", "", "Directory for daemon local data (optional)")
	rpcToken := flag.String("rpc-token", "", "RPC token for Authorization/X-Signdesk-RPC-Token (optional)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("signdesk-daemon version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *rpcToken != "" {
		_ = os.Setenv("SIGNDESK_RPC_TOKEN", *rpcToken)
	}

	logger := slog.New(privacylog.WrapHandler(slog.NewJSONHandler(os.Stderr, nil)))
	slog.SetDefault(logger)

	cfg := config.LoadFromPath(*configPath)
	if *rpcAddr != "" {
		cfg.RPCAddr = *rpcAddr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if cfg.DataDir == "" {
		if base, err := os.UserConfigDir(); err == nil {
			cfg.DataDir = filepath.Join(base, "signdesk")
		}
	}

	state := &session.StateStore{}
	if cfg.StateSecret == "" {
		logger.Warn("no state secret configured; session persistence disabled")
	} else {
		state.Configure(cfg.DataDir, cfg.StateSecret)
	}

	store := session.NewStore(session.Options{BaseURL: cfg.AuthBaseURL, State: state, Logger: logger})
	flow := docflow.NewClient(docflow.Options{BaseURL: cfg.DocsBaseURL, Session: store, Logger: logger})
	view := registry.NewView(registry.Options{
		BaseURL:    cfg.AuthBaseURL,
		Session:    store,
		Downloader: flow,
		Logger:     logger,
	})
	links := signlink.NewClient(signlink.Options{BaseURL: cfg.LinkBaseURL, Session: store, Logger: logger})
	svc := app.NewService(app.Dependencies{
		Session:  store,
		Docs:     flow,
		Links:    links,
		Registry: view,
		Logger:   logger,
	})

	srv := rpc.NewServer(cfg.RPCAddr, svc)
	log.Println("signdesk-daemon starting")
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("signdesk-daemon failed: %v", err)
	}
	log.Println("signdesk-daemon stopped")
}
