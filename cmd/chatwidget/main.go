package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatwidget/pkg/api"
	"chatwidget/pkg/chat"
	"chatwidget/pkg/config"
	"chatwidget/pkg/logging"
	"chatwidget/pkg/ui"
	"chatwidget/pkg/version"

	tea "charm.land/bubbletea/v2"
	"golang.org/x/term"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "print version information and exit")
		offline     = flag.Bool("offline", false, "answer from the built-in keyword table instead of the chat service")
		configPath  = flag.String("config", config.GetConfigPath(), "path to the config file")
		apiURL      = flag.String("api-url", "", "chat service base URL (overrides config)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info("chatwidget"))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *offline {
		cfg.Offline = true
	}
	if *apiURL != "" {
		cfg.API.BaseURL = *apiURL
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	if _, err := logging.Init(cfg, "chatwidget"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdin, os.Stdout); err != nil {
		slog.Error("chatwidget_failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
	slog.Info("chatwidget_exit")
}

// run owns the widget so that it is closed on every return path. The TUI is
// used when both in and out are terminals, plain line mode otherwise.
func run(ctx context.Context, cfg config.Config, in, out *os.File) error {
	slog.Info("chatwidget_start",
		"version", version.Summary(),
		"api_url", cfg.API.BaseURL,
		"offline", cfg.Offline,
	)

	cat, err := chat.LoadCatalog(cfg.ResponsesFile)
	if err != nil {
		return fmt.Errorf("load responses: %w", err)
	}

	client := api.NewClient(cfg.API.BaseURL, time.Duration(cfg.API.TimeoutSeconds)*time.Second)
	widget := chat.NewWidget(cfg, cat, client)
	defer widget.Close()

	if !term.IsTerminal(int(in.Fd())) || !term.IsTerminal(int(out.Fd())) {
		if err := ui.RunPlain(ctx, widget, in, out); err != nil && ctx.Err() == nil {
			return fmt.Errorf("plain mode: %w", err)
		}
		return nil
	}

	widget.Start()
	p := tea.NewProgram(ui.NewModel(ctx, widget), tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run chat: %w", err)
	}
	return nil
}
