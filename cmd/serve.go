package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/knight1008610000/codegen-server/internal/config"
	"github.com/knight1008610000/codegen-server/internal/provider"
	providerfactory "github.com/knight1008610000/codegen-server/internal/provider/factory"
	"github.com/knight1008610000/codegen-server/internal/server"
)

const serveUsage = `Usage:
  codegen-server serve [--config <path>] [--port <port>]

Flags:
  --config string   Path to YAML configuration file (optional; defaults apply)
  --port   int      Override server port from configuration

API keys are read from the environment (DEEPSEEK_API_KEY, OPENAI_API_KEY,
ANTHROPIC_API_KEY, ZHIPU_API_KEY); a .env file is honoured if present.`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath string
	var overridePort int
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.IntVar(&overridePort, "port", 0, "override server port")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	cfg := config.Default()
	if cfgPath != "" {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	creds := config.LoadCredentials()

	registry := provider.NewRegistry()
	if err := providerfactory.RegisterConfiguredProviders(cfg, creds, registry); err != nil {
		return err
	}

	srv, err := server.New(cfg, registry)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
