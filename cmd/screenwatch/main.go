package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ironsheep/screenwatch/internal/config"
	"github.com/ironsheep/screenwatch/internal/engine"
	"github.com/ironsheep/screenwatch/internal/logging"
	"github.com/ironsheep/screenwatch/internal/ocr"
	"github.com/ironsheep/screenwatch/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "screenwatch: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "screenwatch",
		Usage:   "detect meaningful changes in on-screen text and throttle notifications",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "configuration file (.toml, .yaml or .json)",
				EnvVars: []string{config.EnvPrefix + "CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error (overrides the config file)",
				EnvVars: []string{config.EnvPrefix + "LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "text or json (overrides the config file)",
				EnvVars: []string{config.EnvPrefix + "LOG_FORMAT"},
			},
		},
		// Without a command, serve MCP so that clients can launch the bare binary.
		Action: mcpAction,
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "serve the screen tools over MCP on stdin/stdout",
				Action: mcpAction,
			},
			{
				Name:   "watch",
				Usage:  "poll the configured regions and deliver accepted changes to the sinks",
				Action: watchAction,
			},
			{
				Name:      "compare",
				Usage:     "score and classify the change between two text files",
				ArgsUsage: "<previous-file> <current-file>",
				Action:    compareAction,
			},
			{
				Name:      "fingerprint",
				Usage:     "print the perceptual fingerprint of an image, or the distance between two",
				ArgsUsage: "<image> [image2]",
				Action:    fingerprintAction,
			},
			{
				Name:   "version",
				Usage:  "print version information",
				Action: versionAction,
			},
		},
	}
}

// setup loads the configuration and builds the logger. Clamp and
// environment warnings are logged once the logger exists.
func setup(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, warnings, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(c, cfg)
	for _, w := range warnings {
		logger.Warn("config adjusted", "detail", w)
	}
	return cfg, logger, nil
}

func newLogger(c *cli.Context, cfg *config.Config) *slog.Logger {
	level, format := cfg.Log.Level, cfg.Log.Format
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		format = c.String("log-format")
	}
	logger, err := logging.FromStrings(level, format, os.Stderr)
	if err != nil {
		logger.Warn("invalid logging setting", "error", err)
	}
	return logger
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func mcpAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(c)
	defer cancel()

	logger.Debug("starting MCP server", "version", Version, "built", BuildTime, "commit", GitCommit)
	eng := engine.New(cfg.Stages(), engine.WithLogger(logger))
	srv := server.New(eng,
		server.WithLanguage(cfg.OCR.Language),
		server.WithVersion(Version),
		server.WithLogger(logger),
	)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func versionAction(c *cli.Context) error {
	w := c.App.Writer
	fmt.Fprintf(w, "screenwatch %s\n", Version)
	fmt.Fprintf(w, "  Build time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Tesseract:  %s\n", ocr.Version())
	return nil
}
