package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/screenwatch/internal/capture"
	"github.com/ironsheep/screenwatch/internal/config"
	"github.com/ironsheep/screenwatch/internal/engine"
	"github.com/ironsheep/screenwatch/internal/httpapi"
	"github.com/ironsheep/screenwatch/internal/monitor"
	"github.com/ironsheep/screenwatch/internal/ocr"
	"github.com/ironsheep/screenwatch/internal/sink"
)

func watchAction(c *cli.Context) error {
	path := c.String("config")
	boot := newLogger(c, config.DefaultConfig())

	loader := config.NewLoader(path, boot)
	defer loader.Close()
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	logger := newLogger(c, cfg)
	if len(cfg.Regions) == 0 {
		return errors.New("no regions configured")
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	sinks, err := buildSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer sinks.router.Close()

	eng := engine.New(cfg.Stages(), engine.WithLogger(logger))
	capturer := capture.NewFileCapturer(sources(cfg))
	extractor := newTesseract(cfg.OCR.Language)
	mon := monitor.New(eng, capturer, extractor, sinks.router, settings(cfg),
		monitor.WithLogger(logger),
		monitor.WithQueueSize(cfg.Monitor.QueueSize),
	)

	loader.OnChange(func(next *config.Config) {
		eng.SetConfig(next.Stages())
		capturer.SetSources(sources(next))
		extractor.SetLanguage(next.OCR.Language)
		mon.Reconfigure(settings(next))
	})
	if path != "" {
		if err := loader.Watch(); err != nil {
			logger.Warn("config hot reload disabled", "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mon.Run(gctx) })
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case err := <-loader.Errors():
				logger.Warn("config reload failed, keeping previous", "error", err)
			}
		}
	})
	if cfg.HTTP.Listen != "" {
		opts := []httpapi.Option{httpapi.WithLogger(logger), httpapi.WithFrameCache(capturer)}
		if sinks.journal != nil {
			opts = append(opts, httpapi.WithEvents(sinks.journal))
		}
		if sinks.hub != nil {
			opts = append(opts, httpapi.WithLive(sinks.hub))
		}
		api := httpapi.New(eng, opts...)
		g.Go(func() error { return api.ListenAndServe(gctx, cfg.HTTP.Listen) })
	}

	logger.Info("watching", "regions", len(cfg.Regions), "interval", cfg.Interval(), "version", Version)
	err = g.Wait()
	logger.Info("stopped")
	return err
}

type sinkSet struct {
	router  *sink.Router
	journal *sink.Journal
	hub     *sink.Hub
}

func buildSinks(cfg *config.Config, logger *slog.Logger) (*sinkSet, error) {
	s := &sinkSet{router: sink.NewRouter(logger)}
	sc := cfg.Sinks

	if sc.Log {
		s.router.Add(sink.NewLogSink(logger))
	}
	if sc.Stdout {
		s.router.Add(sink.NewStdout(os.Stdout))
	}
	if sc.WebSocket {
		if cfg.HTTP.Listen == "" {
			logger.Warn("websocket sink needs http.listen, skipping")
		} else {
			s.hub = sink.NewHub(logger)
			s.router.Add(s.hub)
		}
	}
	if sc.Webhook.URL != "" {
		s.router.Add(sink.NewWebhook(sc.Webhook.URL,
			sink.WithWebhookRetries(sc.Webhook.Retries),
			sink.WithWebhookTimeout(secondsOf(sc.Webhook.TimeoutSeconds)),
			sink.WithWebhookTextLimits(cfg.Engine.MinAnalysisChars, cfg.Engine.AnalysisMaxChars),
			sink.WithWebhookLogger(logger),
		))
	}
	if sc.Telegram.Token != "" {
		tg, err := sink.DialTelegram(sc.Telegram.Token, sc.Telegram.ChatID)
		if err != nil {
			s.router.Close()
			return nil, err
		}
		s.router.Add(tg)
	}
	if sc.Journal.Path != "" {
		j, err := sink.OpenJournal(sc.Journal.Path)
		if err != nil {
			s.router.Close()
			return nil, err
		}
		s.journal = j
		s.router.Add(j)
	}

	if s.router.Empty() {
		logger.Warn("no sinks enabled, accepted changes are only visible through the status API")
	}
	return s, nil
}

func sources(cfg *config.Config) map[string]capture.Source {
	m := make(map[string]capture.Source, len(cfg.Regions))
	for _, r := range cfg.Regions {
		m[r.ID] = capture.Source{Path: r.Source, Crop: r.Crop}
	}
	return m
}

func settings(cfg *config.Config) monitor.Settings {
	ids := make([]string, 0, len(cfg.Regions))
	for _, r := range cfg.Regions {
		ids = append(ids, r.ID)
	}
	return monitor.Settings{
		Regions:    ids,
		Interval:   cfg.Interval(),
		ErrorLimit: cfg.Monitor.ErrorLimit,
	}
}

// tesseract is a monitor.Extractor whose language follows config reloads.
type tesseract struct {
	lang atomic.Pointer[string]
}

func newTesseract(lang string) *tesseract {
	t := &tesseract{}
	t.SetLanguage(lang)
	return t
}

func (t *tesseract) SetLanguage(lang string) {
	t.lang.Store(&lang)
}

func (t *tesseract) ExtractText(ctx context.Context, img image.Image) (string, error) {
	text, err := ocr.Tesseract{Language: *t.lang.Load()}.ExtractText(ctx, img)
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return text, nil
}
