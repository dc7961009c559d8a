package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/DarkIrata/ffxiv-act-minioverlay/go/clients/xivapi_client"
	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/catalog"
	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/config"
	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/engine"
	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/gateway"
	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/health"
	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/icons"
	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/logsource"
	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// lineSource is a running producer of combat log lines
type lineSource interface {
	Run(ctx context.Context, sub logsource.Submitter) error
}

type namedSource struct {
	name   string
	source lineSource
}

type Services struct {
	Engine  *engine.Engine
	Gateway *gateway.Service
	Metrics *metrics.Metrics
	Health  *health.Checker
	Sources []namedSource

	closers []io.Closer
}

func setupServices(ctx context.Context, cfg config.Config, cat *catalog.Catalog) (*Services, error) {
	// Metrics → icon cache → engine → gateway → sources
	m := metrics.New(prometheus.DefaultRegisterer)

	iconCache := icons.NewCache(
		xivapi_client.NewXIVAPIClient(cfg.IconAPIRoot),
		icons.WithSpacing(cfg.IconRate),
		icons.WithRecorder(m),
	)

	eng := engine.New(cat, engine.Config{
		Resolution:         cfg.TimeResolution,
		HideAfterCooldowns: cfg.HideAfterCooldowns,
	}, engine.WithIcons(iconCache), engine.WithRecorder(m))

	gw := gateway.NewService(gateway.DefaultConfig(), eng, m)
	eng.SetPublisher(gw)

	services := &Services{
		Engine:  eng,
		Gateway: gw,
		Metrics: m,
	}

	jetStream, err := services.setupSources(ctx, cfg)
	if err != nil {
		services.Close()
		return nil, err
	}

	if jetStream != nil {
		services.Health = health.NewChecker(eng, jetStream)
	} else {
		services.Health = health.NewChecker(eng, nil)
	}
	return services, nil
}

// setupSources opens the configured line sources. The JetStream source, if
// any, is returned for health probing.
func (s *Services) setupSources(ctx context.Context, cfg config.Config) (*logsource.JetStreamSource, error) {
	switch {
	case cfg.ReadsStdin():
		s.Sources = append(s.Sources, namedSource{
			name:   "stdin",
			source: logsource.NewReaderSource("stdin", os.Stdin),
		})
	case cfg.LogFile != "":
		source, closer, err := logsource.OpenFile(cfg.LogFile, logsource.WithFollow(cfg.LogFollow))
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, closer)
		s.Sources = append(s.Sources, namedSource{name: cfg.LogFile, source: source})
	}

	if cfg.NATS.URL == "" {
		return nil, nil
	}

	jsConfig := logsource.DefaultJetStreamConfig()
	jsConfig.URL = cfg.NATS.URL
	jsConfig.StreamName = cfg.NATS.Stream
	jsConfig.SubjectFilter = cfg.NATS.Subject
	jsConfig.ConsumerName = cfg.NATS.Consumer

	source, err := logsource.NewJetStreamSource(ctx, jsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream log source: %w", err)
	}
	s.closers = append(s.closers, closerFunc(source.Stop))
	s.Sources = append(s.Sources, namedSource{name: "jetstream", source: source})
	return source, nil
}

// Close releases source files and connections
func (s *Services) Close() {
	for _, c := range s.closers {
		c.Close()
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
