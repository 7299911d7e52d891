package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/nutriplan/nutriplan/internal/config"
	"github.com/nutriplan/nutriplan/internal/logger"
)

// Service wraps the sentry-go hub. Every method is a no-op when Sentry is disabled.
type Service struct {
	enabled bool
	logger  *logger.Logger
}

// NewSentryService initializes the global Sentry client when enabled in config
func NewSentryService(cfg *config.Configuration, log *logger.Logger) *Service {
	if !cfg.Sentry.Enabled || cfg.Sentry.DSN == "" {
		return &Service{logger: log}
	}

	environment := cfg.Sentry.Environment
	if environment == "" {
		environment = cfg.Deployment.Mode
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.Sentry.SampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		log.Warnw("failed to initialize sentry, continuing without it", "error", err)
		return &Service{logger: log}
	}

	log.Infow("sentry initialized", "environment", environment)
	return &Service{enabled: true, logger: log}
}

func (s *Service) IsEnabled() bool {
	return s != nil && s.enabled
}

func (s *Service) CaptureException(err error) {
	if !s.IsEnabled() || err == nil {
		return
	}
	sentry.CaptureException(err)
}

// StartMonitoringSpan starts a transaction span. It returns a nil span when disabled.
func (s *Service) StartMonitoringSpan(ctx context.Context, operation string, data map[string]interface{}) (*sentry.Span, context.Context) {
	if !s.IsEnabled() {
		return nil, ctx
	}

	span := sentry.StartSpan(ctx, operation)
	for k, v := range data {
		span.SetData(k, v)
	}
	return span, span.Context()
}

// Flush waits for buffered events to be delivered
func (s *Service) Flush(timeout time.Duration) {
	if !s.IsEnabled() {
		return
	}
	sentry.Flush(timeout)
}
