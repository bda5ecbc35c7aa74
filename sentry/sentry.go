package sentry

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/pointscan-io/pointscan/config"
)

// Init starts the Sentry client when a DSN is configured; without one every
// call in this package is a no-op.
func Init(cfg *config.Config) error {
	sentryCfg := cfg.GetSentryConfig()
	if sentryCfg == nil || sentryCfg.DSN == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              sentryCfg.DSN,
		Environment:      sentryCfg.Environment,
		Release:          config.Version,
		TracesSampleRate: sentryCfg.SampleRate,
	})
}

func CaptureException(err error) {
	hub := sentry.CurrentHub()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		hub.CaptureException(err)
	})
}

func Flush() {
	sentry.Flush(2 * time.Second)
}
