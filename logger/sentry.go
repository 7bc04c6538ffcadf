package logger

import (
	"io"
	"time"

	sentry "github.com/getsentry/sentry-go"
	sentryzerolog "github.com/getsentry/sentry-go/zerolog"
	"github.com/rs/zerolog"
)

// NewSentryWriter initialises the Sentry client and returns a zerolog writer
// that forwards error and fatal events. We don't need to set SENTRY_DSN,
// SENTRY_ENVIRONMENT or SENTRY_RELEASE in ClientOptions as they are
// automatically picked up as env vars; without a DSN the writer is a no-op.
// https://docs.sentry.io/platforms/go/config/
func NewSentryWriter() (io.WriteCloser, error) {
	if err := sentry.Init(sentry.ClientOptions{}); err != nil {
		return nil, err
	}

	writer, err := sentryzerolog.New(sentryzerolog.Config{
		ClientOptions: sentry.ClientOptions{},
		Options: sentryzerolog.Options{
			Levels:          []zerolog.Level{zerolog.ErrorLevel, zerolog.FatalLevel},
			FlushTimeout:    3 * time.Second,
			WithBreadcrumbs: true,
		},
	})
	if err != nil {
		return nil, err
	}
	return writer, nil
}

// Flush waits for buffered Sentry events to be delivered.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}
