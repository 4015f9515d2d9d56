package metrics

import (
	"os"

	"github.com/getsentry/sentry-go"
)

const sentryDSNEnvKey = "SENTRY_DSN"

// InitSentry enables error reporting when SENTRY_DSN is set.
func InitSentry(release string) bool {
	sentryDSN, hasConfig := os.LookupEnv(sentryDSNEnvKey)
	if !hasConfig || sentryDSN == "" {
		return false
	}
	err := sentry.Init(sentry.ClientOptions{Dsn: sentryDSN, Release: release, TracesSampleRate: 0.6})
	return err == nil
}
