// Package errorreporting wires Sentry into the service. Everything sent out
// passes through a scrubber first so tokens, emails and addresses never leave
// the process.
package errorreporting

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/onnwee/forcemap/internal/config"
)

// scrubbers match the PII classes that show up in practice: credentials in
// wrapped errors, emails and client IPs in request context.
var scrubbers = []*regexp.Regexp{
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),                  // email
	regexp.MustCompile(`bearer\s+[a-zA-Z0-9_-]{20,}`),                                    // bearer token
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret)["\s:=]+[a-zA-Z0-9_-]{16,}`),       // key=value credentials
	regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),                                    // IPv4
	regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),                     // card-shaped digits
}

// Init starts the Sentry client. An empty DSN disables reporting and is not
// an error; local development runs without it.
func Init(cfg *config.Config) error {
	if cfg == nil || cfg.SentryDSN == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.SentryEnvironment,
		Release:          release(cfg),
		TracesSampleRate: cfg.SentrySampleRate,
		BeforeSend:       scrubEvent,
		AttachStacktrace: true,
	}); err != nil {
		return fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	return nil
}

func release(cfg *config.Config) string {
	if cfg.SentryRelease != "" {
		return cfg.SentryRelease
	}
	if v := os.Getenv("SERVICE_VERSION"); v != "" {
		return v
	}
	return "dev"
}

// scrubEvent is the BeforeSend hook: PII out of messages and extras,
// credentials out of the request snapshot.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	for i := range event.Exception {
		event.Exception[i].Value = ScrubPII(event.Exception[i].Value)
	}
	if event.Message != "" {
		event.Message = ScrubPII(event.Message)
	}
	for key, value := range event.Extra {
		if s, ok := value.(string); ok {
			event.Extra[key] = ScrubPII(s)
		}
	}
	if event.Request != nil {
		for _, h := range []string{"Authorization", "Cookie", "X-Api-Key"} {
			delete(event.Request.Headers, h)
		}
		// query strings can carry tokens
		event.Request.QueryString = ""
	}
	return event
}

// ScrubPII replaces matches of every scrubber pattern with a redaction
// marker. The recovery middleware also runs raw panic stacks through it.
func ScrubPII(text string) string {
	for _, p := range scrubbers {
		text = p.ReplaceAllString(text, "[REDACTED]")
	}
	return text
}

// CaptureErrorWithContext reports err with per-event tags and extras. Extras
// are scrubbed by the BeforeSend hook.
func CaptureErrorWithContext(err error, tags map[string]string, extras map[string]interface{}) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		for k, v := range extras {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// CaptureError reports err without extra context.
func CaptureError(err error) {
	if err != nil {
		sentry.CaptureException(err)
	}
}

// Flush blocks until buffered events are delivered or the timeout passes.
// Called on shutdown so in-flight reports are not lost.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsSentryEnabled reports whether a DSN is configured in the environment.
func IsSentryEnabled() bool {
	return os.Getenv("SENTRY_DSN") != ""
}
