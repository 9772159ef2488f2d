// Package telemetry reports backend failures to Sentry. Reporting is opt-in:
// nothing is sent unless a DSN is configured.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/edaschema/edaschema/internal/conf"
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/privacy"
)

// flushTimeout bounds how long buffered events are sent on shutdown
const flushTimeout = 2 * time.Second

// allowedExtra lists the extra fields kept on outgoing events
var allowedExtra = map[string]bool{
	"error_type": true,
	"component":  true,
}

// Init configures the Sentry SDK and routes enhanced errors to it. The
// returned function flushes buffered events and is safe to call when
// telemetry is disabled.
func Init(settings conf.TelemetrySettings, version string, log logger.Logger) (func(), error) {
	if settings.SentryDSN == "" {
		log.Debug("telemetry disabled")
		return func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.SentryDSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",
		Release:          fmt.Sprintf("edaschema@%s", version),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return scrubEvent(event)
		},
	})
	if err != nil {
		return func() {}, errors.New(privacy.WrapError(err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	errors.SetPrivacyScrubber(privacy.ScrubMessage)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	log.Info("telemetry enabled", logger.String("release", version))

	return func() {
		errors.SetTelemetryReporter(nil)
		sentry.Flush(flushTimeout)
	}, nil
}

// scrubEvent strips host identity and connection details from an event
func scrubEvent(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Message = privacy.ScrubMessage(event.Message)

	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}
	for _, key := range []string{"device", "os", "runtime"} {
		delete(event.Contexts, key)
	}
	for k := range event.Extra {
		if !allowedExtra[k] {
			delete(event.Extra, k)
		}
	}
	delete(event.Tags, "server_name")
	delete(event.Tags, "hostname")
	return event
}
