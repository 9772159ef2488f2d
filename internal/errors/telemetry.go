package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter receives every error built while it is installed
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// PrivacyScrubber rewrites a message before it leaves the process
type PrivacyScrubber func(string) string

var (
	telemetryMu        sync.RWMutex
	reporter           TelemetryReporter
	scrubber           PrivacyScrubber
	hasActiveReporting atomic.Bool
)

// SetTelemetryReporter installs r. A nil or disabled reporter turns
// reporting off.
func SetTelemetryReporter(r TelemetryReporter) {
	telemetryMu.Lock()
	defer telemetryMu.Unlock()
	reporter = r
	hasActiveReporting.Store(r != nil && r.IsEnabled())
}

// SetPrivacyScrubber replaces the built-in credential scrubbing
func SetPrivacyScrubber(s PrivacyScrubber) {
	telemetryMu.Lock()
	defer telemetryMu.Unlock()
	scrubber = s
}

func reportToTelemetry(ee *EnhancedError) {
	telemetryMu.RLock()
	r := reporter
	telemetryMu.RUnlock()
	if r != nil && r.IsEnabled() {
		r.ReportError(ee)
	}
}

func scrubMessage(msg string) string {
	telemetryMu.RLock()
	s := scrubber
	telemetryMu.RUnlock()
	if s != nil {
		return s(msg)
	}
	return basicURLScrub(msg)
}

// SentryReporter sends backend failures to Sentry. Validation and
// not-found errors stay local.
type SentryReporter struct {
	enabled bool
}

func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

func (sr *SentryReporter) IsEnabled() bool { return sr.enabled }

// ReportError captures ee once, with scrubbed message and context
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || !shouldReport(ee) || !ee.markReported() {
		return
	}

	msg := scrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Err))
	title := errorTitle(ee)
	level := sentryLevel(ee.Category)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(map[string]string{
			"error_title": title,
			"component":   ee.GetComponent(),
			"category":    string(ee.Category),
			"error_type":  fmt.Sprintf("%T", ee.Err),
		})
		if ee.Priority != "" {
			scope.SetTag("priority", ee.Priority)
		}
		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = scrubMessage(s)
			}
			scope.SetContext(key, sentry.Context{"value": value})
		}
		scope.SetLevel(level)
		scope.SetFingerprint([]string{title, ee.GetComponent(), string(ee.Category)})

		event := sentry.NewEvent()
		event.Level = level
		event.Message = msg
		event.Exception = []sentry.Exception{{Type: title, Value: msg}}
		sentry.CaptureEvent(event)
	})
}

func shouldReport(ee *EnhancedError) bool {
	return ee.Category != CategoryValidation && ee.Category != CategoryNotFound
}

var categoryTitles = map[ErrorCategory]string{
	CategoryDatabase:      "Database Error",
	CategoryFileIO:        "File I/O Error",
	CategorySerialization: "Serialization Error",
	CategoryConflict:      "Conflict Error",
	CategoryNetwork:       "Network Error",
	CategoryTimeout:       "Timeout Error",
	CategoryConfiguration: "Configuration Error",
	CategoryState:         "State Error",
}

// errorTitle groups events in Sentry, e.g. "Datastore Network Error Add Table Data"
func errorTitle(ee *EnhancedError) string {
	var parts []string
	if c := ee.GetComponent(); c != ComponentUnknown {
		parts = append(parts, upperFirst(c))
	}
	if t, ok := categoryTitles[ee.Category]; ok {
		parts = append(parts, t)
	} else if ee.Category != "" {
		parts = append(parts, string(ee.Category))
	}
	if op, ok := ee.Context["operation"].(string); ok {
		for word := range strings.FieldsSeq(strings.ReplaceAll(op, "_", " ")) {
			parts = append(parts, upperFirst(word))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%T", ee.Err)
	}
	return strings.Join(parts, " ")
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func sentryLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryNetwork, CategoryTimeout, CategoryFileIO, CategoryConflict:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

var (
	credentialPattern = regexp.MustCompile(`([a-z+]+://)[^/\s:@]+:[^/\s@]+@`)
	urlQueryPattern   = regexp.MustCompile(`([a-z+]+://[^?\s]+)\?\S*`)
	secretPatterns    = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(api[_-]?key|token|auth|password)[=:]\S+`),
		regexp.MustCompile(`[0-9a-fA-F]{32,}`),
	}
)

// basicURLScrub removes credentials, URL queries and key-like values. It
// is used until SetPrivacyScrubber installs something better.
func basicURLScrub(msg string) string {
	msg = credentialPattern.ReplaceAllString(msg, "$1[CREDENTIALS_REDACTED]@")
	msg = urlQueryPattern.ReplaceAllString(msg, "$1?[REDACTED]")
	for _, p := range secretPatterns {
		msg = p.ReplaceAllString(msg, "[API_KEY_REDACTED]")
	}
	return msg
}
