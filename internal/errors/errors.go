// Package errors carries categorized errors through the storage layer and
// optionally forwards backend failures to telemetry.
//
// Errors are built fluently:
//
//	return errors.Newf("table %s does not exist", name).
//		Component("datastore").
//		Category(errors.CategoryNotFound).
//		Table(name).
//		Build()
//
// Callers branch on IsValidation, IsNotFound and IsBackend.
package errors

import (
	"fmt"
	"maps"
	"sync"
	"time"
)

// Priorities accepted by ErrorBuilder.Priority
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// EnhancedError is an error with a category, the component that raised it
// and free-form context.
type EnhancedError struct {
	Err       error
	Category  ErrorCategory
	Priority  string
	Context   map[string]any
	Timestamp time.Time

	mu        sync.Mutex
	component string
	reported  bool
}

func (ee *EnhancedError) Error() string { return ee.Err.Error() }

func (ee *EnhancedError) Unwrap() error { return ee.Err }

// Is matches another EnhancedError of the same category, or the wrapped error
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return Is(ee.Err, target)
}

// GetComponent returns the component set on the builder or detected from
// the call stack, ComponentUnknown when neither worked.
func (ee *EnhancedError) GetComponent() string {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	return ee.component
}

func (ee *EnhancedError) GetCategory() string { return string(ee.Category) }

func (ee *EnhancedError) GetPriority() string { return ee.Priority }

// GetContext returns a copy of the context map, nil when empty
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	return maps.Clone(ee.Context)
}

// markReported returns false when ee was reported before
func (ee *EnhancedError) markReported() bool {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	if ee.reported {
		return false
	}
	ee.reported = true
	return true
}

// ErrorBuilder assembles an EnhancedError
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New starts an error wrapping err
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts an error from fmt.Errorf(format, args...)
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Priority sets an explicit priority. Unknown values become PriorityMedium.
func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	switch priority {
	case "":
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		eb.priority = priority
	default:
		eb.priority = PriorityMedium
	}
	return eb
}

func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any, 2)
	}
	eb.context[key] = value
	return eb
}

// Table records the table the error concerns; an empty name is ignored
func (eb *ErrorBuilder) Table(table string) *ErrorBuilder {
	if table == "" {
		return eb
	}
	return eb.Context("table", table)
}

// Build returns the error and hands it to the telemetry reporter, if any.
// Component and message based category detection only run while a
// reporter is installed.
func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.err,
		Category:  eb.category,
		Priority:  eb.priority,
		Context:   eb.context,
		Timestamp: time.Now(),
		component: eb.component,
	}

	reporting := hasActiveReporting.Load()
	if ee.component == "" && reporting {
		ee.component = detectComponent()
	}
	if ee.component == "" {
		ee.component = ComponentUnknown
	}
	if ee.Category == "" {
		if reporting {
			ee.Category = detectCategory(eb.err, ee.component)
		} else {
			ee.Category = inheritCategory(eb.err)
		}
	}

	if reporting {
		reportToTelemetry(ee)
	}
	return ee
}

// ValidationError returns a CategoryValidation error with message
func ValidationError(message string) *EnhancedError {
	return New(NewStd(message)).Category(CategoryValidation).Build()
}

// NotFoundError returns a CategoryNotFound error naming the missing resource
func NotFoundError(resource, identifier string) *EnhancedError {
	return Newf("%s not found: %s", resource, identifier).
		Category(CategoryNotFound).
		Context("resource", resource).
		Context("identifier", identifier).
		Build()
}
