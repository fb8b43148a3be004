// Package errors provides enhanced errors carrying a component, a category and
// free-form context, plus thin re-exports of the standard errors helpers so
// callers need a single import.
//
// Typical use:
//
//	return errors.New(err).
//		Component("monitor").
//		Category(errors.CategoryDatabase).
//		Context("service_id", svc.ID).
//		Build()
//
// Built errors outside the validation category are handed to the registered
// Reporter, if any.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"
)

// Category groups errors by their origin.
type Category string

const (
	CategoryGeneric       Category = "generic"
	CategoryValidation    Category = "validation"
	CategoryConfiguration Category = "configuration"
	CategoryNetwork       Category = "network"
	CategoryDatabase      Category = "database"
	CategoryNotification  Category = "notification"
	CategoryEvaluation    Category = "evaluation"
	CategorySystem        Category = "system"
)

// EnhancedError wraps an error with component, category and context.
type EnhancedError struct {
	Err       error
	component string
	category  Category
	context   map[string]any
	timestamp time.Time
}

func (e *EnhancedError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *EnhancedError) Unwrap() error { return e.Err }

// GetComponent returns the component that produced the error.
func (e *EnhancedError) GetComponent() string { return e.component }

// GetCategory returns the error category.
func (e *EnhancedError) GetCategory() Category { return e.category }

// GetContext returns a copy of the error context.
func (e *EnhancedError) GetContext() map[string]any {
	return maps.Clone(e.context)
}

// GetTimestamp returns when the error was built.
func (e *EnhancedError) GetTimestamp() time.Time { return e.timestamp }

// Detail renders the error with its component and sorted context, for logs.
func (e *EnhancedError) Detail() string {
	var b strings.Builder
	if e.component != "" {
		b.WriteString(e.component)
		b.WriteString(": ")
	}
	b.WriteString(e.Error())
	if len(e.context) > 0 {
		keys := make([]string, 0, len(e.context))
		for k := range e.context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.context[k])
		}
		b.WriteString("]")
	}
	return b.String()
}

// ErrorBuilder assembles an EnhancedError.
type ErrorBuilder struct {
	err       error
	component string
	category  Category
	context   map[string]any
}

// New starts a builder wrapping err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err, category: CategoryGeneric}
}

// Newf starts a builder with a formatted message. %w verbs wrap as in fmt.Errorf.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

func (b *ErrorBuilder) Component(component string) *ErrorBuilder {
	b.component = component
	return b
}

func (b *ErrorBuilder) Category(category Category) *ErrorBuilder {
	b.category = category
	return b
}

func (b *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if b.context == nil {
		b.context = make(map[string]any)
	}
	b.context[key] = value
	return b
}

// Build returns the assembled error and reports it.
func (b *ErrorBuilder) Build() error {
	ee := &EnhancedError{
		Err:       b.err,
		component: b.component,
		category:  b.category,
		context:   b.context,
		timestamp: time.Now(),
	}
	if ee.Err == nil {
		ee.Err = stderrors.New("unknown error")
	}
	if ee.category != CategoryValidation {
		report(ee)
	}
	return ee
}

// Reporter receives built errors, for example to forward them to Sentry.
type Reporter interface {
	Report(err *EnhancedError)
}

var (
	reporter   Reporter
	reporterMu sync.RWMutex
)

// SetReporter installs r as the process-wide reporter. A nil r disables reporting.
func SetReporter(r Reporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	reporter = r
}

func report(ee *EnhancedError) {
	reporterMu.RLock()
	r := reporter
	reporterMu.RUnlock()
	if r != nil {
		r.Report(ee)
	}
}

// CategoryOf returns the category of the first EnhancedError in err's chain.
func CategoryOf(err error) Category {
	var ee *EnhancedError
	if As(err, &ee) {
		return ee.category
	}
	return CategoryGeneric
}

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func Join(errs ...error) error { return stderrors.Join(errs...) }

func Unwrap(err error) error { return stderrors.Unwrap(err) }

// NewStd creates a plain error, for package level sentinels.
func NewStd(text string) error { return stderrors.New(text) }
