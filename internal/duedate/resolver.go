// ABOUTME: Resolves natural-language due dates ("tomorrow 5pm", "next friday") to timestamps
// ABOUTME: Wraps olebedev/when with a fast path for ISO dates; unresolvable text yields nil

package duedate

import (
	"log/slog"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Resolver turns free-form due text into an absolute time.
// A nil result means the text could not be resolved; callers store a null due date.
type Resolver interface {
	Resolve(text string, base time.Time) *time.Time
}

// isoLayouts are tried before natural-language parsing
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// NaturalResolver parses English date phrases relative to a base time
type NaturalResolver struct {
	parser *when.Parser
	logger *slog.Logger
}

// NewNaturalResolver creates a resolver with the English and common rule sets.
func NewNaturalResolver(logger *slog.Logger) *NaturalResolver {
	if logger == nil {
		logger = slog.Default()
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	return &NaturalResolver{
		parser: w,
		logger: logger.With("component", "duedate"),
	}
}

// Resolve returns the absolute time described by text, or nil.
func (r *NaturalResolver) Resolve(text string, base time.Time) *time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, text, base.Location()); err == nil {
			return &t
		}
	}

	result, err := r.parser.Parse(text, base)
	if err != nil {
		r.logger.Debug("due date parse failed", "text", text, "error", err)
		return nil
	}
	if result == nil {
		r.logger.Debug("due date not recognised", "text", text)
		return nil
	}

	t := result.Time
	return &t
}

// ResolverFunc adapts a plain function to the Resolver interface
type ResolverFunc func(text string, base time.Time) *time.Time

// Resolve calls f(text, base).
func (f ResolverFunc) Resolve(text string, base time.Time) *time.Time {
	return f(text, base)
}
