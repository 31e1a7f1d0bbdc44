// Package apperr defines the error kinds shared across the comparison core.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrDiffFound is an exit-signaling sentinel used by the CLI layer to
	// distinguish "differences found" from a failed comparison.
	ErrDiffFound = errors.New("differences found")
)

// ParseError reports malformed source or a violated structural invariant.
// It is fatal for the file it occurred in and aborts the comparison.
type ParseError struct {
	File     string
	Location string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("parse %s: %s: %s", e.File, e.Location, e.Reason)
	}
	return fmt.Sprintf("parse %s: %s", e.File, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnsupportedElementError reports an in-scope element whose sub-variant the
// adapter does not model. It is non-fatal: adapters accumulate these as
// warnings on the resulting model and keep parsing.
type UnsupportedElementError struct {
	Location string
	Element  string
}

func (e *UnsupportedElementError) Error() string {
	return fmt.Sprintf("unsupported element %q at %s", e.Element, e.Location)
}

// FormatDetectionError reports that no adapter could be selected for a path.
type FormatDetectionError struct {
	Path string
}

func (e *FormatDetectionError) Error() string {
	return fmt.Sprintf("cannot detect model format of %q", e.Path)
}

// ComparisonScopeError reports that a requested field category can never be
// populated by the adapter for one of the input formats.
type ComparisonScopeError struct {
	Format   string
	Category string
}

func (e *ComparisonScopeError) Error() string {
	return fmt.Sprintf("format %s cannot populate field category %q", e.Format, e.Category)
}
