// Package compare orchestrates a full comparison: format resolution,
// scope checking, concurrent parsing of both inputs, and the diff walk.
package compare

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/robometric/robotdiff/internal/adapter"
	"github.com/robometric/robotdiff/internal/apperr"
	"github.com/robometric/robotdiff/internal/diff"
	"github.com/robometric/robotdiff/internal/model"
	"github.com/robometric/robotdiff/internal/source"
)

// Options extends the diff options with per-side format overrides.
// Empty formats are auto-detected from the file extension.
type Options struct {
	Diff    diff.Options
	FormatA adapter.Format
	FormatB adapter.Format
}

// DefaultOptions returns auto-detecting options with default tolerances.
func DefaultOptions() Options {
	return Options{Diff: diff.DefaultOptions()}
}

// Outcome values. A failed comparison has no Result at all; the error
// return is the third outcome.
const (
	OutcomeEquivalent = "equivalent"
	OutcomeDifferent  = "different"
)

// Result is the outcome of one comparison, pairing the diff report with
// the input fingerprints the serve and watch modes key on.
type Result struct {
	Outcome   string         `json:"outcome"`
	Report    *diff.Report   `json:"report"`
	FileA     string         `json:"file_a"`
	FileB     string         `json:"file_b"`
	FormatA   adapter.Format `json:"format_a"`
	FormatB   adapter.Format `json:"format_b"`
	ChecksumA string         `json:"checksum_a"`
	ChecksumB string         `json:"checksum_b"`
}

// capabilities records which field categories each adapter can ever
// populate, consulted up front so a scoped comparison against a format
// that cannot express the requested category fails loudly instead of
// producing an empty diff.
var capabilities = map[adapter.Format]map[diff.Category]bool{
	adapter.URDF: allCategories(),
	adapter.SDF:  allCategories(),
	adapter.MJCF: allCategories(),
	adapter.USD:  allCategories(),
}

func allCategories() map[diff.Category]bool {
	set := make(map[diff.Category]bool, 4)
	for _, c := range diff.Categories() {
		set[c] = true
	}
	return set
}

func checkScope(f adapter.Format, requested []diff.Category) error {
	caps := capabilities[f]
	for _, c := range requested {
		if !caps[c] {
			return &apperr.ComparisonScopeError{Format: string(f), Category: string(c)}
		}
	}
	return nil
}

// Files loads, parses, and diffs the two files at pathA and pathB.
func Files(ctx context.Context, pathA, pathB string, opts Options) (*Result, error) {
	docA, err := source.Load(pathA)
	if err != nil {
		return nil, err
	}
	docB, err := source.Load(pathB)
	if err != nil {
		return nil, err
	}
	return Documents(ctx, docA, docB, opts)
}

// Documents diffs two already-loaded documents. The two parses are
// independent and run concurrently.
func Documents(ctx context.Context, docA, docB *source.Document, opts Options) (*Result, error) {
	formatA, err := resolveFormat(docA.Path, opts.FormatA)
	if err != nil {
		return nil, err
	}
	formatB, err := resolveFormat(docB.Path, opts.FormatB)
	if err != nil {
		return nil, err
	}
	if err := checkScope(formatA, opts.Diff.Fields); err != nil {
		return nil, err
	}
	if err := checkScope(formatB, opts.Diff.Fields); err != nil {
		return nil, err
	}

	var modelA, modelB *model.Model
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		modelA, err = adapter.Parse(formatA, docA.Path, docA.Data)
		return err
	})
	g.Go(func() error {
		var err error
		modelB, err = adapter.Parse(formatB, docB.Path, docB.Data)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := diff.Compare(modelA, modelB, opts.Diff)
	outcome := OutcomeDifferent
	if report.Equivalent() {
		outcome = OutcomeEquivalent
	}
	return &Result{
		Outcome:   outcome,
		Report:    report,
		FileA:     docA.Path,
		FileB:     docB.Path,
		FormatA:   formatA,
		FormatB:   formatB,
		ChecksumA: docA.Checksum,
		ChecksumB: docB.Checksum,
	}, nil
}

func resolveFormat(path string, override adapter.Format) (adapter.Format, error) {
	if override != "" {
		return override, nil
	}
	return adapter.Detect(path)
}
