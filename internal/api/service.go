package api

import (
	"context"
	"fmt"

	"github.com/robometric/robotdiff/internal/adapter"
	"github.com/robometric/robotdiff/internal/compare"
	"github.com/robometric/robotdiff/internal/diff"
	"github.com/robometric/robotdiff/internal/source"
)

// Service executes comparisons against the server's model directory.
type Service struct {
	dir      *source.Dir
	defaults diff.Options
}

// NewService creates a Service resolving request paths under dir.
func NewService(dir *source.Dir, defaults diff.Options) *Service {
	return &Service{dir: dir, defaults: defaults}
}

// Compare loads the two requested model files and diffs them. Request
// options override the server defaults field by field.
func (s *Service) Compare(ctx context.Context, req CompareRequest) (*compare.Result, error) {
	if req.PathA == "" || req.PathB == "" {
		return nil, fmt.Errorf("%w: path_a and path_b are required", errBadRequest)
	}

	opts := compare.Options{Diff: s.defaults}
	if req.FormatA != "" {
		f, err := adapter.ParseFormat(req.FormatA)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		opts.FormatA = f
	}
	if req.FormatB != "" {
		f, err := adapter.ParseFormat(req.FormatB)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		opts.FormatB = f
	}
	if req.Options != nil {
		if err := req.Options.apply(&opts.Diff); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}

	docA, err := s.dir.Load(req.PathA)
	if err != nil {
		return nil, err
	}
	docB, err := s.dir.Load(req.PathB)
	if err != nil {
		return nil, err
	}
	return compare.Documents(ctx, docA, docB, opts)
}
