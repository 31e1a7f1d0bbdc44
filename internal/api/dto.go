package api

import (
	"github.com/robometric/robotdiff/internal/diff"
)

// CompareRequest is the request body for a comparison. Paths are
// resolved relative to the server's model directory.
type CompareRequest struct {
	PathA   string      `json:"path_a" validate:"required"`
	PathB   string      `json:"path_b" validate:"required"`
	FormatA string      `json:"format_a,omitempty"`
	FormatB string      `json:"format_b,omitempty"`
	Options *OptionsDTO `json:"options,omitempty"`
}

// OptionsDTO carries per-request overrides of the comparison options.
// Nil fields keep the server defaults.
type OptionsDTO struct {
	ToleranceLinear  *float64 `json:"tolerance_linear,omitempty"`
	ToleranceAngular *float64 `json:"tolerance_angular,omitempty"`
	Relative         *bool    `json:"relative,omitempty"`
	IncludeVisual    *bool    `json:"include_visual,omitempty"`
	Fields           []string `json:"fields,omitempty"`
}

func (o *OptionsDTO) apply(opts *diff.Options) error {
	if o.ToleranceLinear != nil {
		opts.ToleranceLinear = *o.ToleranceLinear
	}
	if o.ToleranceAngular != nil {
		opts.ToleranceAngular = *o.ToleranceAngular
	}
	if o.Relative != nil {
		opts.Relative = *o.Relative
	}
	if o.IncludeVisual != nil {
		opts.IncludeVisual = *o.IncludeVisual
	}
	for _, f := range o.Fields {
		cat, err := diff.ParseCategory(f)
		if err != nil {
			return err
		}
		opts.Fields = append(opts.Fields, cat)
	}
	return nil
}

// FormatsResponse lists the supported model formats.
type FormatsResponse struct {
	Formats []string `json:"formats"`
}
