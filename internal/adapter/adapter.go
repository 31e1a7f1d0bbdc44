// Package adapter selects and dispatches the per-format parsers that turn
// a source document into a canonical model.
package adapter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/robometric/robotdiff/internal/adapter/mjcf"
	"github.com/robometric/robotdiff/internal/adapter/sdf"
	"github.com/robometric/robotdiff/internal/adapter/urdf"
	"github.com/robometric/robotdiff/internal/adapter/usd"
	"github.com/robometric/robotdiff/internal/apperr"
	"github.com/robometric/robotdiff/internal/model"
)

// Format identifies one supported model format family.
type Format string

const (
	URDF Format = "urdf"
	SDF  Format = "sdf"
	MJCF Format = "mjcf"
	USD  Format = "usd"
)

// Formats lists every supported format.
func Formats() []Format { return []Format{URDF, SDF, MJCF, USD} }

// ParseFormat resolves an explicit format override string.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case URDF, SDF, MJCF, USD:
		return Format(strings.ToLower(s)), nil
	}
	return "", fmt.Errorf("unknown format %q (expected urdf, sdf, mjcf, or usd)", s)
}

// Detect selects a format by file extension. MJCF models conventionally
// use a bare .xml extension, as well as .mjcf.
func Detect(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case ext == ".urdf":
		return URDF, nil
	case ext == ".sdf":
		return SDF, nil
	case ext == ".xml" || ext == ".mjcf":
		return MJCF, nil
	case strings.HasPrefix(ext, ".usd"):
		return USD, nil
	}
	return "", &apperr.FormatDetectionError{Path: path}
}

// Parse runs the adapter for f over a fully materialized document. file is
// used for error locations and sublayer resolution only.
func Parse(f Format, file string, data []byte) (*model.Model, error) {
	switch f {
	case URDF:
		return urdf.Parse(file, data)
	case SDF:
		return sdf.Parse(file, data)
	case MJCF:
		return mjcf.Parse(file, data)
	case USD:
		return usd.Parse(file, data)
	}
	return nil, &apperr.FormatDetectionError{Path: file}
}
