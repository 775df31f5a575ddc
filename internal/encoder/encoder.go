// Package encoder turns record sets into downloadable artifacts. Each
// encoder is a pure format writer; the registry resolves the requested
// output format to the encoder that handles it.
//
// The core treats encoders as collaborators: a format with no registered
// encoder is a render failure, not a panic. The built-in encoders cover
// delimited text (csv) and spreadsheets (xlsx); PDF rendering plugs in
// through the same interface.
package encoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Josue1991/Business-Report/internal/analysis"
	"github.com/Josue1991/Business-Report/internal/errors"
	"github.com/Josue1991/Business-Report/internal/report"
)

// Encoder writes one output format
type Encoder interface {
	// Format returns the artifact encoding this encoder produces
	Format() report.Format

	// Encode writes records to path. The parent directory is guaranteed to
	// exist by the registry.
	Encode(ctx context.Context, path string, records []analysis.Record, meta report.Metadata) error
}

// Registry resolves output formats to encoders
type Registry struct {
	byFormat map[report.Format]Encoder
}

// NewRegistry creates a registry containing the given encoders
func NewRegistry(encoders ...Encoder) *Registry {
	r := &Registry{byFormat: make(map[report.Format]Encoder)}
	for _, e := range encoders {
		r.byFormat[e.Format()] = e
	}
	return r
}

// Register adds or replaces the encoder for its format
func (r *Registry) Register(e Encoder) {
	r.byFormat[e.Format()] = e
}

// Supports reports whether the format has a registered encoder
func (r *Registry) Supports(format report.Format) bool {
	_, ok := r.byFormat[format]
	return ok
}

// Encode renders records into path using the encoder registered for format
// and returns the resulting file size
func (r *Registry) Encode(ctx context.Context, format report.Format, path string, records []analysis.Record, meta report.Metadata) (int64, error) {
	enc, ok := r.byFormat[format]
	if !ok {
		return 0, errors.NewRenderError("no encoder registered for format "+string(format), nil)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, errors.NewRenderError("failed to create artifact directory", err)
	}

	if err := enc.Encode(ctx, path, records, meta); err != nil {
		// Do not leave partial artifacts behind
		os.Remove(path)
		return 0, errors.NewRenderError(fmt.Sprintf("encoding %s failed", format), err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, errors.NewRenderError("artifact missing after encode", err)
	}
	return info.Size(), nil
}

// columnsFor returns the column order for the output: the metadata columns
// when present, otherwise the sorted key set of the first record
func columnsFor(records []analysis.Record, meta report.Metadata) []string {
	if len(meta.Columns) > 0 {
		return meta.Columns
	}
	if len(records) == 0 {
		return nil
	}

	cols := make([]string, 0, len(records[0]))
	for k := range records[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
