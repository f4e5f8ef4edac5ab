package tracelog

import (
	"fmt"
	"io"
	"os"

	"github.com/edirooss/smokers/internal/domain/factory"
)

// File writes the text trace: a title, a blank line, the header, then one
// row per observed snapshot. An empty Path writes to stdout.
//
// Every row opens the file in append mode and closes it again, so separate
// processes can share one trace file; rows are written inside the critical
// section and therefore never interleave.
type File struct {
	Path string
}

// NewFile returns a trace writer for path ("" for stdout).
func NewFile(path string) *File {
	return &File{Path: path}
}

// Create truncates the trace and writes the title and the header for an
// n-ingredient factory.
func (f *File) Create(n int) error {
	return f.write(os.O_CREATE|os.O_TRUNC|os.O_WRONLY, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s\n\n%s\n", Title, FormatHeader(n))
		return err
	})
}

// Observe appends one row.
func (f *File) Observe(snap factory.Snapshot) error {
	return f.write(os.O_CREATE|os.O_APPEND|os.O_WRONLY, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, FormatRow(snap.State))
		return err
	})
}

func (f *File) write(flag int, fn func(io.Writer) error) error {
	if f.Path == "" {
		return fn(os.Stdout)
	}
	fh, err := os.OpenFile(f.Path, flag, 0o644)
	if err != nil {
		return fmt.Errorf("open trace %s: %w", f.Path, err)
	}
	if err := fn(fh); err != nil {
		_ = fh.Close()
		return fmt.Errorf("write trace %s: %w", f.Path, err)
	}
	if err := fh.Close(); err != nil {
		return fmt.Errorf("close trace %s: %w", f.Path, err)
	}
	return nil
}
