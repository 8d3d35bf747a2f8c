package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/gyeh/feeschedule/internal/model"
)

const readBatch = 256

// Reader wraps a parquet GenericReader for streaming archive rows.
type Reader struct {
	file   *os.File
	reader *parquet.GenericReader[model.ArchiveRow]
}

// Open opens an archive file and checks its schema.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat archive file: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	if err := ValidateSchema(pf.Schema()); err != nil {
		f.Close()
		return nil, err
	}

	r := parquet.NewGenericReader[model.ArchiveRow](pf)
	return &Reader{file: f, reader: r}, nil
}

// NumRows returns the total number of rows in the file.
func (r *Reader) NumRows() int64 {
	return r.reader.NumRows()
}

// Read reads up to len(rows) rows. It returns io.EOF when done. rows is
// zeroed first: the parquet reader decodes optional columns through any
// non-nil pointer it finds, which would rewrite rows the caller kept from an
// earlier batch.
func (r *Reader) Read(rows []model.ArchiveRow) (int, error) {
	clear(rows)
	n, err := r.reader.Read(rows)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("read archive rows: %w", err)
	}
	return n, err
}

// Close releases all resources.
func (r *Reader) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// ReadAll returns every row of an archive file.
func ReadAll(path string) ([]model.ArchiveRow, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	all := make([]model.ArchiveRow, 0, r.NumRows())
	for {
		buf := make([]model.ArchiveRow, readBatch)
		n, err := r.Read(buf)
		all = append(all, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return all, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// ValidateSchema checks that the schema carries the source and key columns.
func ValidateSchema(schema *parquet.Schema) error {
	columns := make(map[string]bool)
	for _, field := range schema.Fields() {
		columns[strings.ToLower(field.Name())] = true
	}

	for _, col := range []string{"source_url", "source_sha256", "code", "location"} {
		if !columns[col] {
			return fmt.Errorf("missing required column: %s", col)
		}
	}
	return nil
}
