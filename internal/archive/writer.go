// Package archive stores normalized records as Parquet files and reads them
// back for replay.
package archive

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/gyeh/feeschedule/internal/model"
)

// FileName derives the archive file name of a document from its URL and
// digest.
func FileName(docURL, sha string) string {
	base := docURL
	if u, err := url.Parse(docURL); err == nil && u.Path != "" {
		base = u.Path
	}
	base = strings.TrimSuffix(path.Base(base), path.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "document"
	}
	if len(sha) > 12 {
		sha = sha[:12]
	}
	return fmt.Sprintf("%s-%s.parquet", base, sha)
}

// WriteDocument writes one document's records into dir and returns the file
// path.
func WriteDocument(dir, docURL, sha string, recs []model.FeeScheduleRecord) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	rows := make([]model.ArchiveRow, len(recs))
	for i := range recs {
		rows[i] = model.NewArchiveRow(docURL, sha, int64(i+1), &recs[i])
	}

	p := filepath.Join(dir, FileName(docURL, sha))
	if err := WriteFile(p, rows); err != nil {
		return "", err
	}
	return p, nil
}

// WriteFile writes rows to a Parquet file, replacing any existing file.
func WriteFile(p string, rows []model.ArchiveRow) error {
	tmp := p + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}

	w := parquet.NewGenericWriter[model.ArchiveRow](f)
	if _, err := w.Write(rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write archive rows: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("close archive writer: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close archive file: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("rename archive file: %w", err)
	}
	return nil
}
