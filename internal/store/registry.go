package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gyeh/feeschedule/internal/model"
	embedsql "github.com/gyeh/feeschedule/internal/sql"
)

// RegisterDocument records the start of a document's processing and returns
// its registry id. sha is empty when the document could not be fetched.
func (g *Gateway) RegisterDocument(ctx context.Context, runID uuid.UUID, url, sha string, status model.DocumentStatus) (int64, error) {
	var digest *string
	if sha != "" {
		digest = &sha
	}
	var id int64
	if err := g.db.QueryRow(ctx, embedsql.RegisterDocument, runID, url, digest, string(status)).Scan(&id); err != nil {
		return 0, fmt.Errorf("register document: %w", err)
	}
	return id, nil
}

// FinishDocument stores the final status and counts of a document.
func (g *Gateway) FinishDocument(ctx context.Context, id int64, s *model.DocumentSummary, reason string) error {
	var errText *string
	if reason != "" {
		errText = &reason
	}
	_, err := g.db.Exec(ctx, embedsql.FinishDocument,
		id,
		string(s.Status),
		s.RowsRaw,
		s.RowsValid,
		s.Inserted,
		s.Updated,
		s.Duplicates,
		errText,
	)
	if err != nil {
		return fmt.Errorf("finish document %d: %w", id, err)
	}
	return nil
}

// LastLoadedDigest returns the SHA-256 of the most recent successful load of
// url, or ok=false if it was never loaded.
func (g *Gateway) LastLoadedDigest(ctx context.Context, url string) (string, bool, error) {
	var sha string
	err := g.db.QueryRow(ctx, embedsql.LastLoadedDigest, url).Scan(&sha)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("last loaded digest: %w", err)
	}
	return sha, true, nil
}
