package model

import "time"

// DocumentStatus is the lifecycle state of a document in the registry.
type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusLoaded     DocumentStatus = "loaded"
	StatusFailed     DocumentStatus = "failed"
	StatusSkipped    DocumentStatus = "skipped"
)

// DocumentSummary captures metrics from processing a single document.
type DocumentSummary struct {
	URL         string
	SHA256      string
	Status      DocumentStatus
	RowsRaw     int64 // rows produced by the table extractor
	RowsValid   int64 // rows surviving normalization and the validity filter
	RowsDropped int64
	Inserted    int64
	Updated     int64
	Duplicates  int64
	Superseded  int64
	Duration    time.Duration
}

// FailedDocument is one entry of the end-of-run failure list.
type FailedDocument struct {
	URL    string
	Phase  string
	Reason string
}

// RunSummary captures metrics from a full run over all located documents.
type RunSummary struct {
	RunID       string
	Located     int
	Processed   int
	Skipped     int
	Inserted    int64
	Updated     int64
	Duplicates  int64
	Documents   []DocumentSummary
	Failed      []FailedDocument
	Interrupted bool
	Duration    time.Duration
}
