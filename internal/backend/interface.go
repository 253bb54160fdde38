package backend

import (
	"context"

	"finca/internal/blob"
	"finca/internal/records"
	gsheet "finca/internal/sheets/google"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the stores the ledger runs on and how to release them.
type BackendResult struct {
	Expenses      records.ExpenseBackend
	Contributions records.ContributionStore
	Blobs         blob.Store
	// Ready reports whether the durable store can serve requests.
	Ready   func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Close runs the cleanup function when there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type     BackendType
	BlobType BlobType

	// SQLite specific
	SQLiteDBPath string
	// Keep contributions in process memory even when expenses are durable.
	SessionLocalContributions bool

	// S3 specific
	S3 blob.S3Config

	// Spreadsheet mirror; empty spreadsheet id selects the in-memory mirror.
	Sheets gsheet.Config
}

// BackendType represents the type of record store
type BackendType string

// BlobType represents the type of attachment storage
type BlobType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"

	MemoryBlobs BlobType = "memory"
	S3Blobs     BlobType = "s3"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

func (bt BlobType) IsValid() bool {
	return bt == MemoryBlobs || bt == S3Blobs
}
