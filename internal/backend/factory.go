package backend

import (
	"context"
	"fmt"
	"log/slog"

	"finca/internal/blob"
	applog "finca/internal/log"
	"finca/internal/records/memory"
	"finca/internal/sheets"
	gsheet "finca/internal/sheets/google"
	sheetsmem "finca/internal/sheets/memory"
	"finca/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(applog.FieldComponent, applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		result = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	result.Blobs = f.createBlobStore(config)
	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	result := &BackendResult{
		Expenses:      repo,
		Contributions: repo,
		Ready:         repo.Ping,
		Cleanup:       repo.Close,
	}
	if config.SessionLocalContributions {
		result.Contributions = memory.New()
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"session_local_contributions", config.SessionLocalContributions)
	return result, nil
}

func (f *DefaultFactory) createMemoryBackend() *BackendResult {
	store := memory.New()
	f.logger.Info("Initialized memory backend")
	return &BackendResult{
		Expenses:      store,
		Contributions: store,
		Ready:         func(context.Context) error { return nil },
	}
}

func (f *DefaultFactory) createBlobStore(config Config) blob.Store {
	if config.BlobType == S3Blobs {
		f.logger.Info("Initialized S3 blob store", "bucket", config.S3.Bucket, "endpoint", config.S3.Endpoint)
		return blob.NewS3Store(config.S3)
	}
	f.logger.Info("Initialized memory blob store")
	return blob.NewMemoryStore("")
}

// NewMirror returns the Google Sheets mirror when a spreadsheet is configured
// and an in-memory mirror otherwise.
func NewMirror(ctx context.Context, config Config, logger *slog.Logger) (sheets.Mirror, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Sheets.SpreadsheetID == "" {
		logger.Warn("No spreadsheet configured, mirroring to memory")
		return sheetsmem.New(), nil
	}
	cli, err := gsheet.New(ctx, config.Sheets, logger.With(applog.FieldComponent, applog.ComponentSheets))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	logger.Info("Initialized Google Sheets mirror", "sheet", config.Sheets.SheetName)
	return cli, nil
}
