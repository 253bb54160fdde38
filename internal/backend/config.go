package backend

import (
	"fmt"

	"finca/internal/blob"
	"finca/internal/config"
	gsheet "finca/internal/sheets/google"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		Type:                      BackendType(appConfig.DataBackend),
		BlobType:                  BlobType(appConfig.BlobBackend),
		SQLiteDBPath:              appConfig.SQLiteDBPath,
		SessionLocalContributions: appConfig.SessionLocalContributions,
		S3: blob.S3Config{
			Endpoint:      appConfig.S3Endpoint,
			Bucket:        appConfig.S3Bucket,
			Region:        appConfig.S3Region,
			AccessKey:     appConfig.S3AccessKey,
			SecretKey:     appConfig.S3SecretKey,
			PublicBaseURL: appConfig.S3PublicBaseURL,
		},
		Sheets: gsheet.Config{
			SpreadsheetID:   appConfig.GoogleSpreadsheetID,
			SheetName:       appConfig.GoogleSheetName,
			CredentialsJSON: appConfig.GoogleServiceAccountJSON,
			CredentialsFile: appConfig.GoogleServiceAccountFile,
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if !c.BlobType.IsValid() {
		return fmt.Errorf("invalid blob backend: %s", c.BlobType)
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	if c.BlobType == S3Blobs && c.S3.Bucket == "" {
		return fmt.Errorf("S3 bucket is required for s3 blob backend")
	}
	return nil
}

// GetBackendTypeStrings returns all valid record store names
func GetBackendTypeStrings() []string {
	return []string{SQLiteBackend.String(), MemoryBackend.String()}
}
