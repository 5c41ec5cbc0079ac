package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks a Config against its struct tags and cross-field
// invariants the tag syntax can't express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry.enabled is true")
	}

	switch cfg.MetadataStore.Type {
	case "postgres":
		if cfg.MetadataStore.Postgres == nil {
			return fmt.Errorf("metadata_store.postgres is required when metadata_store.type is postgres")
		}
	case "sqlite":
		if cfg.MetadataStore.SQLite == nil {
			return fmt.Errorf("metadata_store.sqlite is required when metadata_store.type is sqlite")
		}
	}

	switch cfg.BlobStore.Type {
	case "s3":
		if cfg.BlobStore.S3 == nil || cfg.BlobStore.S3.Bucket == "" {
			return fmt.Errorf("blob_store.s3.bucket is required when blob_store.type is s3")
		}
	case "fs":
		if cfg.BlobStore.FS == nil || cfg.BlobStore.FS.BasePath == "" {
			return fmt.Errorf("blob_store.fs.base_path is required when blob_store.type is fs")
		}
	}

	mountPaths := make(map[string]bool, len(cfg.Mounts))
	for _, m := range cfg.Mounts {
		if mountPaths[m.Path] {
			return fmt.Errorf("duplicate mount path %q", m.Path)
		}
		mountPaths[m.Path] = true
	}

	return nil
}
