package config

import (
	"context"
	"fmt"
	"os"

	"github.com/agentvfs/core/pkg/blobstore"
	blobfs "github.com/agentvfs/core/pkg/blobstore/fs"
	blobmemory "github.com/agentvfs/core/pkg/blobstore/memory"
	blobs3 "github.com/agentvfs/core/pkg/blobstore/s3"
	"github.com/agentvfs/core/pkg/metadatastore"
	"github.com/agentvfs/core/pkg/metadatastore/badger"
	metamemory "github.com/agentvfs/core/pkg/metadatastore/memory"
	"github.com/agentvfs/core/pkg/metadatastore/postgres"
	"github.com/agentvfs/core/pkg/metadatastore/sqlite"
	"github.com/mitchellh/mapstructure"
)

// CreateMetadataStore builds a MetadataStore instance from configuration.
func CreateMetadataStore(ctx context.Context, cfg MetadataStoreConfig) (metadatastore.Store, error) {
	switch cfg.Type {
	case "memory":
		return metamemory.New(), nil
	case "badger":
		var badgerCfg badger.Config
		if err := mapstructure.Decode(cfg.Badger, &badgerCfg); err != nil {
			return nil, fmt.Errorf("invalid badger config: %w", err)
		}
		return badger.Open(ctx, badgerCfg)
	case "postgres":
		var pgCfg postgres.Config
		if err := mapstructure.Decode(cfg.Postgres, &pgCfg); err != nil {
			return nil, fmt.Errorf("invalid postgres config: %w", err)
		}
		return postgres.Open(ctx, pgCfg)
	case "sqlite":
		var sqliteCfg sqlite.Config
		if err := mapstructure.Decode(cfg.SQLite, &sqliteCfg); err != nil {
			return nil, fmt.Errorf("invalid sqlite config: %w", err)
		}
		return sqlite.Open(ctx, sqliteCfg)
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q", cfg.Type)
	}
}

// CreateBlobStore builds a BlobStore instance from configuration.
func CreateBlobStore(ctx context.Context, cfg BlobStoreConfig) (blobstore.Store, error) {
	switch cfg.Type {
	case "memory":
		return blobmemory.New(), nil
	case "fs":
		if cfg.FS == nil || cfg.FS.BasePath == "" {
			return nil, fmt.Errorf("filesystem blob store requires fs.base_path")
		}
		createDir := true
		if cfg.FS.CreateDir != nil {
			createDir = *cfg.FS.CreateDir
		}
		dirMode := os.FileMode(cfg.FS.DirMode)
		if dirMode == 0 {
			dirMode = 0755
		}
		fileMode := os.FileMode(cfg.FS.FileMode)
		if fileMode == 0 {
			fileMode = 0644
		}
		return blobfs.New(blobfs.Config{
			BasePath:  cfg.FS.BasePath,
			CreateDir: createDir,
			DirMode:   dirMode,
			FileMode:  fileMode,
		})
	case "s3":
		if cfg.S3 == nil || cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("S3 blob store requires s3.bucket")
		}
		return blobs3.NewFromConfig(ctx, blobs3.Config{
			Bucket:         cfg.S3.Bucket,
			Region:         cfg.S3.Region,
			Endpoint:       cfg.S3.Endpoint,
			AccessKey:      cfg.S3.AccessKeyID,
			SecretKey:      cfg.S3.SecretAccessKey,
			KeyPrefix:      cfg.S3.Prefix,
			MaxRetries:     cfg.S3.MaxRetries,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob store type: %q", cfg.Type)
	}
}
