package main

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"mailvault/exporter/internal/config"
	"mailvault/exporter/internal/storage"
	"mailvault/exporter/internal/storage/memory"
	sqlstore "mailvault/exporter/internal/storage/sql"
)

const archiveTypeJSON = "json"

// openArchive 按配置打开归档；SQL 归档同时返回底层连接用于健康检查
func openArchive(cfg *config.Config, log *zap.Logger) (storage.Archive, *sql.DB, error) {
	if cfg.Database.Type == archiveTypeJSON {
		store, err := memory.LoadFile(cfg.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using JSON archive dump", zap.String("path", cfg.Database.DSN))
		return store, nil, nil
	}

	store, err := openSQLArchive(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return store, store.DB(), nil
}

func openSQLArchive(cfg *config.Config, log *zap.Logger) (*sqlstore.Store, error) {
	store, err := sqlstore.NewStore(sqlstore.Options{
		Driver:          cfg.Database.Type,
		DSN:             cfg.Database.DSN,
		Key:             cfg.Database.Key,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		Logger:          log.Named("archive"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return store, nil
}
