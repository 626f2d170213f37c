package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/vitos/signal_copier/internal/config"
	"github.com/vitos/signal_copier/internal/domain"
)

// Open returns the correlation store selected by cfg.Driver.
func Open(cfg config.StorageConfig) (domain.CorrelationRepository, error) {
	var (
		repo domain.CorrelationRepository
		err  error
	)
	switch cfg.Driver {
	case "sqlite", "":
		repo, err = NewSQLiteStore(cfg.DSN)
	case "postgres":
		repo, err = NewPostgresStore(cfg.DSN)
	case "json":
		repo, err = NewJSONStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	return repo, nil
}

// Import copies legacy entries in ascending message order.
func Import(ctx context.Context, dst domain.CorrelationRepository, entries map[int64][]string) (int, error) {
	keys := make([]int64, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	n := 0
	for _, k := range keys {
		if err := dst.Record(ctx, k, entries[k]); err != nil {
			return n, fmt.Errorf("import message %d: %w", k, err)
		}
		n += len(entries[k])
	}
	return n, nil
}
