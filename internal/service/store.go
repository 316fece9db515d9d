package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/bookburst/internal/apperror"
	"github.com/sakif/bookburst/internal/repository"
)

// putJSON serializes v and writes it under key.
func putJSON(ctx context.Context, store repository.KVStore, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := store.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// getJSON decodes the record under key into dst.
//
// It returns found == false when the key is absent. A record that fails to
// decode is logged, deleted, and reported as absent so the caller falls back
// to its defaults. Only store failures are returned as errors.
func getJSON(ctx context.Context, store repository.KVStore, logger *slog.Logger, key string, dst any) (bool, error) {
	raw, found, err := store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	if !found {
		return false, nil
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		discardCorrupt(ctx, store, logger, key, err)
		return false, nil
	}
	return true, nil
}

func discardCorrupt(ctx context.Context, store repository.KVStore, logger *slog.Logger, key string, cause error) {
	corrupt := apperror.CorruptRecord(key, cause)
	logger.Warn("discarding unreadable stored record",
		slog.String("key", key),
		slog.String("error", errors.Unwrap(corrupt).Error()),
	)
	if err := store.Delete(ctx, key); err != nil {
		logger.Error("failed to delete unreadable stored record",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// reason is the part of a failure that is safe to put in a notification.
func reason(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Please try again."
}
