package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
	"github.com/kirillkom/collateral-appraisal/internal/infrastructure/repository/memory"
)

type cacheFake struct {
	values  map[string][]byte
	getErr  error
	deleted []string
}

func (f *cacheFake) Get(_ context.Context, key string) *goredis.StringCmd {
	if f.getErr != nil {
		return goredis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(string(v), nil)
}

func (f *cacheFake) Set(_ context.Context, key string, value any, _ time.Duration) *goredis.StatusCmd {
	f.values[key] = value.([]byte)
	return goredis.NewStatusResult("OK", nil)
}

func (f *cacheFake) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	for _, k := range keys {
		delete(f.values, k)
		f.deleted = append(f.deleted, k)
	}
	return goredis.NewIntResult(int64(len(keys)), nil)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seeded(t *testing.T) (*memory.ReportRepository, *cacheFake, *ReportRepository) {
	t.Helper()
	store := memory.NewReportRepository()
	if err := store.Create(context.Background(), &domain.Report{ID: "r-1", ReportNumber: "APR-2026-0001", Title: "original"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cache := &cacheFake{values: map[string][]byte{}}
	return store, cache, NewReportRepository(store, cache, time.Minute, quietLogger())
}

func TestGetByIDPopulatesCache(t *testing.T) {
	_, cache, repo := seeded(t)

	if _, err := repo.GetByID(context.Background(), "r-1"); err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if _, ok := cache.values[keyPrefix+"r-1"]; !ok {
		t.Fatalf("expected cache entry after miss")
	}
}

func TestWritesEvictCachedReport(t *testing.T) {
	store, cache, repo := seeded(t)
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "r-1"); err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	report, _ := store.GetByID(ctx, "r-1")
	report.Title = "edited"
	if err := repo.Update(ctx, report, domain.AuditEntry{Action: domain.AuditActionUpdated}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "r-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != "edited" {
		t.Fatalf("stale cache served title %q", got.Title)
	}
	if len(cache.deleted) != 1 {
		t.Fatalf("expected one eviction, got %v", cache.deleted)
	}
}

func TestCacheFailureFallsBackToStore(t *testing.T) {
	_, cache, repo := seeded(t)
	cache.getErr = errors.New("redis: connection refused")

	got, err := repo.GetByID(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != "original" {
		t.Fatalf("unexpected report %+v", got)
	}
}

func TestNotFoundIsNotCached(t *testing.T) {
	_, cache, repo := seeded(t)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, ok := cache.values[keyPrefix+"missing"]; ok {
		t.Fatalf("not found must not be cached")
	}
}
