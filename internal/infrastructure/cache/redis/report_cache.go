// Package redis caches report reads in front of the report repository.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
	"github.com/kirillkom/collateral-appraisal/internal/core/ports"
)

const keyPrefix = "appraisal:report:"

type cacheClient interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// ReportRepository is a read-through cache for single reports. Every write
// goes to the wrapped repository first and then evicts the key. Cache
// failures are logged and never fail the call.
type ReportRepository struct {
	next   ports.ReportRepository
	client cacheClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewClient(ctx context.Context, addr string) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewReportRepository(next ports.ReportRepository, client cacheClient, ttl time.Duration, logger *slog.Logger) *ReportRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportRepository{next: next, client: client, ttl: ttl, logger: logger}
}

func (r *ReportRepository) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	key := keyPrefix + id
	data, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var report domain.Report
		if err := json.Unmarshal(data, &report); err == nil {
			return &report, nil
		}
		r.logger.Warn("report_cache_decode_failed", "report_id", id, "error", err)
	case !errors.Is(err, goredis.Nil):
		r.logger.Warn("report_cache_get_failed", "report_id", id, "error", err)
	}

	report, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(report); err == nil {
		if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
			r.logger.Warn("report_cache_set_failed", "report_id", id, "error", err)
		}
	}
	return report, nil
}

func (r *ReportRepository) List(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, error) {
	return r.next.List(ctx, filter)
}

func (r *ReportRepository) Create(ctx context.Context, report *domain.Report) error {
	return r.next.Create(ctx, report)
}

func (r *ReportRepository) Update(ctx context.Context, report *domain.Report, entry domain.AuditEntry) error {
	return r.evictAfter(ctx, report.ID, r.next.Update(ctx, report, entry))
}

func (r *ReportRepository) UpdateStatus(ctx context.Context, id string, change domain.StatusChange) error {
	return r.evictAfter(ctx, id, r.next.UpdateStatus(ctx, id, change))
}

func (r *ReportRepository) UpdateValuation(ctx context.Context, id string, input domain.ValuationInput, result domain.ValuationResult, updatedAt time.Time) error {
	return r.evictAfter(ctx, id, r.next.UpdateValuation(ctx, id, input, result, updatedAt))
}

func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	return r.evictAfter(ctx, id, r.next.Delete(ctx, id))
}

// evictAfter drops the cached copy even when the write failed, since the
// store may have applied it.
func (r *ReportRepository) evictAfter(ctx context.Context, id string, writeErr error) error {
	if err := r.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		r.logger.Warn("report_cache_evict_failed", "report_id", id, "error", err)
	}
	return writeErr
}
