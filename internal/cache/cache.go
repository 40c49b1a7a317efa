package cache

import (
	"context"
	"time"
)

const (
	SalesReportPrefix  = "reports:sales:"
	InventoryReportKey = "reports:inventory"
)

// ReportCache stores rendered report payloads. A miss is (false, nil); callers
// treat any error as a miss and recompute.
type ReportCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

func SalesReportKey(from time.Time, to time.Time) string {
	return SalesReportPrefix + stamp(from) + ":" + stamp(to)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string, _ any) (bool, error) {
	return false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}

func (NoopReportCache) DeletePrefix(_ context.Context, _ string) error {
	return nil
}
