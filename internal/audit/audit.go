// Package audit writes the append-only audit trail. Recording happens after a
// workflow has committed and never fails the caller.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/metrics"
	"agrokoperasi/backend/internal/xid"
)

//go:generate mockgen -source=audit.go -destination=sink_mock.go -package=audit

const (
	writeTimeout = 3 * time.Second
	DefaultLimit = 100
)

type Sink interface {
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
}

type target struct {
	name string
	sink Sink
}

type Recorder struct {
	primary Sink
	targets []target
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRecorder records into primary, which also serves reads.
func NewRecorder(log *zap.Logger, m *metrics.Metrics, primary Sink) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		primary: primary,
		targets: []target{{name: "ledger", sink: primary}},
		log:     log,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithJournal adds a write-only secondary sink.
func (r *Recorder) WithJournal(name string, sink Sink) *Recorder {
	r.targets = append(r.targets, target{name: name, sink: sink})
	return r
}

// Entry builds a log entry with JSON snapshots of the old and new values.
// Values that fail to marshal are dropped from the entry.
func Entry(actor domain.Actor, action string, entity string, entityID string, oldValue any, newValue any, details string) domain.AuditLog {
	return domain.AuditLog{
		ActorID:       actor.UserID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		Entity:        entity,
		EntityID:      entityID,
		OldValue:      snapshot(oldValue),
		NewValue:      snapshot(newValue),
		Details:       details,
	}
}

func snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

func (r *Recorder) Record(ctx context.Context, entry domain.AuditLog) {
	if r == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = xid.New("aud")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now()
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	for _, t := range r.targets {
		if err := t.sink.CreateAuditLog(writeCtx, entry); err != nil {
			r.metrics.AuditFailure(t.name)
			r.log.Warn("audit write failed",
				zap.String("sink", t.name),
				zap.String("action", entry.Action),
				zap.String("entity", entry.Entity),
				zap.String("entity_id", entry.EntityID),
				zap.Error(err),
			)
		}
	}
}

func (r *Recorder) List(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = DefaultLimit
	}
	return r.primary.ListAuditLogs(ctx, limit)
}
