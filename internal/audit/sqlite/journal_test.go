package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrokoperasi/backend/internal/domain"
)

func TestJournalAppendsAndListsNewestFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.db")
	j, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = j.Close()
	})

	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, j.CreateAuditLog(ctx, domain.AuditLog{
		ID:        "aud_1",
		ActorID:   "usr_seed_pos01",
		Action:    domain.ActionCreate,
		Entity:    "TRANSACTION",
		EntityID:  "trx_1",
		NewValue:  json.RawMessage(`{"totalAmount":"54.00"}`),
		Timestamp: base,
	}))
	require.NoError(t, j.CreateAuditLog(ctx, domain.AuditLog{
		ID:        "aud_2",
		ActorID:   "usr_seed_finance",
		Action:    domain.ActionUpdate,
		Entity:    "MEMBER_INVESTMENT",
		EntityID:  "inv_1",
		Details:   "approved",
		Timestamp: base.Add(time.Minute),
	}))

	logs, err := j.ListAuditLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "aud_2", logs[0].ID)
	assert.Nil(t, logs[0].NewValue)
	assert.JSONEq(t, `{"totalAmount":"54.00"}`, string(logs[1].NewValue))
	assert.True(t, logs[1].Timestamp.Equal(base))
}

func TestJournalRejectsDuplicateIDs(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = j.Close()
	})

	entry := domain.AuditLog{ID: "aud_dup", Action: domain.ActionLogin, Entity: "AUTH", Timestamp: time.Now().UTC()}
	require.NoError(t, j.CreateAuditLog(context.Background(), entry))
	assert.Error(t, j.CreateAuditLog(context.Background(), entry))
}
