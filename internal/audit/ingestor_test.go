package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nulzo/misan-console/internal/store"
	"github.com/nulzo/misan-console/internal/store/sqlite"
)

func TestIngestor_PersistsOnStop(t *testing.T) {
	repo, err := sqlite.NewSQLiteStorage(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ing := NewIngestor(zap.NewNop(), repo)
	ing.Start(context.Background())

	ctx := store.WithActor(context.Background(), "admin-1")
	ing.Record(ctx, "settings.pricing", "update", map[string]any{"keys": []string{"vat_rate"}})
	ing.Record(context.Background(), "alert_rules", "delete", nil)
	ing.Stop()

	events, err := repo.Audit().ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	byTarget := map[string]string{}
	for _, ev := range events {
		byTarget[ev.TargetResource] = ev.Actor + "|" + ev.DetailsJSON
	}
	assert.Equal(t, `admin-1|{"keys":["vat_rate"]}`, byTarget["settings.pricing"])
	assert.Equal(t, "system|{}", byTarget["alert_rules"])
}

func TestIngestor_FlushesOnTicker(t *testing.T) {
	repo, err := sqlite.NewSQLiteStorage(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ing := NewIngestor(zap.NewNop(), repo).(*ingestor)
	ing.flushTime = 10 * time.Millisecond
	ing.Start(context.Background())
	t.Cleanup(ing.Stop)

	ing.Record(context.Background(), "email_templates", "create", map[string]string{"id": "t1"})

	assert.Eventually(t, func() bool {
		events, err := repo.Audit().ListRecent(context.Background(), 10)
		return err == nil && len(events) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestIngestor_RecordAfterStopIsDropped(t *testing.T) {
	repo, err := sqlite.NewSQLiteStorage(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ing := NewIngestor(zap.NewNop(), repo)
	ing.Start(context.Background())
	ing.Stop()

	assert.NotPanics(t, func() {
		ing.Record(context.Background(), "settings.site", "update", nil)
	})
	ing.Stop()
}
