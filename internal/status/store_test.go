package status

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-importer/internal/domain"
	apperrors "github.com/segyhp/loan-importer/pkg/errors"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, ttl), mr
}

func TestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, time.Hour)

	summary := domain.NewRunSummary("RUTA1", 3)
	summary.Add(
		domain.Outcome{Tag: domain.OutcomePersisted, Renewal: true, Payments: 2},
		domain.Outcome{Tag: domain.OutcomeWriteOff, Recoveries: 1},
		domain.Outcome{Tag: domain.OutcomeSkippedNoLead},
	)

	require.NoError(t, store.Record(ctx, summary))
	assert.True(t, mr.Exists("loanimport:summary:RUTA1"))
	assert.Equal(t, time.Hour, mr.TTL("loanimport:summary:RUTA1"))

	got, err := store.LastSummary(ctx, "RUTA1")
	require.NoError(t, err)
	assert.Equal(t, "RUTA1", got.Route)
	assert.Equal(t, 1, got.Counts[domain.OutcomePersisted])
	assert.Equal(t, 1, got.RenewalsProcessed)
	assert.Equal(t, 2, got.PaymentsPersisted)
	assert.True(t, got.Reconciled())
}

func TestStore_LatestWins(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, 0)

	first := domain.NewRunSummary("RUTA1", 1)
	second := domain.NewRunSummary("RUTA1", 7)
	require.NoError(t, store.SaveSummary(ctx, first))
	require.NoError(t, store.SaveSummary(ctx, second))

	got, err := store.LastSummary(ctx, "RUTA1")
	require.NoError(t, err)
	assert.Equal(t, 7, got.SourceRows)
}

func TestStore_Missing(t *testing.T) {
	store, _ := newTestStore(t, 0)

	_, err := store.LastSummary(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNoSummary)
}

func TestStore_RedisDown(t *testing.T) {
	store, mr := newTestStore(t, 0)
	mr.Close()

	err := store.SaveSummary(context.Background(), domain.NewRunSummary("RUTA1", 0))
	require.Error(t, err)

	var be *apperrors.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, apperrors.ErrCodeCacheError, be.Code)
}
