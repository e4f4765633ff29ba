package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dunamismax/pixelanime/internal/domain"
	"github.com/dunamismax/pixelanime/internal/logging"
	"github.com/dunamismax/pixelanime/internal/storage"
	"github.com/dunamismax/pixelanime/internal/store"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, st storage.Store, index store.ArtifactIndex, name string, age time.Duration) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, name, []byte(name), "image/png"))
	require.NoError(t, index.Put(ctx, domain.Artifact{Name: name, Kind: domain.KindConverted, CreatedAt: now.Add(-age)}))
}

func newFixture(t *testing.T, maxAge time.Duration, batch int) (*Sweeper, *storage.LocalStore, *store.MemoryArtifactIndex) {
	t.Helper()
	st, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	index := store.NewMemoryArtifactIndex()
	sw := NewSweeper(st, index, maxAge, batch, logging.Discard())
	sw.now = func() time.Time { return now }
	return sw, st, index
}

func TestSweepDeletesOnlyExpired(t *testing.T) {
	sw, st, index := newFixture(t, 24*time.Hour, 2)
	ctx := context.Background()

	seed(t, st, index, "old1.png", 48*time.Hour)
	seed(t, st, index, "old2.png", 30*time.Hour)
	seed(t, st, index, "old3.png", 25*time.Hour)
	seed(t, st, index, "fresh.png", time.Hour)

	res, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Deleted)
	assert.Zero(t, res.Failed)

	for _, name := range []string{"old1.png", "old2.png", "old3.png"} {
		exists, err := st.Exists(ctx, name)
		require.NoError(t, err)
		assert.False(t, exists, name)
		_, ok, err := index.Get(ctx, name)
		require.NoError(t, err)
		assert.False(t, ok, name)
	}

	exists, err := st.Exists(ctx, "fresh.png")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSweepIgnoresMissingFiles(t *testing.T) {
	sw, _, index := newFixture(t, time.Hour, 10)
	ctx := context.Background()
	require.NoError(t, index.Put(ctx, domain.Artifact{Name: "ghost.png", CreatedAt: now.Add(-2 * time.Hour)}))

	res, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
}

type failingStore struct {
	storage.Store
}

func (failingStore) Delete(context.Context, string) error {
	return errors.New("disk on fire")
}

func TestSweepCountsFailuresAndTerminates(t *testing.T) {
	local, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	index := store.NewMemoryArtifactIndex()
	seed(t, local, index, "stuck.png", 48*time.Hour)

	sw := NewSweeper(failingStore{Store: local}, index, time.Hour, 1, logging.Discard())
	sw.now = func() time.Time { return now }

	res, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, res.Deleted)

	_, ok, err := index.Get(context.Background(), "stuck.png")
	require.NoError(t, err)
	assert.True(t, ok, "index entry kept for the next sweep")
}

func TestSweepDisabled(t *testing.T) {
	sw, st, index := newFixture(t, 0, 0)
	seed(t, st, index, "old.png", 1000*time.Hour)

	res, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Scanned)
	assert.False(t, sw.Enabled())
}

func TestIntervalFromSchedule(t *testing.T) {
	interval, err := IntervalFromSchedule("@every 1h")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, interval)

	_, err = IntervalFromSchedule("0 * * * *")
	assert.Error(t, err)
	_, err = IntervalFromSchedule("@every -1m")
	assert.Error(t, err)
}
