package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/juicer/internal/juicer"
)

// memRepo is an in memory juicer.Repository that classifies upserts the same
// way the mongo repo does.
type memRepo struct {
	docs map[string]juicer.Headline

	pingErr   error
	expiryErr error
	failOn    string // id whose upsert fails

	expiryCalls int
	upserts     int
}

func newMemRepo() *memRepo {
	return &memRepo{docs: map[string]juicer.Headline{}}
}

func (m *memRepo) Ping(context.Context) error { return m.pingErr }

func (m *memRepo) EnsureExpiry(context.Context) error {
	m.expiryCalls++
	return m.expiryErr
}

func (m *memRepo) UpsertHeadline(_ context.Context, h juicer.Headline, policy juicer.DisplayTimePolicy) (juicer.UpsertResult, error) {
	if h.ID == m.failOn {
		return juicer.UpsertResult{}, errors.New("write concern error")
	}
	m.upserts++

	before, ok := m.docs[h.ID]
	if !ok {
		m.docs[h.ID] = h
		return juicer.UpsertResult{Inserted: true}, nil
	}

	after := before
	after.Title = h.Title
	after.Timestamp = h.Timestamp
	if policy == juicer.DisplayTimeRefresh {
		after.DisplayTime = h.DisplayTime
	}
	m.docs[h.ID] = after

	return juicer.UpsertResult{Updated: after.Title != before.Title || after.DisplayTime != before.DisplayTime}, nil
}

func (m *memRepo) LatestHeadlines(context.Context, int) ([]juicer.Headline, error) {
	return nil, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var (
	first  = time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	second = first.Add(4 * time.Minute)
)

func TestReconcile_Scenario(t *testing.T) {
	repo := newMemRepo()
	r := New(repo, juicer.DisplayTimePreserve)
	r.now = fixedClock(first)

	counts, err := r.Reconcile(context.Background(), []juicer.Headline{
		{ID: "A1", Title: "Fed holds rates", DisplayTime: "2m"},
		{ID: "A3", Title: "Oil rises", DisplayTime: "5m"},
	})
	require.NoError(t, err)
	assert.Equal(t, juicer.Counts{Inserted: 2}, counts)

	r.now = fixedClock(second)
	counts, err = r.Reconcile(context.Background(), []juicer.Headline{
		{ID: "A1", Title: "Fed holds rates steady", DisplayTime: "6m"},
		{ID: "A3", Title: "Oil rises", DisplayTime: "9m"},
	})
	require.NoError(t, err)
	assert.Equal(t, juicer.Counts{Updated: 1}, counts)

	a1 := repo.docs["A1"]
	assert.Equal(t, "Fed holds rates steady", a1.Title)
	assert.Equal(t, "2m", a1.DisplayTime, "display time is kept from the first sighting")
	assert.Equal(t, second, a1.Timestamp)
	assert.Equal(t, second, repo.docs["A3"].Timestamp, "timestamp refreshed on unchanged headlines")
}

func TestReconcile_Idempotent(t *testing.T) {
	repo := newMemRepo()
	r := New(repo, juicer.DisplayTimePreserve)
	r.now = fixedClock(first)

	batch := []juicer.Headline{
		{ID: "B1", Title: "Stocks open higher", DisplayTime: "1m"},
		{ID: "B2", Title: "Yields slip", DisplayTime: "3m"},
	}

	_, err := r.Reconcile(context.Background(), batch)
	require.NoError(t, err)

	counts, err := r.Reconcile(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, juicer.Counts{}, counts)
	assert.Len(t, repo.docs, 2)
}

func TestReconcile_DuplicateIDs(t *testing.T) {
	repo := newMemRepo()
	r := New(repo, juicer.DisplayTimePreserve)
	r.now = fixedClock(first)

	counts, err := r.Reconcile(context.Background(), []juicer.Headline{
		{ID: "D1", Title: "First take", DisplayTime: "1m"},
		{ID: "D1", Title: "Second take", DisplayTime: "1m"},
	})
	require.NoError(t, err)
	assert.Equal(t, juicer.Counts{Inserted: 1, Updated: 1}, counts)
	assert.Len(t, repo.docs, 1)
	assert.Equal(t, "Second take", repo.docs["D1"].Title)
}

func TestReconcile_Empty(t *testing.T) {
	repo := newMemRepo()
	r := New(repo, juicer.DisplayTimePreserve)

	counts, err := r.Reconcile(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, juicer.Counts{}, counts)
}

func TestReconcile_RefreshPolicy(t *testing.T) {
	repo := newMemRepo()
	r := New(repo, juicer.DisplayTimeRefresh)
	r.now = fixedClock(first)

	_, err := r.Reconcile(context.Background(), []juicer.Headline{{ID: "R1", Title: "Gold steady", DisplayTime: "1m"}})
	require.NoError(t, err)

	counts, err := r.Reconcile(context.Background(), []juicer.Headline{{ID: "R1", Title: "Gold steady", DisplayTime: "5m"}})
	require.NoError(t, err)
	assert.Equal(t, juicer.Counts{Updated: 1}, counts)
	assert.Equal(t, "5m", repo.docs["R1"].DisplayTime)
}

func TestReconcile_StoreUnavailable(t *testing.T) {
	repo := newMemRepo()
	repo.pingErr = errors.New("server selection timeout")
	r := New(repo, juicer.DisplayTimePreserve)

	counts, err := r.Reconcile(context.Background(), []juicer.Headline{{ID: "A1", Title: "t", DisplayTime: "1m"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, juicer.ErrStoreUnavailable)
	assert.ErrorIs(t, err, juicer.ErrStore)
	assert.Equal(t, juicer.Counts{}, counts)
	assert.Zero(t, repo.upserts)
	assert.Zero(t, repo.expiryCalls)
}

func TestReconcile_WriteFailure(t *testing.T) {
	repo := newMemRepo()
	repo.failOn = "W2"
	r := New(repo, juicer.DisplayTimePreserve)

	counts, err := r.Reconcile(context.Background(), []juicer.Headline{
		{ID: "W1", Title: "one", DisplayTime: "1m"},
		{ID: "W2", Title: "two", DisplayTime: "1m"},
		{ID: "W3", Title: "three", DisplayTime: "1m"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, juicer.ErrStoreWrite)
	assert.Equal(t, juicer.Counts{Inserted: 1}, counts)
	assert.NotContains(t, repo.docs, "W3")
}

func TestReconcile_ExpiryEnsuredOnce(t *testing.T) {
	repo := newMemRepo()
	repo.expiryErr = errors.New("index build in progress")
	r := New(repo, juicer.DisplayTimePreserve)

	_, err := r.Reconcile(context.Background(), nil)
	require.NoError(t, err, "expiry failures don't fail the cycle")
	assert.Equal(t, 1, repo.expiryCalls)

	repo.expiryErr = nil
	_, err = r.Reconcile(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.expiryCalls, "retried after failing")

	_, err = r.Reconcile(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.expiryCalls, "not repeated once ensured")
}

func TestReconcile_MarkExpiryEnsured(t *testing.T) {
	repo := newMemRepo()
	r := New(repo, juicer.DisplayTimePreserve)
	r.MarkExpiryEnsured()

	_, err := r.Reconcile(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, repo.expiryCalls)
}
