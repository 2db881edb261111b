package watch

import (
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/vigil/errors"
	vigiltest "github.com/example/vigil/internal/testing"
	"github.com/example/vigil/internal/util"
)

// testWatch builds a valid active watch. Timestamps are truncated to seconds
// because the store persists RFC3339.
func testWatch(id string, createdAt time.Time) *Watch {
	createdAt = createdAt.UTC().Truncate(time.Second)
	return &Watch{
		ID:              id,
		Trigger:         "pr-merged",
		Params:          []string{"owner/repo", "42"},
		PromptTemplate:  "Summarize PR {{number}}",
		Status:          StatusActive,
		IntervalSeconds: 30,
		CreatedAt:       createdAt,
		ExpiresAt:       createdAt.Add(48 * time.Hour),
	}
}

func TestInsertAndGetByID(t *testing.T) {
	db := vigiltest.CreateTestDB(t)
	store := NewStore(db)

	w := testWatch("WCH_roundtrip01", time.Now())
	w.WorkingDir = "/tmp/project"
	require.NoError(t, store.Insert(w))

	got, err := store.GetByID(w.ID)
	require.NoError(t, err)
	assert.Equal(t, w, got)
	assert.Nil(t, got.LastCheckedAt)
	assert.Nil(t, got.FiredAt)
}

func TestGetByIDNotFound(t *testing.T) {
	db := vigiltest.CreateTestDB(t)
	store := NewStore(db)

	_, err := store.GetByID("WCH_missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestListNewestFirst(t *testing.T) {
	db := vigiltest.CreateTestDB(t)
	store := NewStore(db)

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"WCH_oldest", "WCH_middle", "WCH_newest"} {
		w := testWatch(id, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Insert(w))
	}

	watches, err := store.List("all")
	require.NoError(t, err)
	require.Len(t, watches, 3)
	assert.Equal(t, "WCH_newest", watches[0].ID)
	assert.Equal(t, "WCH_oldest", watches[2].ID)
}

func TestListStatusFilter(t *testing.T) {
	db := vigiltest.CreateTestDB(t)
	store := NewStore(db)

	active := testWatch("WCH_active", time.Now())
	require.NoError(t, store.Insert(active))

	fired := testWatch("WCH_fired", time.Now().Add(-time.Minute))
	require.NoError(t, store.Insert(fired))
	require.NoError(t, store.MarkFired(fired.ID, time.Now()))

	got, err := store.List(StatusFired)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "WCH_fired", got[0].ID)

	got, err = store.List("")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestUpdateLastChecked(t *testing.T) {
	db := vigiltest.CreateTestDB(t)
	store := NewStore(db)

	w := testWatch("WCH_checked", time.Now())
	require.NoError(t, store.Insert(w))

	checked := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.UpdateLastChecked(w.ID, checked))

	got, err := store.GetByID(w.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastCheckedAt)
	assert.Equal(t, checked, *got.LastCheckedAt)

	err = store.UpdateLastChecked("WCH_missing", checked)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestMarkFired(t *testing.T) {
	db := vigiltest.CreateTestDB(t)
	store := NewStore(db)

	w := testWatch("WCH_fire", time.Now())
	require.NoError(t, store.Insert(w))

	firedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.MarkFired(w.ID, firedAt))

	got, err := store.GetByID(w.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFired, got.Status)
	require.NotNil(t, got.FiredAt)
	assert.Equal(t, firedAt, *got.FiredAt)

	// Firing a non-active watch is a conflict, not a silent success
	err = store.MarkFired(w.ID, firedAt)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	// Firing an unknown watch is not found
	err = store.MarkFired("WCH_missing", firedAt)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestCancel(t *testing.T) {
	db := vigiltest.CreateTestDB(t)
	store := NewStore(db)

	w := testWatch("WCH_cancel", time.Now())
	require.NoError(t, store.Insert(w))

	require.NoError(t, store.Cancel(w.ID))

	got, err := store.GetByID(w.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Nil(t, got.FiredAt)

	// Cancelling a non-active watch is a conflict naming the current status
	err = store.Cancel(w.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.Contains(t, err.Error(), StatusCancelled)

	// Cancelling an unknown watch is not found
	err = store.Cancel("WCH_missing")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestCancelNeverOverwritesFired(t *testing.T) {
	db := vigiltest.CreateTestDB(t)
	store := NewStore(db)

	w := testWatch("WCH_raced", time.Now())
	require.NoError(t, store.Insert(w))

	// Another process fires the watch after a would-be canceller last read it
	// as active. The cancel must lose: terminal states are never overwritten.
	firedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.MarkFired(w.ID, firedAt))

	err := store.Cancel(w.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	got, err := store.GetByID(w.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFired, got.Status)
	require.NotNil(t, got.FiredAt)
	assert.Equal(t, firedAt, *got.FiredAt)
}

func TestExpireActivePastDeadline(t *testing.T) {
	db := vigiltest.CreateTestDB(t)
	store := NewStore(db)
	now := time.Now().UTC().Truncate(time.Second)

	pastActive := testWatch("WCH_past_active", now.Add(-2*time.Hour))
	pastActive.ExpiresAt = now.Add(-time.Minute)
	require.NoError(t, store.Insert(pastActive))

	pastFired := testWatch("WCH_past_fired", now.Add(-2*time.Hour))
	pastFired.ExpiresAt = now.Add(-time.Minute)
	require.NoError(t, store.Insert(pastFired))
	require.NoError(t, store.MarkFired(pastFired.ID, now.Add(-30*time.Minute)))

	pastCancelled := testWatch("WCH_past_cancelled", now.Add(-2*time.Hour))
	pastCancelled.ExpiresAt = now.Add(-time.Minute)
	require.NoError(t, store.Insert(pastCancelled))
	require.NoError(t, store.UpdateStatus(pastCancelled.ID, StatusCancelled))

	futureActive := testWatch("WCH_future_active", now)
	require.NoError(t, store.Insert(futureActive))

	count, err := store.ExpireActivePastDeadline(now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "only the past-deadline active watch is expired")

	got, err := store.GetByID(pastActive.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)

	got, err = store.GetByID(pastFired.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFired, got.Status, "fired watches are untouched")

	got, err = store.GetByID(pastCancelled.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status, "cancelled watches are untouched")

	got, err = store.GetByID(futureActive.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
}

func TestDelete(t *testing.T) {
	db := vigiltest.CreateTestDB(t)
	store := NewStore(db)

	w := testWatch("WCH_delete", time.Now())
	require.NoError(t, store.Insert(w))

	deleted, err := store.Delete(w.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(w.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestListActive(t *testing.T) {
	db := vigiltest.CreateTestDB(t)
	store := NewStore(db)

	base := time.Now().Add(-time.Hour)
	first := testWatch("WCH_first", base)
	first.LastCheckedAt = util.Ptr(base.Add(time.Minute).UTC().Truncate(time.Second))
	require.NoError(t, store.Insert(first))

	second := testWatch("WCH_second", base.Add(time.Minute))
	require.NoError(t, store.Insert(second))

	fired := testWatch("WCH_done", base.Add(2*time.Minute))
	require.NoError(t, store.Insert(fired))
	require.NoError(t, store.MarkFired(fired.ID, time.Now()))

	active, err := store.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "WCH_first", active[0].ID)
	require.NotNil(t, active[0].LastCheckedAt)
}
