package seed

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"matcha/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func newTestSeeder(store Store, numUsers, batchSize int, atomicity Atomicity) *Seeder {
	opts := testOptions()
	opts.NumUsers = numUsers
	opts.BatchSize = batchSize
	opts.Atomicity = atomicity
	gen := NewGenerator(DefaultCatalog(), opts, rand.New(rand.NewSource(42))).
		WithClock(func() time.Time { return fixedNow })
	return NewSeeder(store, gen, opts)
}

// memStore is an in-memory Store that models transactions and savepoints.
type memStore struct {
	tags      map[string]uint
	committed []*Profile
	ops       []string
	nextID    uint

	failIndex int // InsertProfile fails for this user index after a partial write
	tagErr    error
	commitErr error
}

func newMemStore() *memStore {
	return &memStore{tags: make(map[string]uint)}
}

func (m *memStore) EnsureTags(_ context.Context, names []string) (map[string]uint, error) {
	if m.tagErr != nil {
		return nil, m.tagErr
	}
	for _, n := range names {
		if _, ok := m.tags[n]; !ok {
			m.tags[n] = uint(len(m.tags) + 1)
		}
	}
	out := make(map[string]uint, len(m.tags))
	for k, v := range m.tags {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) Begin(context.Context) (Tx, error) {
	m.ops = append(m.ops, "begin")
	return &memTx{store: m, savepoints: make(map[string]int)}, nil
}

func (m *memStore) committedIndexes() []int {
	out := make([]int, 0, len(m.committed))
	for _, p := range m.committed {
		out = append(out, p.Index)
	}
	return out
}

type memTx struct {
	store      *memStore
	pending    []*Profile
	savepoints map[string]int
	closed     bool
}

func (t *memTx) InsertProfile(_ context.Context, p *Profile, _ map[string]uint) error {
	t.store.nextID++
	p.User.ID = t.store.nextID
	t.pending = append(t.pending, p)
	if p.Index == t.store.failIndex {
		return errors.New("location insert failed")
	}
	return nil
}

func (t *memTx) SavePoint(name string) error {
	t.savepoints[name] = len(t.pending)
	return nil
}

func (t *memTx) RollbackTo(name string) error {
	n, ok := t.savepoints[name]
	if !ok {
		return errors.New("unknown savepoint " + name)
	}
	t.pending = t.pending[:n]
	return nil
}

func (t *memTx) Commit() error {
	if t.closed {
		return errors.New("transaction already closed")
	}
	t.closed = true
	if t.store.commitErr != nil {
		return t.store.commitErr
	}
	t.store.ops = append(t.store.ops, "commit")
	t.store.committed = append(t.store.committed, t.pending...)
	return nil
}

func (t *memTx) Rollback() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.store.ops = append(t.store.ops, "rollback")
	return nil
}

func TestSeeder_Run_CommitsEveryBatch(t *testing.T) {
	store := newMemStore()
	summary, err := newTestSeeder(store, 7, 3, AtomicityUser).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Len(t, store.committed, 7)
	assert.Equal(t, []string{"begin", "commit", "begin", "commit", "begin", "commit"}, store.ops)
	assert.Len(t, store.tags, 50)

	for i, r := range summary.Results {
		assert.Equal(t, i+1, r.Index)
		assert.Equal(t, OutcomeCreated, r.Outcome)
		assert.NotZero(t, r.UserID)
	}
}

func TestSeeder_Run_UserAtomicityKeepsBatch(t *testing.T) {
	store := newMemStore()
	store.failIndex = 5

	summary, err := newTestSeeder(store, 10, 50, AtomicityUser).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 9, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Zero(t, summary.RolledBack)
	assert.Equal(t, []int{1, 2, 3, 4, 6, 7, 8, 9, 10}, store.committedIndexes())

	failed := summary.Results[4]
	assert.Equal(t, OutcomeFailed, failed.Outcome)
	assert.Equal(t, ReasonStore, failed.Reason)
	assert.Error(t, failed.Err)
	assert.Equal(t, []Result{failed}, summary.Failures())
}

func TestSeeder_Run_BatchAtomicityDiscardsOpenBatch(t *testing.T) {
	store := newMemStore()
	store.failIndex = 5

	summary, err := newTestSeeder(store, 10, 3, AtomicityBatch).Run(context.Background())
	require.NoError(t, err)

	// 1-3 committed at the checkpoint, 4 lost with 5, then 6-8 and 9-10.
	assert.Equal(t, []int{1, 2, 3, 6, 7, 8, 9, 10}, store.committedIndexes())
	assert.Equal(t, 8, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.RolledBack)
	assert.Equal(t, len(store.committed), summary.Succeeded)

	rolled := summary.Results[3]
	assert.Equal(t, OutcomeRolledBack, rolled.Outcome)
	assert.Equal(t, ReasonBatchRollback, rolled.Reason)
	assert.Zero(t, rolled.UserID)
	assert.Len(t, summary.Failures(), 2)
}

func TestSeeder_Run_TagFailureIsFatal(t *testing.T) {
	store := newMemStore()
	store.tagErr = errors.New("relation \"tags\" does not exist")

	var (
		summary *Summary
		err     error
	)
	require.NotPanics(t, func() {
		summary, err = newTestSeeder(store, 5, 50, AtomicityUser).Run(context.Background())
	})
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.Contains(t, err.Error(), "failed to seed tags")
	assert.Empty(t, store.ops, "no user transaction is opened")
}

func TestSeeder_Run_FinalCommitFailure(t *testing.T) {
	store := newMemStore()
	store.commitErr = errors.New("connection reset")

	summary, err := newTestSeeder(store, 4, 50, AtomicityUser).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "final commit")

	require.NotNil(t, summary)
	assert.Zero(t, summary.Succeeded, "nothing was committed")
	assert.Equal(t, 4, summary.RolledBack)
	assert.Empty(t, store.committed)
}

func TestSeeder_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newMemStore()
	_, err := newTestSeeder(store, 3, 50, AtomicityUser).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"begin", "rollback"}, store.ops)
}

func TestSeeder_Run_InvalidCount(t *testing.T) {
	_, err := newTestSeeder(newMemStore(), 0, 50, AtomicityUser).Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func TestSeeder_Run_DryRun(t *testing.T) {
	opts := testOptions()
	opts.NumUsers = 5
	opts.DryRun = true
	gen := NewGenerator(DefaultCatalog(), opts, rand.New(rand.NewSource(3)))

	summary, err := NewSeeder(nil, gen, opts).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.DryRun)
	assert.Equal(t, 5, summary.Succeeded)
	for i, r := range summary.Results {
		assert.Equal(t, uint(1001+i), r.UserID)
	}

	var out bytes.Buffer
	summary.Print(&out)
	assert.Contains(t, out.String(), "Dry run: generated 5 of 5 users")
}

func TestSummary_Print(t *testing.T) {
	s := &Summary{
		Requested:   10,
		Succeeded:   8,
		Failed:      1,
		RolledBack:  1,
		Duration:    1500 * time.Millisecond,
		EmailDomain: "matcha-test.com",
		Password:    "Password123!",
	}

	var out bytes.Buffer
	s.Print(&out)

	assert.Contains(t, out.String(), "✅ Successfully created 8 users!")
	assert.Contains(t, out.String(), "1 failed, 1 rolled back")
	assert.Contains(t, out.String(), "Email: any user email @matcha-test.com")
	assert.Contains(t, out.String(), "Password: Password123!")
	assert.Contains(t, out.String(), "Took 1.5s")
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ReasonDuplicate, classify(gorm.ErrDuplicatedKey))
	assert.Equal(t, ReasonForeignKey, classify(gorm.ErrForeignKeyViolated))
	assert.Equal(t, ReasonForeignKey, classify(ErrUnknownTag))
	assert.Equal(t, ReasonStore, classify(errors.New("boom")))
}

// failNthLocation makes the nth user_locations insert fail after the user row was written.
func failNthLocation(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	count := 0
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_location", func(tx *gorm.DB) {
		if tx.Statement.Table != "user_locations" {
			return
		}
		count++
		if count == n {
			_ = tx.AddError(errors.New("injected location failure"))
		}
	})
	require.NoError(t, err)
}

type rowCounts struct {
	users, locations, userTags int64
}

func countRows(t *testing.T, db *gorm.DB) rowCounts {
	t.Helper()
	var c rowCounts
	require.NoError(t, db.Model(&models.User{}).Count(&c.users).Error)
	require.NoError(t, db.Model(&models.UserLocation{}).Count(&c.locations).Error)
	require.NoError(t, db.Model(&models.UserTag{}).Count(&c.userTags).Error)
	return c
}

func assertNoOrphans(t *testing.T, db *gorm.DB) {
	t.Helper()
	var orphanLocations, orphanTags int64
	require.NoError(t, db.Model(&models.UserLocation{}).
		Where("user_id NOT IN (?)", db.Model(&models.User{}).Select("id")).
		Count(&orphanLocations).Error)
	require.NoError(t, db.Model(&models.UserTag{}).
		Where("user_id NOT IN (?)", db.Model(&models.User{}).Select("id")).
		Count(&orphanTags).Error)
	assert.Zero(t, orphanLocations)
	assert.Zero(t, orphanTags)
}

func TestSeeder_SQLite_TenUsers(t *testing.T) {
	db := setupSQLiteDB(t)

	summary, err := newTestSeeder(NewGormStore(db), 10, 50, AtomicityUser).Run(context.Background())
	require.NoError(t, err)

	c := countRows(t, db)
	assert.Equal(t, int64(10), c.users)
	assert.Equal(t, int64(10), c.locations)
	assert.Equal(t, int64(summary.Succeeded), c.users)

	var users []models.User
	require.NoError(t, db.Find(&users).Error)
	for _, u := range users {
		var n int64
		require.NoError(t, db.Model(&models.UserTag{}).Where("user_id = ?", u.ID).Count(&n).Error)
		assert.GreaterOrEqual(t, n, int64(MinTags), u.Username)
		assert.LessOrEqual(t, n, int64(MaxTags), u.Username)

		var loc models.UserLocation
		require.NoError(t, db.First(&loc, "user_id = ?", u.ID).Error)
		assert.False(t, loc.UpdatedAt.IsZero())
	}

	var tags int64
	require.NoError(t, db.Model(&models.Tag{}).Count(&tags).Error)
	assert.Equal(t, int64(50), tags)

	var out bytes.Buffer
	summary.Print(&out)
	assert.Contains(t, out.String(), "Successfully created 10 users!")
}

func TestSeeder_SQLite_FailureOnFifthUser(t *testing.T) {
	tests := []struct {
		name          string
		atomicity     Atomicity
		wantCommitted int
		wantRolled    int
	}{
		{"Per-user savepoints", AtomicityUser, 9, 0},
		{"Whole batch", AtomicityBatch, 5, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupSQLiteDB(t)
			failNthLocation(t, db, 5)

			summary, err := newTestSeeder(NewGormStore(db), 10, 50, tt.atomicity).Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.wantCommitted, summary.Succeeded)
			assert.Equal(t, 1, summary.Failed)
			assert.Equal(t, tt.wantRolled, summary.RolledBack)
			assert.Equal(t, ReasonStore, summary.Results[4].Reason)

			c := countRows(t, db)
			assert.Equal(t, int64(tt.wantCommitted), c.users)
			assert.Equal(t, c.users, c.locations)
			assertNoOrphans(t, db)

			var failed int64
			require.NoError(t, db.Model(&models.User{}).
				Where("username = ?", summary.Results[4].Username).Count(&failed).Error)
			assert.Zero(t, failed)
		})
	}
}

func TestSeeder_SQLite_DuplicateUsername(t *testing.T) {
	db := setupSQLiteDB(t)

	// Same seed and clock as the seeder, so the third profile is predictable.
	twin := NewGenerator(DefaultCatalog(), testOptions(), rand.New(rand.NewSource(42))).
		WithClock(func() time.Time { return fixedNow })
	var third *Profile
	for i := 1; i <= 3; i++ {
		p, err := twin.Generate(i)
		require.NoError(t, err)
		third = p
	}
	taken := third.User
	taken.Email = "someone-else@example.com"
	require.NoError(t, db.Create(&taken).Error)

	summary, err := newTestSeeder(NewGormStore(db), 5, 50, AtomicityUser).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Succeeded)
	require.Equal(t, OutcomeFailed, summary.Results[2].Outcome)
	assert.Equal(t, ReasonDuplicate, summary.Results[2].Reason)

	c := countRows(t, db)
	assert.Equal(t, int64(5), c.users)
	assert.Equal(t, int64(4), c.locations)
}
