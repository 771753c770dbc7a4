package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/vaultbox/internal/domain"
	"github.com/prn-tf/vaultbox/internal/lock"
)

// failingPurger lets the user row go but never removes objects, leaving orphans.
type failingPurger struct{}

func (failingPurger) DeleteAllByOwner(context.Context, string) (int, error) {
	return 0, errors.New("crashed mid-cascade")
}

// seedOrphans creates a user with files and deletes the user with a broken
// cascade. It returns the orphaned file IDs.
func seedOrphans(t *testing.T, env *testEnv, username string) []string {
	t.Helper()
	ctx := context.Background()

	brokenUsers := NewUserService(env.db.Repos.User, failingPurger{}, zerolog.Nop())
	out, err := brokenUsers.CreateUser(ctx, adminIdentity, CreateUserInput{Username: username, Password: "pw"})
	require.NoError(t, err)

	owner := &domain.Identity{UserID: out.UserID, Username: username, Role: domain.RoleUser}
	uploaded, err := env.files.Upload(ctx, owner, []UploadFile{textFile("x", "1"), textFile("y", "2")})
	require.NoError(t, err)

	del, err := brokenUsers.DeleteUser(ctx, adminIdentity, out.UserID)
	require.NoError(t, err)
	require.True(t, del.OrphanedObjects)

	ids := make([]string, 0, len(uploaded))
	for _, u := range uploaded {
		ids = append(ids, u.FileID)
	}
	return ids
}

func TestReconciler_PurgesOrphans(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	locker := lock.NewMemoryLocker()
	defer locker.Stop()

	orphans := seedOrphans(t, env, "dave")

	// A live user's files must survive.
	live, err := env.users.CreateUser(ctx, adminIdentity, CreateUserInput{Username: "erin", Password: "pw"})
	require.NoError(t, err)
	erin := &domain.Identity{UserID: live.UserID, Username: "erin", Role: domain.RoleUser}
	kept, err := env.files.Upload(ctx, erin, []UploadFile{textFile("keep", "k")})
	require.NoError(t, err)

	r := NewReconciler(env.db.Repos.Object, env.files, locker, env.metrics, zerolog.Nop(), DefaultReconcileConfig())
	result := r.RunOnce(ctx)

	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.OrphanOwners)
	assert.Equal(t, 2, result.ObjectsPurged)
	assert.Zero(t, result.Errors)

	for _, id := range orphans {
		exists, err := env.backend.Exists(ctx, id)
		require.NoError(t, err)
		assert.False(t, exists)
	}

	list, err := env.files.List(ctx, erin)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, kept[0].FileID, list[0].ID)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ReconcileRuns))
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.DeletedObjects.WithLabelValues("reconcile")))

	second := r.RunOnce(ctx)
	assert.Zero(t, second.OrphanOwners)
}

func TestReconciler_DryRun(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	locker := lock.NewMemoryLocker()
	defer locker.Stop()

	orphans := seedOrphans(t, env, "dave")

	cfg := DefaultReconcileConfig()
	cfg.DryRun = true
	result := NewReconciler(env.db.Repos.Object, env.files, locker, env.metrics, zerolog.Nop(), cfg).RunOnce(ctx)

	assert.Equal(t, 1, result.OrphanOwners)
	assert.Equal(t, 2, result.ObjectsPurged)

	for _, id := range orphans {
		exists, err := env.backend.Exists(ctx, id)
		require.NoError(t, err)
		assert.True(t, exists, "dry run deletes nothing")
	}
}

func TestReconciler_SkipsWhenLocked(t *testing.T) {
	ctx := context.Background()
	repo := new(mockObjectRepository)
	locker := lock.NewMemoryLocker()
	defer locker.Stop()

	ok, err := locker.Acquire(ctx, lock.Keys.ReconcileOrphans(), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	r := NewReconciler(repo, nil, locker, nil, zerolog.Nop(), DefaultReconcileConfig())
	result := r.RunOnce(ctx)

	assert.True(t, result.Skipped)
	repo.AssertNotCalled(t, "ListOrphanOwners", mock.Anything, mock.Anything)
}

func TestReconciler_ListError(t *testing.T) {
	repo := new(mockObjectRepository)
	repo.On("ListOrphanOwners", mock.Anything, 100).Return(nil, errors.New("timeout"))

	r := NewReconciler(repo, nil, lock.NewNoOpLocker(), nil, zerolog.Nop(), DefaultReconcileConfig())
	result := r.RunOnce(context.Background())

	assert.Equal(t, 1, result.Errors)
}

func TestReconciler_StartStop(t *testing.T) {
	var runs atomic.Int32
	repo := new(mockObjectRepository)
	repo.On("ListOrphanOwners", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { runs.Add(1) }).
		Return([]string{}, nil)

	cfg := DefaultReconcileConfig()
	cfg.Interval = 10 * time.Millisecond
	r := NewReconciler(repo, nil, lock.NewNoOpLocker(), nil, zerolog.Nop(), cfg)

	r.Start()
	r.Start()
	assert.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, time.Second, 5*time.Millisecond)
	r.Stop()
	r.Stop()
}
