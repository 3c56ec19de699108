package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/qr-restaurant/models"
	"github.com/yeremiapane/qr-restaurant/sessionstore"
	"github.com/yeremiapane/qr-restaurant/utils"
)

func newDeviceStore() *sessionstore.Store {
	return sessionstore.NewStore([]sessionstore.Backend{
		sessionstore.NewMemoryBackend(),
		sessionstore.NewMemoryBackend(),
	})
}

// unreachable fails validation the way a dropped database does.
type unreachable struct {
	SessionBackend
}

func (unreachable) ValidateSession(context.Context, string, string) (*models.TableSession, error) {
	return nil, utils.WrapAppError(utils.CodeConnection, "database unreachable", errors.New("dial tcp: connection refused"))
}

func TestScanWithoutPersistedSession(t *testing.T) {
	env := newTestEnv(t)
	sc := NewScanCoordinator(env.registry)
	store := newDeviceStore()

	res, err := sc.HandleScan(context.Background(), store, env.seed.Restaurant.ID, env.tableID(1))
	require.NoError(t, err)
	assert.Equal(t, ActionShowOptions, res.Action)
	require.Len(t, res.Options, 1)
	assert.Equal(t, OptionNew, res.Options[0].Kind)
}

func TestScanNewSessionThenRedirect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sc := NewScanCoordinator(env.registry)
	store := newDeviceStore()
	rid, tid := env.seed.Restaurant.ID, env.tableID(1)

	sess, err := sc.StartSession(ctx, store, CreateSessionInput{TableID: tid, CustomerName: "Asha"})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, sess.Status)
	assert.Equal(t, 0.0, sess.TotalAmount)

	persisted, ok := store.Retrieve()
	require.True(t, ok)
	assert.Equal(t, sess.ID, persisted.SessionID)
	assert.Equal(t, sess.SessionToken, persisted.SessionToken)

	res, err := sc.HandleScan(ctx, store, rid, tid)
	require.NoError(t, err)
	assert.Equal(t, ActionRedirect, res.Action)
	assert.Equal(t, sess.ID, res.SessionID)
}

func TestScanOtherTableShowsConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sc := NewScanCoordinator(env.registry)
	store := newDeviceStore()
	rid := env.seed.Restaurant.ID

	sess, err := sc.StartSession(ctx, store, CreateSessionInput{TableID: env.tableID(5), CustomerName: "Asha"})
	require.NoError(t, err)

	res, err := sc.HandleScan(ctx, store, rid, env.tableID(9))
	require.NoError(t, err)
	assert.Equal(t, ActionShowConflict, res.Action)
	require.NotNil(t, res.ConflictSession)
	assert.Equal(t, sess.ID, res.ConflictSession.SessionID)
	assert.Equal(t, env.tableID(5), res.ConflictSession.TableID)

	// continue goes back to table 5, ignoring the scanned table
	cont, err := sc.ResolveConflict(ctx, store, rid, env.tableID(9), ChoiceContinue)
	require.NoError(t, err)
	assert.Equal(t, ActionRedirect, cont.Action)
	assert.Equal(t, env.tableID(5), cont.TableID)
	assert.Equal(t, sess.ID, cont.SessionID)

	fresh, err := sc.ResolveConflict(ctx, store, rid, env.tableID(9), ChoiceStartNew)
	require.NoError(t, err)
	assert.Equal(t, ActionShowOptions, fresh.Action)
	assert.Equal(t, env.tableID(9), fresh.TableID)
	_, ok := store.Retrieve()
	assert.False(t, ok)

	// the abandoned server session is untouched
	still, err := env.registry.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, still.Status)

	_, err = sc.ResolveConflict(ctx, store, rid, env.tableID(9), "maybe")
	assert.Equal(t, utils.CodeInvalidInput, utils.ErrorCode(err))
}

func TestScanClearsClosedSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sc := NewScanCoordinator(env.registry)
	store := newDeviceStore()

	sess, err := sc.StartSession(ctx, store, CreateSessionInput{TableID: env.tableID(1), CustomerName: "Asha"})
	require.NoError(t, err)
	_, err = env.registry.CloseSession(ctx, sess.ID, "staff", "")
	require.NoError(t, err)

	res, err := sc.HandleScan(ctx, store, env.seed.Restaurant.ID, env.tableID(1))
	require.NoError(t, err)
	assert.Equal(t, ActionShowOptions, res.Action)
	assert.False(t, res.Retryable)

	_, ok := store.Retrieve()
	assert.False(t, ok)
}

func TestScanOffersOtherSessionsAtTable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sc := NewScanCoordinator(env.registry)

	host := newDeviceStore()
	sess, err := sc.StartSession(ctx, host, CreateSessionInput{TableID: env.tableID(3), CustomerName: "Asha"})
	require.NoError(t, err)
	placeOrders(t, env, sess.ID, 20)

	guest := newDeviceStore()
	res, err := sc.HandleScan(ctx, guest, env.seed.Restaurant.ID, env.tableID(3))
	require.NoError(t, err)
	assert.Equal(t, ActionShowOptions, res.Action)
	require.Len(t, res.Options, 2)
	assert.Equal(t, OptionExisting, res.Options[0].Kind)
	assert.Equal(t, sess.ID, res.Options[0].SessionID)
	assert.EqualValues(t, 1, res.Options[0].OrderCount)
	assert.Equal(t, 23.0, res.Options[0].TotalAmount)
	assert.Equal(t, OptionNew, res.Options[1].Kind)

	joined, err := sc.JoinSession(ctx, guest, sess.ID, env.tableID(3))
	require.NoError(t, err)
	assert.Equal(t, sess.ID, joined.ID)

	res, err = sc.HandleScan(ctx, guest, env.seed.Restaurant.ID, env.tableID(3))
	require.NoError(t, err)
	assert.Equal(t, ActionRedirect, res.Action)
}

func TestScanKeepsSessionWhenBackendUnreachable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := newDeviceStore()

	_, err := NewScanCoordinator(env.registry).StartSession(ctx, store, CreateSessionInput{TableID: env.tableID(1), CustomerName: "Asha"})
	require.NoError(t, err)

	sc := NewScanCoordinator(unreachable{env.registry})
	res, err := sc.HandleScan(ctx, store, env.seed.Restaurant.ID, env.tableID(1))
	require.NoError(t, err)
	assert.Equal(t, ActionShowOptions, res.Action)
	assert.True(t, res.Retryable)

	_, ok := store.Retrieve()
	assert.True(t, ok, "a connection failure must not forget the session")
}

func TestScanUnknownTable(t *testing.T) {
	env := newTestEnv(t)
	sc := NewScanCoordinator(env.registry)

	_, err := sc.HandleScan(context.Background(), newDeviceStore(), env.seed.Restaurant.ID, 4242)
	assert.Equal(t, utils.CodeTableNotFound, utils.ErrorCode(err))

	_, err = sc.HandleScan(context.Background(), newDeviceStore(), env.seed.Restaurant.ID+7, env.tableID(1))
	assert.Equal(t, utils.CodeTableNotFound, utils.ErrorCode(err))
}
