package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/domain"
)

func deleteCommand(t *testing.T, id, userID, email string) domain.Command {
	t.Helper()
	data, err := sonic.Marshal(deleteUserData{Email: email})
	require.NoError(t, err)
	return domain.Command{ID: id, Type: domain.CommandDeleteUser, UserID: userID, Data: data}
}

func TestPurgeWorkerDeletesAccount(t *testing.T) {
	store := newMemAccounts()
	queue := &memQueue{}
	ctx := context.Background()
	require.NoError(t, store.InsertAccount(ctx, domain.Account{UserID: "u1", Email: "ada@example.com"}))
	require.NoError(t, store.UpsertProfile(ctx, domain.Profile{UserID: "u1"}))
	store.tasks["u1"] = 2
	require.NoError(t, queue.EnqueueCommand(ctx, deleteCommand(t, "c1", "u1", "ada@example.com")))

	w := NewPurgeWorker(queue, store, store, store, log.New(), time.Millisecond)
	processed, err := w.ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	_, err = store.GetAccount(ctx, "ada@example.com")
	assert.True(t, domain.IsNotFound(err))
	assert.Empty(t, store.profiles)
	assert.Empty(t, store.tasks)
	assert.Equal(t, []string{"c1"}, queue.acked)

	processed, err = w.ProcessOne(ctx)
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestPurgeWorkerToleratesMissingAccount(t *testing.T) {
	store := newMemAccounts()
	queue := &memQueue{}
	ctx := context.Background()
	require.NoError(t, queue.EnqueueCommand(ctx, deleteCommand(t, "c1", "u1", "gone@example.com")))

	w := NewPurgeWorker(queue, store, store, store, log.New(), time.Millisecond)
	_, err := w.ProcessOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, queue.acked)
}

func TestPurgeWorkerAcksUnsupportedCommands(t *testing.T) {
	store := newMemAccounts()
	queue := &memQueue{}
	ctx := context.Background()
	require.NoError(t, queue.EnqueueCommand(ctx, domain.Command{ID: "c1", Type: "rename-user"}))

	w := NewPurgeWorker(queue, store, store, store, log.New(), time.Millisecond)
	processed, err := w.ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []string{"c1"}, queue.acked)
	assert.Empty(t, store.calls)
}

func TestPurgeWorkerLeavesFailedCommandQueued(t *testing.T) {
	store := newMemAccounts()
	store.failPurge = errors.New("tasks table unavailable")
	queue := &memQueue{}
	ctx := context.Background()
	require.NoError(t, queue.EnqueueCommand(ctx, deleteCommand(t, "c1", "u1", "ada@example.com")))

	w := NewPurgeWorker(queue, store, store, store, log.New(), time.Millisecond)
	processed, err := w.ProcessOne(ctx)
	assert.True(t, processed)
	assert.Error(t, err)
	assert.Empty(t, queue.acked)
	assert.Len(t, queue.commands, 1)
}

func TestPurgeWorkerRunStopsOnCancel(t *testing.T) {
	store := newMemAccounts()
	queue := &memQueue{}
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, queue.EnqueueCommand(ctx, deleteCommand(t, "c1", "u1", "")))

	w := NewPurgeWorker(queue, store, store, store, log.New(), time.Millisecond)
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		queue.mu.Lock()
		defer queue.mu.Unlock()
		return len(queue.acked) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit")
	}
}
