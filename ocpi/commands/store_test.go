package commands

import (
	"context"
	"emsp/entity"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accepted() *entity.CommandResponse {
	return &entity.CommandResponse{Result: entity.CommandAccepted}
}

func TestRegisterDeliverLookup(t *testing.T) {
	s := NewStore(time.Minute)
	require.NoError(t, s.Register(Command{Id: "cmd-1", Type: entity.StartSession}))

	entry, err := s.Lookup("cmd-1")
	require.NoError(t, err)
	assert.Equal(t, Pending, entry.State)
	assert.Nil(t, entry.Result)

	_, err = s.Deliver("cmd-1", accepted())
	require.NoError(t, err)

	entry, err = s.Lookup("cmd-1")
	require.NoError(t, err)
	assert.Equal(t, Completed, entry.State)
	assert.Equal(t, entity.CommandAccepted, entry.Result.Result)
	assert.NotNil(t, entry.CompletedAt)
}

func TestDeliverUnknownCreatesNothing(t *testing.T) {
	s := NewStore(time.Minute)
	_, err := s.Deliver("never-registered", accepted())
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Equal(t, 0, s.Len())
	_, err = s.Lookup("never-registered")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestDeliverLastWriteWins(t *testing.T) {
	s := NewStore(time.Minute)
	require.NoError(t, s.Register(Command{Id: "cmd-1"}))
	_, err := s.Deliver("cmd-1", accepted())
	require.NoError(t, err)
	_, err = s.Deliver("cmd-1", &entity.CommandResponse{Result: entity.CommandTimeout})
	require.NoError(t, err)

	entry, err := s.Lookup("cmd-1")
	require.NoError(t, err)
	assert.Equal(t, entity.CommandTimeout, entry.Result.Result)
	assert.Equal(t, Completed, entry.State)
}

func TestRegisterDuplicate(t *testing.T) {
	s := NewStore(time.Minute)
	require.NoError(t, s.Register(Command{Id: "cmd-1"}))
	assert.ErrorIs(t, s.Register(Command{Id: "cmd-1"}), ErrDuplicateCommand)
}

func TestSweepExpiresEntries(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(10 * time.Minute)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Register(Command{Id: "old"}))
	now = now.Add(5 * time.Minute)
	require.NoError(t, s.Register(Command{Id: "young"}))
	_, err := s.Deliver("old", accepted())
	require.NoError(t, err)

	now = now.Add(6 * time.Minute)
	assert.Equal(t, 1, s.Sweep())

	_, err = s.Deliver("old", accepted())
	assert.ErrorIs(t, err, ErrUnknownCommand)
	_, err = s.Lookup("young")
	assert.NoError(t, err)
}

func TestSubscribeReceivesResult(t *testing.T) {
	s := NewStore(time.Minute)
	require.NoError(t, s.Register(Command{Id: "cmd-1"}))
	ch, cancel, err := s.Subscribe("cmd-1")
	require.NoError(t, err)
	defer cancel()

	_, err = s.Deliver("cmd-1", accepted())
	require.NoError(t, err)

	select {
	case result, ok := <-ch:
		require.True(t, ok)
		assert.Equal(t, entity.CommandAccepted, result.Result)
	case <-time.After(time.Second):
		t.Fatal("no result delivered")
	}
	_, ok := <-ch
	assert.False(t, ok, "channel is closed after the result")
}

func TestSubscribeAfterCompletion(t *testing.T) {
	s := NewStore(time.Minute)
	require.NoError(t, s.Register(Command{Id: "cmd-1"}))
	_, err := s.Deliver("cmd-1", accepted())
	require.NoError(t, err)

	ch, cancel, err := s.Subscribe("cmd-1")
	require.NoError(t, err)
	defer cancel()
	result := <-ch
	assert.Equal(t, entity.CommandAccepted, result.Result)
}

func TestSubscriptionClosedOnExpiry(t *testing.T) {
	now := time.Now()
	s := NewStore(time.Minute)
	s.now = func() time.Time { return now }
	require.NoError(t, s.Register(Command{Id: "cmd-1"}))
	ch, cancel, err := s.Subscribe("cmd-1")
	require.NoError(t, err)
	defer cancel()

	now = now.Add(2 * time.Minute)
	s.Sweep()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestDeliverDoesNotBlockOnIdleSubscriber(t *testing.T) {
	s := NewStore(time.Minute)
	require.NoError(t, s.Register(Command{Id: "cmd-1"}))
	_, _, err := s.Subscribe("cmd-1")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_, _ = s.Deliver("cmd-1", accepted())
		_, _ = s.Deliver("cmd-1", accepted())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliver blocked")
	}
}

func TestConcurrentRegisterAndDeliver(t *testing.T) {
	s := NewStore(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("cmd-%d", i)
			assert.NoError(t, s.Register(Command{Id: id}))
			_, err := s.Deliver(id, accepted())
			assert.NoError(t, err)
			_, _ = s.Lookup(id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, s.Len())
}

func TestRunSweepsUntilCancelled(t *testing.T) {
	s := NewStore(0)
	require.NoError(t, s.Register(Command{Id: "cmd-1"}))

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan int, 1)
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 5*time.Millisecond, func(removed int) {
			select {
			case swept <- removed:
			default:
			}
		})
		close(done)
	}()
	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Len(t, swept, 1)
}
