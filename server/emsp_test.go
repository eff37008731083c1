package server

import (
	"context"
	"emsp/internal/config"
	"emsp/internal/store"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	conf, err := config.Default()
	require.NoError(t, err)
	conf.Store.Type = store.TypeMemory
	conf.Listen.BindIP = "127.0.0.1"
	conf.Listen.Port = "0"
	conf.Telegram.Enabled = false
	conf.Pusher.Enabled = false
	conf.Mongo.Enabled = false
	conf.Metrics.Enabled = false
	return conf
}

func TestNewEmspUnknownStore(t *testing.T) {
	conf := testConfig(t)
	conf.Store.Type = "paper"
	_, err := NewEmsp(context.Background(), conf)
	assert.Error(t, err)
}

func TestEmspStartStop(t *testing.T) {
	conf := testConfig(t)
	e, err := NewEmsp(context.Background(), conf)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- e.Start(ctx)
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
