package app

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	grpcHandler "github.com/anthanhphan/go-kv-store/internal/storage/adapter/inbound/grpc"
	"github.com/anthanhphan/go-kv-store/internal/storage/adapter/outbound/engine"
	"github.com/anthanhphan/go-kv-store/internal/storage/config"
	"github.com/anthanhphan/go-kv-store/internal/storage/domain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	require.NoError(t, applyOverrides(cfg, Overrides{
		Addr:    "127.0.0.1:0",
		DataDir: t.TempDir(),
	}))
	cfg.Server.Workers = 2
	cfg.Server.QueueSize = 4
	return cfg
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, applyOverrides(cfg, Overrides{Addr: "0.0.0.0:5000", Engine: "LevelDB", DataDir: "/tmp/x"}))
	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Addr)
	assert.Equal(t, domain.EngineKindSorted, cfg.Engine.Kind)
	assert.Equal(t, "/tmp/x", cfg.Engine.DataDir)

	assert.Error(t, applyOverrides(config.DefaultConfig(), Overrides{Engine: "sled"}))
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return lis
}

func TestApp_ServeAndShutdown(t *testing.T) {
	cfg := testConfig(t)

	a, err := newApp(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, listen(t)) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	// The directory lock must be released on shutdown.
	eng, err := engine.Open(cfg.Engine)
	require.NoError(t, err)
	require.NoError(t, eng.Close())
}

func TestApp_ClientRoundTrip(t *testing.T) {
	cfg := testConfig(t)

	a, err := newApp(cfg)
	require.NoError(t, err)

	lis := listen(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, lis) }()
	defer func() {
		cancel()
		<-done
	}()

	client := grpcHandler.NewClient(lis.Addr().String())
	defer func() { _ = client.Close() }()

	require.NoError(t, client.Set(context.Background(), "k", "v"))

	value, found, err := client.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", value)
}

func TestNew_SecondInstanceIsLocked(t *testing.T) {
	cfg := testConfig(t)

	a, err := newApp(cfg)
	require.NoError(t, err)
	defer a.closeStorage()

	_, err = newApp(cfg)
	assert.Error(t, err)
}
