package service

import (
	"context"
	"errors"
	"testing"

	"github.com/anthanhphan/go-kv-store/internal/storage/port"
	"github.com/anthanhphan/go-kv-store/internal/storage/service/mocks"
	"github.com/anthanhphan/go-kv-store/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func newTestService(t *testing.T, engine port.Engine) *KVServiceImpl {
	t.Helper()
	pool := resilience.NewWorkerPool(2, 4)
	t.Cleanup(func() {
		pool.Close()
		pool.Wait()
	})
	return NewKVService(engine, pool)
}

func TestKVService_Get(t *testing.T) {
	errIO := errors.New("disk on fire")

	tests := []struct {
		name      string
		setup     func(engine *mocks.MockEngine)
		wantValue string
		wantFound bool
		wantErr   error
	}{
		{
			name: "Found",
			setup: func(engine *mocks.MockEngine) {
				engine.EXPECT().Get("k").Return("v", true, nil)
			},
			wantValue: "v",
			wantFound: true,
		},
		{
			name: "Missing",
			setup: func(engine *mocks.MockEngine) {
				engine.EXPECT().Get("k").Return("", false, nil)
			},
		},
		{
			name: "EngineError",
			setup: func(engine *mocks.MockEngine) {
				engine.EXPECT().Get("k").Return("", false, errIO)
			},
			wantErr: errIO,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			engine := mocks.NewMockEngine(ctrl)
			tt.setup(engine)

			svc := newTestService(t, engine)
			value, found, err := svc.Get(context.Background(), "k")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}

func TestKVService_SetRemove(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)

	gomock.InOrder(
		engine.EXPECT().Set("k", "v").Return(nil),
		engine.EXPECT().Remove("k").Return(nil),
		engine.EXPECT().Remove("k").Return(port.ErrKeyNotFound),
	)

	svc := newTestService(t, engine)
	ctx := context.Background()

	assert.NoError(t, svc.Set(ctx, "k", "v"))
	assert.NoError(t, svc.Remove(ctx, "k"))
	assert.ErrorIs(t, svc.Remove(ctx, "k"), port.ErrKeyNotFound)
}

func TestKVService_CanceledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	engine.EXPECT().Set(gomock.Any(), gomock.Any()).Times(0)

	svc := newTestService(t, engine)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, svc.Set(ctx, "k", "v"), context.Canceled)
}

func TestKVService_PanicIsolated(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)

	gomock.InOrder(
		engine.EXPECT().Get("bad").DoAndReturn(func(string) (string, bool, error) {
			panic("engine bug")
		}),
		engine.EXPECT().Get("good").Return("v", true, nil),
	)

	svc := newTestService(t, engine)

	_, _, err := svc.Get(context.Background(), "bad")
	assert.ErrorIs(t, err, resilience.ErrJobPanicked)

	value, found, err := svc.Get(context.Background(), "good")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", value)
}
