package service

import (
	"context"
	"errors"

	"github.com/anthanhphan/go-kv-store/internal/storage/metrics"
	"github.com/anthanhphan/go-kv-store/internal/storage/port"
	"github.com/anthanhphan/go-kv-store/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
)

const (
	outcomeOK       = "ok"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

// KVServiceImpl dispatches client requests onto the engine through a bounded
// worker pool. Each request runs to completion on exactly one worker.
type KVServiceImpl struct {
	engine port.Engine
	pool   *resilience.WorkerPool
}

// Ensure KVServiceImpl implements port.KVService.
var _ port.KVService = (*KVServiceImpl)(nil)

// NewKVService builds the request dispatcher.
func NewKVService(engine port.Engine, pool *resilience.WorkerPool) *KVServiceImpl {
	return &KVServiceImpl{engine: engine, pool: pool}
}

// Get returns the value stored for key.
func (s *KVServiceImpl) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
		err   error
	)
	if poolErr := s.pool.Do(ctx, func() {
		value, found, err = s.engine.Get(key)
	}); poolErr != nil {
		s.observe(metrics.OpGet, "", poolErr)
		return "", false, poolErr
	}

	switch {
	case err != nil:
		s.observe(metrics.OpGet, key, err)
		return "", false, err
	case !found:
		metrics.RequestsTotal.WithLabelValues(metrics.OpGet, outcomeNotFound).Inc()
	default:
		metrics.RequestsTotal.WithLabelValues(metrics.OpGet, outcomeOK).Inc()
	}
	return value, found, nil
}

// Set stores value under key.
func (s *KVServiceImpl) Set(ctx context.Context, key, value string) error {
	var err error
	if poolErr := s.pool.Do(ctx, func() {
		err = s.engine.Set(key, value)
	}); poolErr != nil {
		err = poolErr
	}
	s.observe(metrics.OpSet, key, err)
	return err
}

// Remove deletes key. It returns port.ErrKeyNotFound when key is absent.
func (s *KVServiceImpl) Remove(ctx context.Context, key string) error {
	var err error
	if poolErr := s.pool.Do(ctx, func() {
		err = s.engine.Remove(key)
	}); poolErr != nil {
		err = poolErr
	}
	s.observe(metrics.OpRemove, key, err)
	return err
}

func (s *KVServiceImpl) observe(op, key string, err error) {
	switch {
	case err == nil:
		metrics.RequestsTotal.WithLabelValues(op, outcomeOK).Inc()
	case errors.Is(err, port.ErrKeyNotFound):
		metrics.RequestsTotal.WithLabelValues(op, outcomeNotFound).Inc()
	default:
		metrics.RequestsTotal.WithLabelValues(op, outcomeError).Inc()
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			logger.Errorw("Request failed", "operation", op, "key", key, "error", err.Error())
		}
	}
}
