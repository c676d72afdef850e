package grpc_handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/anthanhphan/go-kv-store/internal/storage/port"
	"github.com/anthanhphan/go-kv-store/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
)

const DefaultCallTimeout = 5 * time.Second

// ErrServer is returned for a failure the server could not classify.
var ErrServer = errors.New("server error")

// Client talks to a kvs server. It is safe for concurrent use.
type Client struct {
	addr     string
	timeout  time.Duration
	dialOpts []grpc.DialOption
	breaker  *resilience.CircuitBreaker

	mu   sync.Mutex
	conn *grpc.ClientConn
}

type ClientOption func(*Client)

// WithCallTimeout bounds calls whose context has no deadline.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDialOptions appends options used when the connection is created.
func WithDialOptions(opts ...grpc.DialOption) ClientOption {
	return func(c *Client) {
		c.dialOpts = append(c.dialOpts, opts...)
	}
}

// NewClient creates a client for addr. The connection is established lazily.
func NewClient(addr string, opts ...ClientOption) *Client {
	c := &Client{
		addr:     addr,
		timeout:  DefaultCallTimeout,
		dialOpts: []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:              addr,
		FailureThreshold:  3,
		SuccessThreshold:  1,
		OpenTimeout:       5 * time.Second,
		HalfOpenMaxFlight: 1,
		IsFailure:         isTransportFailure,
		OnStateChange: func(name string, from, to resilience.CircuitBreakerState) {
			logger.Infow("Client circuit state changed", "target", name, "from", from, "to", to)
		},
	})
	return c
}

// Get returns the value of key; found is false when the key does not exist.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	resp := new(GetResponse)
	if err := c.invoke(ctx, "Get", getMethod, &GetRequest{Key: key}, resp); err != nil {
		return "", false, err
	}
	if err := errorFromCode(resp.Code, resp.Message); err != nil {
		return "", false, err
	}
	return resp.Value, resp.Found, nil
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	resp := new(SetResponse)
	if err := c.invoke(ctx, "Set", setMethod, &SetRequest{Key: key, Value: value}, resp); err != nil {
		return err
	}
	return errorFromCode(resp.Code, resp.Message)
}

// Remove deletes key. It returns port.ErrKeyNotFound when key is absent.
func (c *Client) Remove(ctx context.Context, key string) error {
	resp := new(RemoveResponse)
	if err := c.invoke(ctx, "Remove", removeMethod, &RemoveRequest{Key: key}, resp); err != nil {
		return err
	}
	return errorFromCode(resp.Code, resp.Message)
}

func (c *Client) invoke(ctx context.Context, op, method string, in, out any) error {
	callCtx, cancel := c.withDefaultTimeout(ctx, c.timeout)
	defer cancel()

	err := c.breaker.Execute(callCtx, func(execCtx context.Context) error {
		conn, err := c.getConn()
		if err != nil {
			return normalizeRPCErr(execCtx, err)
		}
		return normalizeRPCErr(execCtx, conn.Invoke(execCtx, method, in, out, grpc.CallContentSubtype(codecName)))
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		logger.Warnw("KV RPC short-circuited", "op", op, "target", c.addr, "error", err.Error())
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	logger.Warnw("KV RPC failed", "op", op, "target", c.addr, "error", err.Error())
	if isTransportFailure(err) {
		c.dropConn()
	}
	return err
}

func (c *Client) withDefaultTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (c *Client) getConn() (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := grpc.NewClient(c.addr, c.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.addr, err)
	}
	c.conn = conn
	return conn, nil
}

func (c *Client) dropConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Close releases the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// RemoteError is a failure reported by the server in a response code.
// It unwraps to the sentinel matching the code.
type RemoteError struct {
	Code    ErrorCode
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return e.Unwrap().Error()
	}
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	switch e.Code {
	case CodeNotFound:
		return port.ErrKeyNotFound
	case CodeIO:
		return port.ErrIO
	case CodeCorruption:
		return port.ErrCorruption
	case CodeUnavailable:
		return port.ErrEngineUnavailable
	default:
		return ErrServer
	}
}

func errorFromCode(code ErrorCode, message string) error {
	if code == CodeNone {
		return nil
	}
	return &RemoteError{Code: code, Message: message}
}

func isTransportFailure(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func normalizeRPCErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled {
		return context.Canceled
	}
	if errors.Is(err, io.EOF) && ctx != nil && errors.Is(ctx.Err(), context.Canceled) {
		return context.Canceled
	}
	return err
}
