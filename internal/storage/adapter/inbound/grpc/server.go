package grpc_handler

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/anthanhphan/go-kv-store/internal/storage/port"
)

// Server implements kvs.v1.KvService on top of the request dispatcher.
// Engine failures travel in the response code; gRPC status errors are reserved
// for transport-level outcomes such as cancellation.
type Server struct {
	service port.KVService
}

var _ KvServiceServer = (*Server)(nil)

// NewServer creates a new gRPC handler.
func NewServer(service port.KVService) *Server {
	return &Server{service: service}
}

func (s *Server) Get(ctx context.Context, req *GetRequest) (*GetResponse, error) {
	value, found, err := s.service.Get(ctx, req.Key)
	if err != nil {
		if stErr := contextStatus(err); stErr != nil {
			return nil, stErr
		}
		return &GetResponse{Code: codeOf(err), Message: err.Error()}, nil
	}
	return &GetResponse{Found: found, Value: value}, nil
}

func (s *Server) Set(ctx context.Context, req *SetRequest) (*SetResponse, error) {
	if err := s.service.Set(ctx, req.Key, req.Value); err != nil {
		if stErr := contextStatus(err); stErr != nil {
			return nil, stErr
		}
		return &SetResponse{Code: codeOf(err), Message: err.Error()}, nil
	}
	return &SetResponse{}, nil
}

func (s *Server) Remove(ctx context.Context, req *RemoveRequest) (*RemoveResponse, error) {
	if err := s.service.Remove(ctx, req.Key); err != nil {
		if stErr := contextStatus(err); stErr != nil {
			return nil, stErr
		}
		return &RemoveResponse{Code: codeOf(err), Message: err.Error()}, nil
	}
	return &RemoveResponse{}, nil
}

func contextStatus(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	if status.Code(err) == codes.Canceled {
		return err
	}
	return nil
}

// codeOf classifies an engine error for the wire. A corrupted engine reports
// unavailable, since it refuses every call from then on.
func codeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return CodeNone
	case errors.Is(err, port.ErrKeyNotFound):
		return CodeNotFound
	case errors.Is(err, port.ErrEngineUnavailable):
		return CodeUnavailable
	case errors.Is(err, port.ErrCorruption):
		return CodeCorruption
	case errors.Is(err, port.ErrIO):
		return CodeIO
	default:
		return CodeInternal
	}
}
