package service

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/restaurant-platform/internal/logger"
)

// ToStatus maps an engine error to a gRPC status. Entity, id and the
// context fields travel as a structpb.Struct detail.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	st := status.New(codeOf(err), err.Error())

	var e *Error
	if errors.As(err, &e) {
		details := map[string]any{
			"op":     e.Op,
			"entity": e.Entity,
			"id":     e.ID,
		}
		for k, v := range e.Fields {
			details[k] = v
		}
		if s, serr := structpb.NewStruct(details); serr == nil {
			if withDetails, derr := st.WithDetails(s); derr == nil {
				st = withDetails
			}
		}
	}
	return st.Err()
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	}
	switch KindOf(err) {
	case ErrNotFound:
		return codes.NotFound
	case ErrConflict:
		return codes.AlreadyExists
	case ErrInvalidRequest:
		return codes.InvalidArgument
	case ErrInvalidTransition, ErrReconciliationWarning:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

// UnaryErrorInterceptor converts errors returned by RPC handlers with
// ToStatus. Failures outside the taxonomy are logged.
func UnaryErrorInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		if KindOf(err) == nil {
			log.Error("rpc", "request failed", err, slog.String("method", info.FullMethod))
		}
		return resp, ToStatus(err)
	}
}
