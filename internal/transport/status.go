package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type sentinel struct {
	err  error
	code codes.Code
}

var sentinels = []sentinel{
	{mwerrors.ErrEndpointCollision, codes.AlreadyExists},
	{mwerrors.ErrEndpointNotFound, codes.NotFound},
	{mwerrors.ErrListenerNotFound, codes.NotFound},
	{mwerrors.ErrMappingNotFound, codes.NotFound},
	{mwerrors.ErrBadQuery, codes.InvalidArgument},
	{mwerrors.ErrBadHost, codes.InvalidArgument},
	{mwerrors.ErrBadSchema, codes.InvalidArgument},
	{mwerrors.ErrSchemaMismatch, codes.InvalidArgument},
	{mwerrors.ErrMalformedAddress, codes.InvalidArgument},
	{mwerrors.ErrNoValidAddress, codes.InvalidArgument},
	{mwerrors.ErrWrongPolarity, codes.FailedPrecondition},
	{mwerrors.ErrAuthorizationDenied, codes.PermissionDenied},
	{mwerrors.ErrConnectionFailed, codes.Unavailable},
	{mwerrors.ErrDisconnected, codes.Unavailable},
	{mwerrors.ErrClosed, codes.Unavailable},
	{mwerrors.ErrProtocol, codes.Internal},
}

// ToStatus converts a domain error into a gRPC status error. The sentinel's
// text travels as a bracketed reason prefix so FromStatus can restore it.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return status.Errorf(s.code, "[%s] %s", s.err.Error(), err.Error())
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Unknown, err.Error())
}

// FromStatus converts an error returned by a call back into a domain error.
// Transport-level failures become ErrConnectionFailed; anything the peer
// reported outside the known taxonomy becomes ErrProtocol.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %w", mwerrors.ErrConnectionFailed, err)
		}
		return fmt.Errorf("%w: %w", mwerrors.ErrProtocol, err)
	}

	if reason, rest, ok := splitReason(st.Message()); ok {
		for _, s := range sentinels {
			if s.err.Error() == reason {
				return fmt.Errorf("%w: remote: %s", s.err, rest)
			}
		}
	}

	switch st.Code() {
	case codes.DeadlineExceeded, codes.Unavailable, codes.Canceled:
		return fmt.Errorf("%w: %s", mwerrors.ErrConnectionFailed, st.Message())
	default:
		return fmt.Errorf("%w: %s: %s", mwerrors.ErrProtocol, st.Code(), st.Message())
	}
}

func splitReason(msg string) (reason, rest string, ok bool) {
	if !strings.HasPrefix(msg, "[") {
		return "", "", false
	}
	end := strings.Index(msg, "]")
	if end < 0 {
		return "", "", false
	}
	return msg[1:end], strings.TrimSpace(msg[end+1:]), true
}
