package rpc

import (
	"context"
	"runtime/debug"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/bridge"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	// CallerHeader carries the hex address of the already authenticated sender. It is set by the
	// gateway in front of the coordinator.
	CallerHeader = "x-bridge-caller"
	// ForwardedHeader carries the hex suffix a trusted forwarder appended to its call.
	ForwardedHeader = "x-bridge-forwarded-suffix"
)

var errNoCaller = errors.New("missing caller identity")

func callerFromContext(ctx context.Context) (bridge.Caller, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return bridge.Caller{}, status.Error(codes.Unauthenticated, errNoCaller.Error())
	}

	values := md.Get(CallerHeader)
	if len(values) == 0 || !common.IsHexAddress(values[0]) {
		return bridge.Caller{}, status.Error(codes.Unauthenticated, errNoCaller.Error())
	}
	caller := bridge.Caller{Direct: common.HexToAddress(values[0])}

	if suffixes := md.Get(ForwardedHeader); len(suffixes) > 0 {
		suffix, err := hexutil.Decode(suffixes[0])
		if err != nil {
			return bridge.Caller{}, status.Errorf(codes.InvalidArgument, "decoding forwarded suffix: %v", err)
		}
		caller.Suffix = suffix
	}

	return caller, nil
}

func codeFor(class bridge.Class) codes.Code {
	switch class {
	case bridge.ClassRejectedInput:
		return codes.InvalidArgument
	case bridge.ClassProtocolViolation:
		return codes.FailedPrecondition
	case bridge.ClassHandlerFailure:
		return codes.Aborted
	case bridge.ClassUnauthorized:
		return codes.PermissionDenied
	case bridge.ClassUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// toStatus maps coordinator errors to gRPC statuses. Errors that already are statuses pass through.
func (s *Server) toStatus(method string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	class := bridge.Classify(err)
	if s.metrics != nil {
		s.metrics.ObserveRPCError(class.String())
	}
	if class == bridge.ClassInternal {
		s.logger.Errorw("Internal error", "method", method, "error", err)
	} else {
		s.logger.Debugw("Request rejected", "method", method, "class", class.String(), "error", err)
	}

	return status.Error(codeFor(class), err.Error())
}

func (s *Server) errorInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		return nil, s.toStatus(info.FullMethod, err)
	}

	return resp, nil
}

func (s *Server) streamErrorInterceptor(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	return s.toStatus(info.FullMethod, handler(srv, stream))
}

func (s *Server) recoverPanic(p any) error {
	s.logger.Errorw("Recovered from panic", "panic", p, "stack", string(debug.Stack()))
	if s.metrics != nil {
		s.metrics.ObserveRPCError(bridge.ClassInternal.String())
	}

	return status.Error(codes.Internal, "internal error")
}
