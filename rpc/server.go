package rpc

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/bridge"
	"github.com/qubic/go-bridge-coordinator/events"
	"github.com/qubic/go-bridge-coordinator/metrics"
	"github.com/qubic/go-bridge-coordinator/store"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

var _ BridgeServiceServer = &Server{}

const defaultSubscribeBuffer = 64

type Config struct {
	ListenAddrGRPC  string
	ListenAddrHTTP  string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	cfg         Config
	coordinator *bridge.Coordinator
	broker      *events.Broker
	metrics     *metrics.Metrics
	pebble      *store.EventListener
	logger      *zap.SugaredLogger

	grpcServer *grpc.Server
	httpServer *http.Server
}

// NewServer wires the coordinator to gRPC. metrics and pebble may be nil.
func NewServer(cfg Config, coordinator *bridge.Coordinator, broker *events.Broker, m *metrics.Metrics, pebble *store.EventListener, logger *zap.SugaredLogger) *Server {
	s := &Server{
		cfg:         cfg,
		coordinator: coordinator,
		broker:      broker,
		metrics:     m,
		pebble:      pebble,
		logger:      logger.Named("rpc"),
	}

	recoverer := recovery.WithRecoveryHandler(s.recoverPanic)
	unary := []grpc.UnaryServerInterceptor{s.errorInterceptor, recovery.UnaryServerInterceptor(recoverer)}
	stream := []grpc.StreamServerInterceptor{s.streamErrorInterceptor, recovery.StreamServerInterceptor(recoverer)}
	if m != nil {
		unary = append([]grpc.UnaryServerInterceptor{m.ServerMetrics().UnaryServerInterceptor()}, unary...)
		stream = append([]grpc.StreamServerInterceptor{m.ServerMetrics().StreamServerInterceptor()}, stream...)
	}

	s.grpcServer = grpc.NewServer(
		grpc.ForceServerCodec(codec{}),
		grpc.MaxRecvMsgSize(16*1024*1024),
		grpc.MaxSendMsgSize(16*1024*1024),
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	)
	RegisterBridgeServiceServer(s.grpcServer, s)
	reflection.Register(s.grpcServer)
	if m != nil {
		m.ServerMetrics().InitializeMetrics(s.grpcServer)
	}

	return s
}

func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// HTTPHandler serves metrics and operational endpoints next to the gRPC listener.
func (s *Server) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	if s.pebble != nil {
		mux.HandleFunc("/debug/pebble", s.pebble.HandleCompactionInfoEndpoint)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.coordinator.Status(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

// Start listens on the configured addresses and serves in the background. Serve errors are
// reported on the returned channel.
func (s *Server) Start() (<-chan error, error) {
	lis, err := net.Listen("tcp", s.cfg.ListenAddrGRPC)
	if err != nil {
		return nil, errors.Wrapf(err, "listening on %s", s.cfg.ListenAddrGRPC)
	}

	serveErrors := make(chan error, 2)
	go func() {
		if err := s.grpcServer.Serve(lis); err != nil {
			serveErrors <- errors.Wrap(err, "serving grpc")
		}
	}()
	s.logger.Infow("Serving grpc", "addr", s.cfg.ListenAddrGRPC)

	if s.cfg.ListenAddrHTTP != "" {
		s.httpServer = &http.Server{
			Addr:         s.cfg.ListenAddrHTTP,
			Handler:      s.HTTPHandler(),
			ReadTimeout:  s.cfg.ReadTimeout,
			WriteTimeout: s.cfg.WriteTimeout,
		}
		go func() {
			if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErrors <- errors.Wrap(err, "serving http")
			}
		}()
		s.logger.Infow("Serving http", "addr", s.cfg.ListenAddrHTTP)
	}

	return serveErrors, nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return errors.Wrap(err, "shutting down http server")
		}
	}

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}

	return nil
}

func (s *Server) Vote(ctx context.Context, req *VoteRequest) (*VoteResponse, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	st, err := s.coordinator.Vote(ctx, caller, req.OriginDomain, req.DepositSequence, req.ResourceID, req.Payload)
	if err != nil {
		return nil, err
	}

	return &VoteResponse{Status: st}, nil
}

func (s *Server) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.coordinator.Execute(ctx, caller, req.OriginDomain, req.DepositSequence, req.Payload, req.ResourceID, req.RevertOnFailure)
	if err != nil {
		return nil, err
	}

	return &ExecuteResponse{Status: result.Status, Failed: result.Failed, Reason: result.Reason}, nil
}

func (s *Server) Cancel(ctx context.Context, req *ProposalRequest) (*Empty, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	err = s.coordinator.Cancel(ctx, caller, req.OriginDomain, req.DepositSequence, req.DataHash)
	if err != nil {
		return nil, err
	}

	return &Empty{}, nil
}

func (s *Server) Deposit(ctx context.Context, req *DepositRequest) (*DepositResponse, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	value, err := parseAmount(req.Value)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	receipt, err := s.coordinator.Deposit(ctx, caller, req.DestinationDomain, req.ResourceID, req.Payload, value)
	if err != nil {
		return nil, err
	}

	return &DepositResponse{Sequence: receipt.Sequence, HandlerResponse: receipt.HandlerResponse}, nil
}

func (s *Server) GetProposal(ctx context.Context, req *ProposalRequest) (*ProposalResponse, error) {
	view, err := s.coordinator.GetProposal(ctx, req.OriginDomain, req.DepositSequence, req.DataHash)
	if err != nil {
		return nil, err
	}

	voters := make([]uint16, 0, len(view.Voters))
	for _, slot := range view.Voters {
		voters = append(voters, uint16(slot))
	}

	return &ProposalResponse{
		Found:           view.Found,
		Status:          view.Status,
		Voters:          voters,
		YesVotesTotal:   view.YesVotesTotal,
		ProposedAtBlock: view.ProposedAtBlock,
	}, nil
}

func (s *Server) HasVoted(ctx context.Context, req *HasVotedRequest) (*HasVotedResponse, error) {
	voted, err := s.coordinator.HasVoted(ctx, req.OriginDomain, req.DepositSequence, req.DataHash, req.Relayer)
	if err != nil {
		return nil, err
	}

	return &HasVotedResponse{Voted: voted}, nil
}

func (s *Server) QuoteFee(ctx context.Context, req *QuoteFeeRequest) (*AmountResponse, error) {
	quote, err := s.coordinator.QuoteFee(ctx, req.DestinationDomain, req.ResourceID)
	if err != nil {
		return nil, err
	}

	return &AmountResponse{Amount: quote.Dec()}, nil
}

func (s *Server) HandlerFee(ctx context.Context, req *HandlerFeeRequest) (*HandlerFeeResponse, error) {
	handlerFee, err := s.coordinator.HandlerFee(ctx, req.ResourceID, req.Initiator, req.DestinationDomain, req.Payload)
	if err != nil {
		return nil, err
	}

	return &HandlerFeeResponse{Token: handlerFee.Token, Amount: handlerFee.Amount.Dec()}, nil
}

func (s *Server) GetDepositNonce(ctx context.Context, req *DomainRequest) (*NonceResponse, error) {
	nonce, err := s.coordinator.DepositNonce(ctx, req.Domain)
	if err != nil {
		return nil, err
	}

	return &NonceResponse{Nonce: nonce}, nil
}

func (s *Server) GetStatus(ctx context.Context, _ *Empty) (*StatusResponse, error) {
	st, err := s.coordinator.Status(ctx)
	if err != nil {
		return nil, err
	}

	return &StatusResponse{
		Domain:      st.Domain,
		Height:      st.Height,
		Paused:      st.Paused,
		Threshold:   st.Threshold,
		Expiry:      st.Expiry,
		Relayers:    st.Relayers,
		Resources:   st.Resources,
		BaseFee:     st.BaseFee.Dec(),
		AccruedFees: st.AccruedFees.Dec(),
	}, nil
}

// adminCall runs an admin operation that only reports an error.
func (s *Server) adminCall(ctx context.Context, op func(caller bridge.Caller) error) (*Empty, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := op(caller); err != nil {
		return nil, err
	}

	return &Empty{}, nil
}

func (s *Server) AddRelayer(ctx context.Context, req *IdentityRequest) (*SlotResponse, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	slot, err := s.coordinator.AddRelayer(ctx, caller, req.Identity)
	if err != nil {
		return nil, err
	}

	return &SlotResponse{Slot: slot}, nil
}

func (s *Server) RemoveRelayer(ctx context.Context, req *IdentityRequest) (*Empty, error) {
	return s.adminCall(ctx, func(caller bridge.Caller) error {
		return s.coordinator.RemoveRelayer(ctx, caller, req.Identity)
	})
}

func (s *Server) GrantAdmin(ctx context.Context, req *IdentityRequest) (*Empty, error) {
	return s.adminCall(ctx, func(caller bridge.Caller) error {
		return s.coordinator.GrantAdmin(ctx, caller, req.Identity)
	})
}

func (s *Server) RevokeAdmin(ctx context.Context, req *IdentityRequest) (*Empty, error) {
	return s.adminCall(ctx, func(caller bridge.Caller) error {
		return s.coordinator.RevokeAdmin(ctx, caller, req.Identity)
	})
}

func (s *Server) SetThreshold(ctx context.Context, req *ThresholdRequest) (*Empty, error) {
	return s.adminCall(ctx, func(caller bridge.Caller) error {
		return s.coordinator.SetThreshold(ctx, caller, req.Threshold)
	})
}

func (s *Server) SetExpiry(ctx context.Context, req *ExpiryRequest) (*Empty, error) {
	return s.adminCall(ctx, func(caller bridge.Caller) error {
		return s.coordinator.SetExpiry(ctx, caller, req.Blocks)
	})
}

func (s *Server) SetResource(ctx context.Context, req *ResourceRequest) (*Empty, error) {
	return s.adminCall(ctx, func(caller bridge.Caller) error {
		return s.coordinator.SetResource(ctx, caller, req.ResourceID, req.Handler, req.Target)
	})
}

func (s *Server) RemoveResource(ctx context.Context, req *ResourceRequest) (*Empty, error) {
	return s.adminCall(ctx, func(caller bridge.Caller) error {
		return s.coordinator.RemoveResource(ctx, caller, req.ResourceID)
	})
}

func (s *Server) SetBaseFee(ctx context.Context, req *BaseFeeRequest) (*Empty, error) {
	fee, err := parseAmount(req.Fee)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return s.adminCall(ctx, func(caller bridge.Caller) error {
		return s.coordinator.SetBaseFee(ctx, caller, fee)
	})
}

func (s *Server) SetDomainMultiplier(ctx context.Context, req *DomainMultiplierRequest) (*Empty, error) {
	return s.adminCall(ctx, func(caller bridge.Caller) error {
		return s.coordinator.SetDomainMultiplier(ctx, caller, req.Domain, req.Multiplier)
	})
}

func (s *Server) SetResourceMultiplier(ctx context.Context, req *ResourceMultiplierRequest) (*Empty, error) {
	return s.adminCall(ctx, func(caller bridge.Caller) error {
		return s.coordinator.SetResourceMultiplier(ctx, caller, req.ResourceID, req.Multiplier)
	})
}

func (s *Server) SetDepositNonce(ctx context.Context, req *DepositNonceRequest) (*Empty, error) {
	return s.adminCall(ctx, func(caller bridge.Caller) error {
		return s.coordinator.SetDepositNonce(ctx, caller, req.Domain, req.Nonce)
	})
}

func (s *Server) SetForwarder(ctx context.Context, req *ForwarderRequest) (*Empty, error) {
	return s.adminCall(ctx, func(caller bridge.Caller) error {
		return s.coordinator.SetForwarder(ctx, caller, req.Forwarder, req.Trusted)
	})
}

func (s *Server) Pause(ctx context.Context, _ *Empty) (*Empty, error) {
	return s.adminCall(ctx, func(caller bridge.Caller) error {
		return s.coordinator.Pause(ctx, caller)
	})
}

func (s *Server) Unpause(ctx context.Context, _ *Empty) (*Empty, error) {
	return s.adminCall(ctx, func(caller bridge.Caller) error {
		return s.coordinator.Unpause(ctx, caller)
	})
}

func (s *Server) WithdrawFees(ctx context.Context, req *WithdrawFeesRequest) (*AmountResponse, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	remaining, err := s.coordinator.WithdrawFees(ctx, caller, req.Recipient, amount)
	if err != nil {
		return nil, err
	}

	return &AmountResponse{Amount: remaining.Dec()}, nil
}

// Subscribe streams events as they are emitted until the client goes away.
func (s *Server) Subscribe(req *SubscribeRequest, stream grpc.ServerStream) error {
	if _, err := callerFromContext(stream.Context()); err != nil {
		return err
	}

	buffer := req.Buffer
	if buffer <= 0 {
		buffer = defaultSubscribeBuffer
	}
	if buffer > events.MaxSubscriberBuffer {
		return status.Errorf(codes.InvalidArgument, "buffer %d exceeds %d", buffer, events.MaxSubscriberBuffer)
	}

	wanted := make(map[events.Kind]bool, len(req.Kinds))
	for _, kind := range req.Kinds {
		wanted[kind] = true
	}

	ch, cancel := s.broker.Subscribe(buffer)
	defer cancel()

	// headers go out right away so clients know the subscription is live
	if err := stream.SendHeader(nil); err != nil {
		return errors.Wrap(err, "sending subscribe header")
	}

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if len(wanted) > 0 && !wanted[e.Kind] {
				continue
			}
			if err := stream.SendMsg(&e); err != nil {
				return errors.Wrap(err, "sending event")
			}
		}
	}
}
