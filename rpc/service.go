package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "bridge.v1.BridgeService"

// BridgeServiceServer is the set of calls served under ServiceName.
type BridgeServiceServer interface {
	Vote(ctx context.Context, req *VoteRequest) (*VoteResponse, error)
	Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error)
	Cancel(ctx context.Context, req *ProposalRequest) (*Empty, error)
	Deposit(ctx context.Context, req *DepositRequest) (*DepositResponse, error)

	GetProposal(ctx context.Context, req *ProposalRequest) (*ProposalResponse, error)
	HasVoted(ctx context.Context, req *HasVotedRequest) (*HasVotedResponse, error)
	QuoteFee(ctx context.Context, req *QuoteFeeRequest) (*AmountResponse, error)
	HandlerFee(ctx context.Context, req *HandlerFeeRequest) (*HandlerFeeResponse, error)
	GetDepositNonce(ctx context.Context, req *DomainRequest) (*NonceResponse, error)
	GetStatus(ctx context.Context, req *Empty) (*StatusResponse, error)

	AddRelayer(ctx context.Context, req *IdentityRequest) (*SlotResponse, error)
	RemoveRelayer(ctx context.Context, req *IdentityRequest) (*Empty, error)
	GrantAdmin(ctx context.Context, req *IdentityRequest) (*Empty, error)
	RevokeAdmin(ctx context.Context, req *IdentityRequest) (*Empty, error)
	SetThreshold(ctx context.Context, req *ThresholdRequest) (*Empty, error)
	SetExpiry(ctx context.Context, req *ExpiryRequest) (*Empty, error)
	SetResource(ctx context.Context, req *ResourceRequest) (*Empty, error)
	RemoveResource(ctx context.Context, req *ResourceRequest) (*Empty, error)
	SetBaseFee(ctx context.Context, req *BaseFeeRequest) (*Empty, error)
	SetDomainMultiplier(ctx context.Context, req *DomainMultiplierRequest) (*Empty, error)
	SetResourceMultiplier(ctx context.Context, req *ResourceMultiplierRequest) (*Empty, error)
	SetDepositNonce(ctx context.Context, req *DepositNonceRequest) (*Empty, error)
	SetForwarder(ctx context.Context, req *ForwarderRequest) (*Empty, error)
	Pause(ctx context.Context, req *Empty) (*Empty, error)
	Unpause(ctx context.Context, req *Empty) (*Empty, error)
	WithdrawFees(ctx context.Context, req *WithdrawFeesRequest) (*AmountResponse, error)

	Subscribe(req *SubscribeRequest, stream grpc.ServerStream) error
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(BridgeServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BridgeServiceServer), ctx, in)
			}

			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BridgeServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(BridgeServiceServer).Subscribe(in, stream)
}

var subscribeStream = grpc.StreamDesc{
	StreamName:    "Subscribe",
	Handler:       subscribeHandler,
	ServerStreams: true,
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BridgeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Vote", BridgeServiceServer.Vote),
		unary("Execute", BridgeServiceServer.Execute),
		unary("Cancel", BridgeServiceServer.Cancel),
		unary("Deposit", BridgeServiceServer.Deposit),
		unary("GetProposal", BridgeServiceServer.GetProposal),
		unary("HasVoted", BridgeServiceServer.HasVoted),
		unary("QuoteFee", BridgeServiceServer.QuoteFee),
		unary("HandlerFee", BridgeServiceServer.HandlerFee),
		unary("GetDepositNonce", BridgeServiceServer.GetDepositNonce),
		unary("GetStatus", BridgeServiceServer.GetStatus),
		unary("AddRelayer", BridgeServiceServer.AddRelayer),
		unary("RemoveRelayer", BridgeServiceServer.RemoveRelayer),
		unary("GrantAdmin", BridgeServiceServer.GrantAdmin),
		unary("RevokeAdmin", BridgeServiceServer.RevokeAdmin),
		unary("SetThreshold", BridgeServiceServer.SetThreshold),
		unary("SetExpiry", BridgeServiceServer.SetExpiry),
		unary("SetResource", BridgeServiceServer.SetResource),
		unary("RemoveResource", BridgeServiceServer.RemoveResource),
		unary("SetBaseFee", BridgeServiceServer.SetBaseFee),
		unary("SetDomainMultiplier", BridgeServiceServer.SetDomainMultiplier),
		unary("SetResourceMultiplier", BridgeServiceServer.SetResourceMultiplier),
		unary("SetDepositNonce", BridgeServiceServer.SetDepositNonce),
		unary("SetForwarder", BridgeServiceServer.SetForwarder),
		unary("Pause", BridgeServiceServer.Pause),
		unary("Unpause", BridgeServiceServer.Unpause),
		unary("WithdrawFees", BridgeServiceServer.WithdrawFees),
	},
	Streams: []grpc.StreamDesc{subscribeStream},
}

func RegisterBridgeServiceServer(registrar grpc.ServiceRegistrar, srv BridgeServiceServer) {
	registrar.RegisterService(&serviceDesc, srv)
}
