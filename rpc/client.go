package rpc

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/events"
	"github.com/qubic/go-bridge-coordinator/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Client calls the bridge service as a fixed identity.
type Client struct {
	conn   grpc.ClientConnInterface
	caller types.Address
	suffix []byte
}

func NewClient(conn grpc.ClientConnInterface, caller types.Address) *Client {
	return &Client{conn: conn, caller: caller}
}

// As returns a client for another identity on the same connection.
func (c *Client) As(caller types.Address) *Client {
	return &Client{conn: c.conn, caller: caller}
}

// Forwarding returns a client that sends suffix along, as a trusted forwarder does on behalf of a sender.
func (c *Client) Forwarding(suffix []byte) *Client {
	return &Client{conn: c.conn, caller: c.caller, suffix: suffix}
}

func (c *Client) outgoing(ctx context.Context) context.Context {
	ctx = metadata.AppendToOutgoingContext(ctx, CallerHeader, c.caller.Hex())
	if len(c.suffix) > 0 {
		ctx = metadata.AppendToOutgoingContext(ctx, ForwardedHeader, hexutil.Encode(c.suffix))
	}
	return ctx
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.conn.Invoke(c.outgoing(ctx), fullMethod(method), in, out, grpc.ForceCodec(codec{}))
}

func (c *Client) Vote(ctx context.Context, req *VoteRequest) (*VoteResponse, error) {
	out := new(VoteResponse)
	return out, c.invoke(ctx, "Vote", req, out)
}

func (c *Client) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	out := new(ExecuteResponse)
	return out, c.invoke(ctx, "Execute", req, out)
}

func (c *Client) Cancel(ctx context.Context, req *ProposalRequest) error {
	return c.invoke(ctx, "Cancel", req, new(Empty))
}

func (c *Client) Deposit(ctx context.Context, req *DepositRequest) (*DepositResponse, error) {
	out := new(DepositResponse)
	return out, c.invoke(ctx, "Deposit", req, out)
}

func (c *Client) GetProposal(ctx context.Context, req *ProposalRequest) (*ProposalResponse, error) {
	out := new(ProposalResponse)
	return out, c.invoke(ctx, "GetProposal", req, out)
}

func (c *Client) HasVoted(ctx context.Context, req *HasVotedRequest) (*HasVotedResponse, error) {
	out := new(HasVotedResponse)
	return out, c.invoke(ctx, "HasVoted", req, out)
}

func (c *Client) QuoteFee(ctx context.Context, req *QuoteFeeRequest) (*AmountResponse, error) {
	out := new(AmountResponse)
	return out, c.invoke(ctx, "QuoteFee", req, out)
}

func (c *Client) HandlerFee(ctx context.Context, req *HandlerFeeRequest) (*HandlerFeeResponse, error) {
	out := new(HandlerFeeResponse)
	return out, c.invoke(ctx, "HandlerFee", req, out)
}

func (c *Client) GetDepositNonce(ctx context.Context, req *DomainRequest) (*NonceResponse, error) {
	out := new(NonceResponse)
	return out, c.invoke(ctx, "GetDepositNonce", req, out)
}

func (c *Client) GetStatus(ctx context.Context) (*StatusResponse, error) {
	out := new(StatusResponse)
	return out, c.invoke(ctx, "GetStatus", &Empty{}, out)
}

func (c *Client) AddRelayer(ctx context.Context, identity types.Address) (*SlotResponse, error) {
	out := new(SlotResponse)
	return out, c.invoke(ctx, "AddRelayer", &IdentityRequest{Identity: identity}, out)
}

func (c *Client) RemoveRelayer(ctx context.Context, identity types.Address) error {
	return c.invoke(ctx, "RemoveRelayer", &IdentityRequest{Identity: identity}, new(Empty))
}

func (c *Client) GrantAdmin(ctx context.Context, identity types.Address) error {
	return c.invoke(ctx, "GrantAdmin", &IdentityRequest{Identity: identity}, new(Empty))
}

func (c *Client) RevokeAdmin(ctx context.Context, identity types.Address) error {
	return c.invoke(ctx, "RevokeAdmin", &IdentityRequest{Identity: identity}, new(Empty))
}

func (c *Client) SetThreshold(ctx context.Context, threshold uint16) error {
	return c.invoke(ctx, "SetThreshold", &ThresholdRequest{Threshold: threshold}, new(Empty))
}

func (c *Client) SetExpiry(ctx context.Context, blocks uint64) error {
	return c.invoke(ctx, "SetExpiry", &ExpiryRequest{Blocks: blocks}, new(Empty))
}

func (c *Client) SetResource(ctx context.Context, req *ResourceRequest) error {
	return c.invoke(ctx, "SetResource", req, new(Empty))
}

func (c *Client) RemoveResource(ctx context.Context, resourceID types.ResourceID) error {
	return c.invoke(ctx, "RemoveResource", &ResourceRequest{ResourceID: resourceID}, new(Empty))
}

func (c *Client) SetBaseFee(ctx context.Context, fee string) error {
	return c.invoke(ctx, "SetBaseFee", &BaseFeeRequest{Fee: fee}, new(Empty))
}

func (c *Client) SetDomainMultiplier(ctx context.Context, req *DomainMultiplierRequest) error {
	return c.invoke(ctx, "SetDomainMultiplier", req, new(Empty))
}

func (c *Client) SetResourceMultiplier(ctx context.Context, req *ResourceMultiplierRequest) error {
	return c.invoke(ctx, "SetResourceMultiplier", req, new(Empty))
}

func (c *Client) SetDepositNonce(ctx context.Context, req *DepositNonceRequest) error {
	return c.invoke(ctx, "SetDepositNonce", req, new(Empty))
}

func (c *Client) SetForwarder(ctx context.Context, req *ForwarderRequest) error {
	return c.invoke(ctx, "SetForwarder", req, new(Empty))
}

func (c *Client) Pause(ctx context.Context) error {
	return c.invoke(ctx, "Pause", &Empty{}, new(Empty))
}

func (c *Client) Unpause(ctx context.Context) error {
	return c.invoke(ctx, "Unpause", &Empty{}, new(Empty))
}

func (c *Client) WithdrawFees(ctx context.Context, req *WithdrawFeesRequest) (*AmountResponse, error) {
	out := new(AmountResponse)
	return out, c.invoke(ctx, "WithdrawFees", req, out)
}

// EventStream receives events from a Subscribe call.
type EventStream struct {
	stream grpc.ClientStream
}

// Subscribe opens the event stream. It returns once the server registered the subscription.
func (c *Client) Subscribe(ctx context.Context, req *SubscribeRequest) (*EventStream, error) {
	stream, err := c.conn.NewStream(c.outgoing(ctx), &subscribeStream, fullMethod("Subscribe"), grpc.ForceCodec(codec{}))
	if err != nil {
		return nil, errors.Wrap(err, "opening subscribe stream")
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, errors.Wrap(err, "sending subscribe request")
	}
	if err := stream.CloseSend(); err != nil {
		return nil, errors.Wrap(err, "closing subscribe send side")
	}
	md, err := stream.Header()
	if err != nil {
		return nil, errors.Wrap(err, "waiting for subscribe header")
	}
	if md == nil {
		// rejected before the subscription was registered, the status comes with RecvMsg
		var e events.Event
		if err := stream.RecvMsg(&e); err != nil {
			return nil, err
		}
		return nil, errors.New("subscribe stream ended without headers")
	}

	return &EventStream{stream: stream}, nil
}

func (s *EventStream) Recv() (events.Event, error) {
	var e events.Event
	if err := s.stream.RecvMsg(&e); err != nil {
		return events.Event{}, err
	}
	return e, nil
}
