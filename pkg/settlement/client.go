// Package settlement is the narrow collaborator the brief submission
// driver talks to: a handful of RPCs against an external anchor service,
// wrapped as a thin struct over a single *grpc.ClientConn with one method
// per call, short per-call timeouts, and no retry logic beyond what the
// driver itself does.
package settlement

import (
	"context"
	"fmt"
	"time"

	sproto "github.com/meridianchain/stateindexer/pkg/settlement/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const callTimeout = 10 * time.Second

// Client wraps a connection to the settlement service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the settlement service at addr without mTLS; the
// settlement service is expected to sit behind a trusted network boundary.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("settlement.Dial(%s): %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return c.conn.Invoke(ctx, method, req, resp)
}

// EnsureStateAccount creates the settlement service's "state" account if
// it does not already exist. Idempotent.
func (c *Client) EnsureStateAccount(ctx context.Context) error {
	var resp sproto.EnsureStateAccountResponse
	return c.invoke(ctx, "/settlement.Settlement/EnsureStateAccount", &sproto.EnsureStateAccountRequest{}, &resp)
}

// EnsureTallyAccount creates the settlement service's "tally" account if
// absent and returns the greatest slot already submitted, per §4.7 step 2.
func (c *Client) EnsureTallyAccount(ctx context.Context) (lastSubmittedSlot uint64, err error) {
	var resp sproto.EnsureTallyAccountResponse
	if err := c.invoke(ctx, "/settlement.Settlement/EnsureTallyAccount", &sproto.EnsureTallyAccountRequest{}, &resp); err != nil {
		return 0, err
	}
	return resp.LastSubmittedSlot, nil
}

// IsBriefAccountExist reports whether slot already has a brief account on
// the settlement service.
func (c *Client) IsBriefAccountExist(ctx context.Context, slot uint64) (bool, error) {
	var resp sproto.IsBriefAccountExistResponse
	if err := c.invoke(ctx, "/settlement.Settlement/IsBriefAccountExist", &sproto.IsBriefAccountExistRequest{Slot: slot}, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

// CreateBriefAccount submits brief for anchoring, passing attemptID to the
// service unchanged. The submission driver sends a fresh random ID on
// every call, so retries of the same brief carry different IDs.
func (c *Client) CreateBriefAccount(ctx context.Context, b sproto.BriefAccount, attemptID string) error {
	var resp sproto.CreateBriefAccountResponse
	return c.invoke(ctx, "/settlement.Settlement/CreateBriefAccount", &sproto.CreateBriefAccountRequest{Brief: b, AttemptID: attemptID}, &resp)
}

// FetchBriefAccount reads a previously submitted brief back from the
// settlement service.
func (c *Client) FetchBriefAccount(ctx context.Context, slot uint64) (sproto.BriefAccount, bool, error) {
	var resp sproto.FetchBriefAccountResponse
	if err := c.invoke(ctx, "/settlement.Settlement/FetchBriefAccount", &sproto.FetchBriefAccountRequest{Slot: slot}, &resp); err != nil {
		return sproto.BriefAccount{}, false, err
	}
	return resp.Brief, resp.Found, nil
}

// GetMaxSlotOnChain returns the highest slot the settlement service has
// already anchored, independent of this driver's local bookkeeping.
func (c *Client) GetMaxSlotOnChain(ctx context.Context) (uint64, error) {
	var resp sproto.GetMaxSlotOnChainResponse
	if err := c.invoke(ctx, "/settlement.Settlement/GetMaxSlotOnChain", &sproto.GetMaxSlotOnChainRequest{}, &resp); err != nil {
		return 0, err
	}
	return resp.Slot, nil
}
