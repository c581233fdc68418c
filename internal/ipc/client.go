package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Patchwatch.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckNow runs one account's check cycle immediately.
func (c *Client) CheckNow(accountID string) (*CheckNowResponse, error) {
	var resp CheckNowResponse
	if err := c.client.Call("Patchwatch.CheckNow", CheckNowRequest{AccountID: accountID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefreshSchedule recomputes one account's schedule entry.
func (c *Client) RefreshSchedule(accountID string) (*RefreshScheduleResponse, error) {
	var resp RefreshScheduleResponse
	if err := c.client.Call("Patchwatch.RefreshSchedule", RefreshScheduleRequest{AccountID: accountID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Approve promotes a pending update into the release history.
func (c *Client) Approve(releaseID int64, pendingID string) (*ApproveResponse, error) {
	var resp ApproveResponse
	req := ApproveRequest{ReleaseID: releaseID, PendingID: pendingID}
	if err := c.client.Call("Patchwatch.Approve", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reject dismisses a pending update.
func (c *Client) Reject(releaseID int64, pendingID string) (*RejectResponse, error) {
	var resp RejectResponse
	req := RejectRequest{ReleaseID: releaseID, PendingID: pendingID}
	if err := c.client.Call("Patchwatch.Reject", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResolveRelation applies a decision to a relation candidate.
func (c *Client) ResolveRelation(candidateID, action string) (*ResolveRelationResponse, error) {
	var resp ResolveRelationResponse
	req := ResolveRelationRequest{CandidateID: candidateID, Action: action}
	if err := c.client.Call("Patchwatch.ResolveRelation", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReleaseList returns tracked releases.
func (c *Client) ReleaseList(accountID string, activeOnly bool) (*ReleaseListResponse, error) {
	var resp ReleaseListResponse
	req := ReleaseListRequest{AccountID: accountID, ActiveOnly: activeOnly}
	if err := c.client.Call("Patchwatch.ReleaseList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReleaseAdd registers a new tracked release.
func (c *Client) ReleaseAdd(req ReleaseAddRequest) (*ReleaseAddResponse, error) {
	var resp ReleaseAddResponse
	if err := c.client.Call("Patchwatch.ReleaseAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReleaseRemove deletes a tracked release.
func (c *Client) ReleaseRemove(releaseID int64) (*ReleaseRemoveResponse, error) {
	var resp ReleaseRemoveResponse
	if err := c.client.Call("Patchwatch.ReleaseRemove", ReleaseRemoveRequest{ReleaseID: releaseID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReleasePause pauses or resumes one release.
func (c *Client) ReleasePause(releaseID int64, active bool) (*ReleasePauseResponse, error) {
	var resp ReleasePauseResponse
	req := ReleasePauseRequest{ReleaseID: releaseID, Active: active}
	if err := c.client.Call("Patchwatch.ReleasePause", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PendingList returns queued detections.
func (c *Client) PendingList(releaseID int64) (*PendingListResponse, error) {
	var resp PendingListResponse
	if err := c.client.Call("Patchwatch.PendingList", PendingListRequest{ReleaseID: releaseID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RelationList returns open relation candidates.
func (c *Client) RelationList(releaseID int64) (*RelationListResponse, error) {
	var resp RelationListResponse
	if err := c.client.Call("Patchwatch.RelationList", RelationListRequest{ReleaseID: releaseID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns one release's applied update history.
func (c *Client) History(releaseID int64) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.client.Call("Patchwatch.History", HistoryRequest{ReleaseID: releaseID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health retrieves catalog diagnostics.
func (c *Client) Health() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.client.Call("Patchwatch.Health", HealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
