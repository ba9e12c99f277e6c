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

func call[Req, Resp any](c *Client, method string, req Req) (*Resp, error) {
	var resp Resp
	if err := c.client.Call("Deskdrop."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusRequest, StatusResponse](c, "Status", StatusRequest{})
}

// Pause stops new desktop entries from being arranged.
func (c *Client) Pause() (*PauseResponse, error) {
	return call[PauseRequest, PauseResponse](c, "Pause", PauseRequest{})
}

// Resume re-enables arranging.
func (c *Client) Resume() (*ResumeResponse, error) {
	return call[ResumeRequest, ResumeResponse](c, "Resume", ResumeRequest{})
}

// Arrange arranges path immediately and waits for the outcome.
func (c *Client) Arrange(path string) (*ArrangeResponse, error) {
	return call[ArrangeRequest, ArrangeResponse](c, "Arrange", ArrangeRequest{Path: path})
}

// History returns up to limit recent arrangements.
func (c *Client) History(limit int) (*HistoryResponse, error) {
	return call[HistoryRequest, HistoryResponse](c, "History", HistoryRequest{Limit: limit})
}

// Devices lists mounted removable drives.
func (c *Client) Devices() (*DevicesResponse, error) {
	return call[DevicesRequest, DevicesResponse](c, "Devices", DevicesRequest{})
}

// Stop asks the daemon to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopRequest, StopResponse](c, "Stop", StopRequest{})
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationRequest, TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}
