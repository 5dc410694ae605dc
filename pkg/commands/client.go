package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/ocpp-central-system/pkg/commsutil"
)

const clientLogPrefix = "commands:client"

// Client sends commands to a central system over COMMS.
type Client struct {
	nc      *comms.Conn
	subject string
}

// NewClient creates a Client publishing on subject.
func NewClient(nc *comms.Conn, subject string) *Client {
	if subject == "" {
		subject = commsutil.SubjectCommands
	}
	return &Client{nc: nc, subject: subject}
}

// Do sends req and waits for the response until ctx is done. An empty
// request id is filled in.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	data, err := commsutil.EncodePayload(req)
	if err != nil {
		return nil, fmt.Errorf("%s - encode request: %w", clientLogPrefix, err)
	}
	msg, err := c.nc.RequestWithContext(ctx, c.subject, data)
	if err != nil {
		return nil, fmt.Errorf("%s - request on %s: %w", clientLogPrefix, c.subject, err)
	}
	var resp Response
	if err := commsutil.DecodePayload(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("%s - decode response: %w", clientLogPrefix, err)
	}
	return &resp, nil
}

// Stations lists the stations connected to the central system.
func (c *Client) Stations(ctx context.Context) ([]string, error) {
	resp, err := c.Do(ctx, &Request{Type: TypeStations})
	if err != nil {
		return nil, err
	}
	if !resp.Ok {
		return nil, fmt.Errorf("%s - %s: %s", clientLogPrefix, resp.Error.Code, resp.Error.Message)
	}
	var out struct {
		Stations []string `json:"stations"`
	}
	if err := json.Unmarshal(resp.Result, &out); err != nil {
		return nil, fmt.Errorf("%s - decode station list: %w", clientLogPrefix, err)
	}
	return out.Stations, nil
}
