package launch

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec mirrors pkg/jsc's: the launcher transport has no generated
// protobuf schema either, so quartz rides gRPC's transport with a plain
// JSON payload per call.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

// Client calls a launcher over an existing gRPC connection.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient wraps an already-dialed connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

type runArgs struct {
	JobID int64 `json:"job_id"`
}

type runReply struct {
	RunRequestID int64 `json:"run_request_id"`
}

func (c *Client) Run(ctx context.Context, jobID int64) (int64, error) {
	args := runArgs{JobID: jobID}
	var reply runReply
	err := c.conn.Invoke(ctx, "/quartz.launch.Launcher/Run", &args, &reply,
		grpc.CallContentSubtype(codecName))
	if err != nil {
		return 0, fmt.Errorf("launch.Client.Run: %w", err)
	}
	return reply.RunRequestID, nil
}

type cancelArgs struct {
	RunRequestID int64 `json:"run_request_id"`
}

func (c *Client) Cancel(ctx context.Context, runRequestID int64) error {
	args := cancelArgs{RunRequestID: runRequestID}
	var reply struct{}
	err := c.conn.Invoke(ctx, "/quartz.launch.Launcher/Cancel", &args, &reply,
		grpc.CallContentSubtype(codecName))
	if err != nil {
		return fmt.Errorf("launch.Client.Cancel: %w", err)
	}
	return nil
}
