package jsc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quartzsched/quartz/pkg/job"
	"github.com/quartzsched/quartz/pkg/request"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec marshals gRPC messages as JSON instead of protobuf wire
// format; the job-description store has no generated protobuf schema, so
// quartz rides gRPC's transport and call semantics with a plain JSON
// payload.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

// Client calls a job-description store over an existing gRPC connection.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient wraps an already-dialed connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

type fetchRequestArgs struct {
	JobID int64 `json:"job_id"`
}

type fetchRequestReply struct {
	Requested job.Requested `json:"requested"`
	Request   request.Node  `json:"request"`
}

func (c *Client) FetchRequest(ctx context.Context, jobID int64) (job.Requested, *request.Node, error) {
	args := fetchRequestArgs{JobID: jobID}
	var reply fetchRequestReply
	err := c.conn.Invoke(ctx, "/quartz.jsc.JobStore/FetchRequest", &args, &reply,
		grpc.CallContentSubtype(codecName))
	if err != nil {
		return job.Requested{}, nil, fmt.Errorf("jsc.Client.FetchRequest: %w", err)
	}
	return reply.Requested, &reply.Request, nil
}

type updateArgs struct {
	JobID int64           `json:"job_id"`
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

func (c *Client) Update(ctx context.Context, jobID int64, field string, value []byte) error {
	args := updateArgs{JobID: jobID, Field: field, Value: value}
	var reply struct{}
	err := c.conn.Invoke(ctx, "/quartz.jsc.JobStore/Update", &args, &reply,
		grpc.CallContentSubtype(codecName))
	if err != nil {
		return fmt.Errorf("jsc.Client.Update: %w", err)
	}
	return nil
}
