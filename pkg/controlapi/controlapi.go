// Package controlapi is the thin control-plane surface cmd/quartz's "job"
// and "policy" subcommands talk to: a running quartzd accepts job status
// transitions and plugin.load over it and answers job-list queries.
// It rides the same grpc+JSON-codec shape as pkg/jsc and pkg/launch, but
// server-side: quartz is the callee here, not the caller.
package controlapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/quartzsched/quartz/pkg/core"
	"github.com/quartzsched/quartz/pkg/job"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

const serviceName = "quartz.control.Control"

// Server exposes a *core.Core over gRPC for the CLI to drive.
type Server struct {
	core *core.Core
	grpc *grpc.Server
}

// NewServer wraps c.
func NewServer(c *core.Core) *Server {
	s := &Server{core: c}
	s.grpc = grpc.NewServer()
	s.grpc.RegisterService(&serviceDesc, s)
	return s
}

// Serve blocks accepting connections on addr until the listener errors or
// Stop is called.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("controlapi.Serve: %w", err)
	}
	return s.grpc.Serve(lis)
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() { s.grpc.GracefulStop() }

type submitStatusArgs struct {
	JobID int64     `json:"job_id"`
	Old   job.State `json:"old"`
	New   job.State `json:"new"`
}

func (s *Server) submitStatus(ctx context.Context, args *submitStatusArgs) (*struct{}, error) {
	s.core.Submit(core.Event{
		Kind: core.EventJobStatus, JobID: args.JobID,
		OldState: args.Old, NewState: args.New,
	})
	return &struct{}{}, nil
}

type jobSummary struct {
	ID    int64  `json:"id"`
	State string `json:"state"`
}

type listJobsReply struct {
	Jobs []jobSummary `json:"jobs"`
}

func (s *Server) listJobs(ctx context.Context, _ *struct{}) (*listJobsReply, error) {
	snap := s.core.Jobs()
	out := make([]jobSummary, len(snap))
	for i, j := range snap {
		out[i] = jobSummary{ID: j.ID, State: j.State}
	}
	return &listJobsReply{Jobs: out}, nil
}

type loadPolicyArgs struct {
	Name string `json:"name"`
	Args string `json:"args"`
}

func (s *Server) loadPolicy(ctx context.Context, args *loadPolicyArgs) (*struct{}, error) {
	if err := s.core.LoadPolicy(args.Name, args.Args); err != nil {
		return nil, err
	}
	return &struct{}{}, nil
}

func submitStatusHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	var args submitStatusArgs
	if err := dec(&args); err != nil {
		return nil, err
	}
	return srv.(*Server).submitStatus(ctx, &args)
}

func listJobsHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	var args struct{}
	if err := dec(&args); err != nil {
		return nil, err
	}
	return srv.(*Server).listJobs(ctx, &args)
}

func loadPolicyHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	var args loadPolicyArgs
	if err := dec(&args); err != nil {
		return nil, err
	}
	return srv.(*Server).loadPolicy(ctx, &args)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitStatus", Handler: submitStatusHandler},
		{MethodName: "ListJobs", Handler: listJobsHandler},
		{MethodName: "LoadPolicy", Handler: loadPolicyHandler},
	},
}

// Client calls a quartzd control endpoint over an already-dialed connection.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient wraps conn.
func NewClient(conn *grpc.ClientConn) *Client { return &Client{conn: conn} }

func (c *Client) method(name string) string { return "/" + serviceName + "/" + name }

// SubmitStatus drives a job.status(old, new) transition on the remote core.
func (c *Client) SubmitStatus(ctx context.Context, jobID int64, old, new job.State) error {
	args := submitStatusArgs{JobID: jobID, Old: old, New: new}
	var reply struct{}
	if err := c.conn.Invoke(ctx, c.method("SubmitStatus"), &args, &reply, grpc.CallContentSubtype(codecName)); err != nil {
		return fmt.Errorf("controlapi.Client.SubmitStatus: %w", err)
	}
	return nil
}

// JobSummary mirrors core.JobSummary for clients that don't import pkg/core.
type JobSummary struct {
	ID    int64
	State string
}

// ListJobs returns every job the remote core currently knows about.
func (c *Client) ListJobs(ctx context.Context) ([]JobSummary, error) {
	var args struct{}
	var reply listJobsReply
	if err := c.conn.Invoke(ctx, c.method("ListJobs"), &args, &reply, grpc.CallContentSubtype(codecName)); err != nil {
		return nil, fmt.Errorf("controlapi.Client.ListJobs: %w", err)
	}
	out := make([]JobSummary, len(reply.Jobs))
	for i, j := range reply.Jobs {
		out[i] = JobSummary{ID: j.ID, State: j.State}
	}
	return out, nil
}

// LoadPolicy installs name as the remote core's active scheduling policy.
func (c *Client) LoadPolicy(ctx context.Context, name, args string) error {
	a := loadPolicyArgs{Name: name, Args: args}
	var reply struct{}
	if err := c.conn.Invoke(ctx, c.method("LoadPolicy"), &a, &reply, grpc.CallContentSubtype(codecName)); err != nil {
		return fmt.Errorf("controlapi.Client.LoadPolicy: %w", err)
	}
	return nil
}
