// Package launch models the external exec/RPC transport collaborator:
// pkg/core tells it to start a job once resources
// are allocated, and drops an in-flight run request by id on cancellation.
package launch

import "context"

// Launcher is the transport interface pkg/core depends on; quartz ships a
// gRPC/JSON-codec Client and an in-memory Fake for tests.
type Launcher interface {
	// Run asks the launcher to start jobID, returning an opaque run-request
	// id the core can later cancel by value.
	Run(ctx context.Context, jobID int64) (runRequestID int64, err error)

	// Cancel drops an in-flight run request by id.
	Cancel(ctx context.Context, runRequestID int64) error
}
