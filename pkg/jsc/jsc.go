// Package jsc models the external job-description store collaborator
//: pkg/core fetches a job's resource requirement from it
// on Reserved->Submitted (one of two suspension points). Store also
// carries an Update call; pkg/core does not use it and persists job
// state and RDL through pkg/storage instead.
package jsc

import (
	"context"

	"github.com/quartzsched/quartz/pkg/job"
	"github.com/quartzsched/quartz/pkg/request"
)

// Store is the job-description store interface pkg/core depends on; quartz
// ships a gRPC/JSON-codec Client and an in-memory Fake for tests.
type Store interface {
	// FetchRequest returns the resource requirement and the full request
	// tree parsed from jobID's stored description.
	FetchRequest(ctx context.Context, jobID int64) (job.Requested, *request.Node, error)

	// Update writes value (already encoded) for field into jobID's stored
	// description).
	Update(ctx context.Context, jobID int64, field string, value []byte) error
}
