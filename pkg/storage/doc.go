/*
Package storage persists per-job scheduling state to a local bbolt file: which state a job is in, when it last changed, its serialized
selected resource sub-tree, and the rank/core-count allocation derived from
it at allocate time.

# Layout

	<dataDir>/quartz.db, four buckets keyed by job id:

	jobs            - current state name ("pending", "running", ...)
	jobs_state_time - seconds since epoch of the last state change
	jobs_rdl        - serialized selected sub-tree
	jobs_rdl_alloc  - JSON array of {containing_rank, ncores}

# Usage

	store, err := storage.NewBoltStore("/var/lib/quartz")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	if err := store.SaveJobState(42, "running", time.Now()); err != nil {
		log.Fatal(err)
	}

	state, at, err := store.LoadJobState(42)

Store has no call that lists stored jobs, and pkg/core does not read
persisted state back at startup: a restarted core begins with an empty
job table.
*/
package storage
