/*
Package scheduler implements the scheduling loop: a queue-depth-bounded
pass over pending jobs that asks the active policy (pkg/policy) to find,
select, and allocate-or-reserve a resource sub-tree (pkg/resource) for
each.

# Pass anatomy

Each call to Loop.Pass runs five numbered steps:

 1. Release every reservation held anywhere in the tree (the active policy
    recomputes them from scratch this pass).
 2. Run the policy's loop_setup hook, then feed it the completion times of
    currently running jobs if it wants them (backfill's future-window
    search).
 3. Walk the pending queue (pkg/core's PendingQueue) up to queue-depth
    entries.
 4. For each job still in SchedReq: find a candidate sub-tree, select it
    down to the request's exact shape, then allocate it now or reserve it
    for a future window.
 5. A "stop scheduling" verdict from the policy abandons the rest of the
    queue for this pass.

# Triggers

Pass is driven by Notify, called on a resource-freed event, a periodic
tick, or SchedReq entry. Under delay-sched batching, Notify
only marks the loop dirty; Idle drains it at the next reactor idle instead
of running a pass inline.
*/
package scheduler
