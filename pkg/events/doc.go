/*
Package events provides an in-memory pub/sub broker for events pkg/core
produces; today pkg/core publishes only resource.freed. Job status
tuples, heartbeats and plugin load/unload requests reach pkg/core through
its own inbound channel, not through Broker.

pkg/core's reactor treats its own inbound channel as the canonical event
queue; Broker exists for everything downstream that wants to
observe those events too — a CLI `--watch`, a metrics collector, an audit
log — without coupling them to pkg/core directly.

# Usage

	import "github.com/quartzsched/quartz/pkg/events"

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for ev := range sub {
			log.Printf("%s: %s", ev.Type, ev.Message)
		}
	}()

	broker.Publish(&events.Event{
		Type:    events.EventResourceFreed,
		Message: "job 42 released its sub-tree",
	})

# Delivery semantics

Publish is non-blocking from the broker's own run loop: a full subscriber
buffer drops the event rather than stalling other subscribers. This
matches requirement that publishing resource.freed is
fire-and-forget — the reactor never awaits a subscriber.
*/
package events
