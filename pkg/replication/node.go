package replication

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/quartzsched/quartz/pkg/storage"
)

// Node owns a single raft.Raft instance replicating job-record commands
// into an FSM backed by store.
type Node struct {
	raft *raft.Raft
	fsm  *FSM
}

// Bootstrap starts a single-voter raft cluster rooted at dataDir, applying
// committed commands to store. A real multi-node deployment would add
// voters via raft.AddVoter once peers are known; quartz doesn't manage
// cluster membership itself, so that join path is left to an operator
// driving raft.Raft directly.
func Bootstrap(nodeID, bindAddr, dataDir string, store storage.Store) (*Node, error) {
	fsm := NewFSM(store)

	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(nodeID)

	addr, err := net.ResolveTCPAddr("tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("replication.Bootstrap: resolve bind addr: %w", err)
	}
	transport, err := raft.NewTCPTransport(bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("replication.Bootstrap: transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(dataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("replication.Bootstrap: snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("replication.Bootstrap: log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("replication.Bootstrap: stable store: %w", err)
	}

	r, err := raft.NewRaft(config, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("replication.Bootstrap: new raft: %w", err)
	}

	configuration := raft.Configuration{
		Servers: []raft.Server{{ID: config.LocalID, Address: transport.LocalAddr()}},
	}
	if err := r.BootstrapCluster(configuration).Error(); err != nil {
		return nil, fmt.Errorf("replication.Bootstrap: bootstrap cluster: %w", err)
	}

	return &Node{raft: r, fsm: fsm}, nil
}

// IsLeader reports whether this node currently holds the raft leadership.
func (n *Node) IsLeader() bool { return n.raft.State() == raft.Leader }

// Apply submits data as a new raft log entry and waits for it to commit.
func (n *Node) Apply(data []byte, timeout time.Duration) error {
	return n.raft.Apply(data, timeout).Error()
}

// Shutdown stops the raft instance.
func (n *Node) Shutdown() error {
	return n.raft.Shutdown().Error()
}
