package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/quartzsched/quartz/pkg/config"
	"github.com/quartzsched/quartz/pkg/controlapi"
	"github.com/quartzsched/quartz/pkg/core"
	"github.com/quartzsched/quartz/pkg/events"
	"github.com/quartzsched/quartz/pkg/jsc"
	"github.com/quartzsched/quartz/pkg/launch"
	"github.com/quartzsched/quartz/pkg/log"
	"github.com/quartzsched/quartz/pkg/metrics"
	"github.com/quartzsched/quartz/pkg/rdl"
	"github.com/quartzsched/quartz/pkg/replication"
	"github.com/quartzsched/quartz/pkg/resource"
	"github.com/quartzsched/quartz/pkg/storage"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the quartz scheduling core",
	Long: `serve starts the resource tree, the job table, and the background
scheduling loop, and listens for control-plane connections from the quartz
CLI.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("data-dir", "./quartz-data", "Directory for the bolt-backed job store")
	serveCmd.Flags().String("control-addr", "127.0.0.1:9631", "Listen address for the control API")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9632", "Listen address for /metrics, /health, /ready")
	serveCmd.Flags().String("jsc-addr", "", "Job-description store address (empty: use an in-memory store, no persistence across restarts)")
	serveCmd.Flags().String("launch-addr", "", "Job launcher address (empty: use an in-memory launcher that never actually runs anything)")
	serveCmd.Flags().String("rdl-conf", "", "Topology definition file (spec rdl-conf); empty falls back to a single default node")
	serveCmd.Flags().String("rdl-resource", "default", "Root resource URI")
	serveCmd.Flags().Bool("sched-once", false, "Do not release resources at Complete/Cancelled")
	serveCmd.Flags().Bool("fail-on-error", false, "Accepted but not acted on: an unreadable or unparsable rdl-conf always aborts startup")
	serveCmd.Flags().String("plugin", "fcfs", "Scheduling policy to load at startup (fcfs, backfill, topo)")
	serveCmd.Flags().String("plugin-opts", "", "Options string passed to the startup policy's Parse")
	serveCmd.Flags().String("sched-params", "queue-depth=1024,delay-sched=false", "queue-depth=N,delay-sched=bool")
	serveCmd.Flags().String("raft-node-id", "", "Enable raft-replicated job state under this node id (empty: single-node, local bolt store only)")
	serveCmd.Flags().String("raft-bind-addr", "127.0.0.1:9633", "Raft transport listen address")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	tree, ranks, err := buildTree(cfg)
	if err != nil {
		return err
	}

	localStore, err := storage.NewBoltStore(cfg.dataDir)
	if err != nil {
		return err
	}
	defer localStore.Close()

	var store storage.Store = localStore
	if cfg.raftNodeID != "" {
		node, err := replication.Bootstrap(cfg.raftNodeID, cfg.raftBindAddr, cfg.dataDir, localStore)
		if err != nil {
			return err
		}
		defer node.Shutdown()
		store = replication.NewReplicatedStore(node, localStore)
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	jscStore, closeJSC, err := dialJSC(cfg.jscAddr)
	if err != nil {
		return err
	}
	defer closeJSC()

	launcher, closeLaunch, err := dialLaunch(cfg.launchAddr)
	if err != nil {
		return err
	}
	defer closeLaunch()

	c, err := core.New(tree, cfg.coreConfig, store, broker, jscStore, launcher, nil)
	if err != nil {
		return err
	}
	if ranks != nil {
		*c.RankTable() = *ranks
	}
	if cfg.plugin != "fcfs" || cfg.pluginOpts != "" {
		if err := c.LoadPolicy(cfg.plugin, cfg.pluginOpts); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	collector := metrics.NewCollector(c)
	collector.Start()
	defer collector.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	metricsSrv := &http.Server{Addr: cfg.metricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger.Error().Err(err).Msg("metrics server exited")
		}
	}()
	defer metricsSrv.Close()

	control := controlapi.NewServer(c)
	go func() {
		if err := control.Serve(cfg.controlAddr); err != nil {
			log.Logger.Error().Err(err).Msg("control server exited")
		}
	}()
	defer control.Stop()

	log.Logger.Info().
		Str("control_addr", cfg.controlAddr).
		Str("metrics_addr", cfg.metricsAddr).
		Str("plugin", cfg.plugin).
		Msg("quartz core started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Logger.Info().Msg("shutting down")
	c.Stop()
	return nil
}

type serveConfig struct {
	dataDir      string
	controlAddr  string
	metricsAddr  string
	jscAddr      string
	launchAddr   string
	plugin       string
	pluginOpts   string
	rdlConf      string
	raftNodeID   string
	raftBindAddr string
	coreConfig   core.Config
}

func buildConfig(cmd *cobra.Command) (*serveConfig, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	controlAddr, _ := cmd.Flags().GetString("control-addr")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	jscAddr, _ := cmd.Flags().GetString("jsc-addr")
	launchAddr, _ := cmd.Flags().GetString("launch-addr")
	rdlConf, _ := cmd.Flags().GetString("rdl-conf")
	rdlResource, _ := cmd.Flags().GetString("rdl-resource")
	schedOnce, _ := cmd.Flags().GetBool("sched-once")
	failOnError, _ := cmd.Flags().GetBool("fail-on-error")
	plugin, _ := cmd.Flags().GetString("plugin")
	pluginOpts, _ := cmd.Flags().GetString("plugin-opts")
	schedParams, _ := cmd.Flags().GetString("sched-params")
	raftNodeID, _ := cmd.Flags().GetString("raft-node-id")
	raftBindAddr, _ := cmd.Flags().GetString("raft-bind-addr")

	c := config.Default()
	c.RDLConf = rdlConf
	c.RDLResource = rdlResource
	c.SchedOnce = schedOnce
	c.FailOnError = failOnError
	c.Plugin = plugin
	c.PluginOpts = pluginOpts
	if err := c.ParseSchedParams(schedParams); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &serveConfig{
		dataDir:     dataDir,
		controlAddr: controlAddr,
		metricsAddr: metricsAddr,
		jscAddr:     jscAddr,
		launchAddr:  launchAddr,
		plugin:      c.Plugin,
		pluginOpts:  c.PluginOpts,
		rdlConf:     c.RDLConf,
		raftNodeID:   raftNodeID,
		raftBindAddr: raftBindAddr,
		coreConfig: core.Config{
			QueueDepth: c.QueueDepth,
			DelaySched: c.DelaySched,
			SchedOnce:  c.SchedOnce,
		},
	}, nil
}

// buildTree loads the topology from rdl-conf if given; absent that, it
// stands in for the hardware-inventory store (out of scope as an external
// collaborator) with a single default node.
func buildTree(cfg *serveConfig) (*resource.Tree, *resource.RankTable, error) {
	if cfg.rdlConf == "" {
		cluster, err := resource.New(1, "cluster", "default", 1, 1<<31)
		if err != nil {
			return nil, nil, err
		}
		node, err := resource.New(2, "node", "node0", 1, 1<<31)
		if err != nil {
			return nil, nil, err
		}
		cluster.AddChild(node)
		return resource.NewTree(cluster, nil), resource.NewRankTable(), nil
	}

	data, err := os.ReadFile(cfg.rdlConf)
	if err != nil {
		return nil, nil, err
	}
	return rdl.Parse(data, nil)
}

func dialJSC(addr string) (jsc.Store, func(), error) {
	if addr == "" {
		return jsc.NewFake(), func() {}, nil
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, err
	}
	return jsc.NewClient(conn), func() { conn.Close() }, nil
}

func dialLaunch(addr string) (launch.Launcher, func(), error) {
	if addr == "" {
		return launch.NewFake(), func() {}, nil
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, err
	}
	return launch.NewClient(conn), func() { conn.Close() }, nil
}
