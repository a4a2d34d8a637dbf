// Package servecmder provides the serve command that runs the recall API
// server and its background janitor.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/recall/api"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/runstate"
	"github.com/papercomputeco/recall/pkg/snapshot"
	snapshotutils "github.com/papercomputeco/recall/pkg/snapshot/utils"
)

const shutdownTimeout = 10 * time.Second

var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagVectorStorePath,
	config.FlagSnapshotProv,
	config.FlagSnapshotTgt,
	config.FlagEventsProv,
	config.FlagSummaryThreshold,
	config.FlagMaxTokens,
	config.FlagRetentionDays,
}

type serveCommander struct {
	configDir string
	debug     bool
	jsonLogs  bool
	noMCP     bool

	// Flag targets; the effective values are read back through viper.
	listen           string
	embeddingProv    string
	embeddingTgt     string
	embeddingModel   string
	embeddingDims    uint
	vectorProv       string
	vectorTgt        string
	vectorPath       string
	snapshotProv     string
	snapshotTgt      string
	eventsProv       string
	summaryThreshold uint
	maxTokens        uint
	retentionDays    uint

	viper  *viper.Viper
	logger *slog.Logger
}

const serveLongDesc string = `Run the recall memory server.

Starts the HTTP API (with the MCP endpoint at /mcp) and a janitor that
periodically removes memories older than retention.older_than_days.

When a snapshot store is configured the engine state is restored from the
latest snapshot at startup and saved again on shutdown.`

const serveShortDesc string = "Run the recall memory server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.jsonLogs, _ = cmd.Flags().GetBool("json-logs")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.ServeFlags, serveFlagKeys)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.ServeFlags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEmbeddingProv, &cmder.embeddingProv)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEmbeddingTgt, &cmder.embeddingTgt)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagVectorStoreProv, &cmder.vectorProv)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagVectorStoreTgt, &cmder.vectorTgt)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagVectorStorePath, &cmder.vectorPath)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagSnapshotProv, &cmder.snapshotProv)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagSnapshotTgt, &cmder.snapshotTgt)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEventsProv, &cmder.eventsProv)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagSummaryThreshold, &cmder.summaryThreshold)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagMaxTokens, &cmder.maxTokens)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagRetentionDays, &cmder.retentionDays)
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Serve the /mcp endpoint without tools")

	return cmd
}

func (c *serveCommander) run(parent context.Context) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(c.jsonLogs),
		logger.WithPretty(!c.jsonLogs && logger.IsTerminal(os.Stdout)),
	)
	cfg := config.FromViper(c.viper)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rs, err := runstate.NewManager(c.configDir)
	if err != nil {
		return err
	}
	lock, err := rs.TryLock()
	if err != nil {
		return fmt.Errorf("starting server in %s: %w", rs.Dir, err)
	}
	defer lock.Release()

	engine, err := NewEngine(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			c.logger.Warn("closing memory engine", "error", err)
		}
	}()

	store, err := snapshotutils.NewStore(ctx, &snapshotutils.NewStoreOpts{
		ProviderType: cfg.Snapshot.Provider,
		Target:       cfg.Snapshot.Target,
		ConfigDir:    c.configDir,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		if err := restoreSnapshot(ctx, engine, store, c.logger); err != nil {
			return err
		}
	}

	interval, err := cfg.Retention.IntervalDuration()
	if err != nil {
		return err
	}
	retentionDays := int(cfg.Retention.OlderThanDays)

	server, err := api.NewServer(api.Config{
		ListenAddr:    cfg.API.Listen,
		RetentionDays: retentionDays,
		DisableMCP:    c.noMCP,
	}, engine, c.logger)
	if err != nil {
		return err
	}

	if err := rs.SaveState(&runstate.State{
		PID:              os.Getpid(),
		APIURL:           apiURL(cfg.API.Listen),
		SnapshotProvider: cfg.Snapshot.Provider,
		StartedAt:        time.Now(),
	}); err != nil {
		c.logger.Warn("recording server state", "error", err)
	}
	defer rs.ClearState()

	config.Watch(c.viper, c.logger, func(*config.Config) {
		c.logger.Info("restart recall serve to apply config changes")
	})

	janitor := memory.NewJanitor(engine, retentionDays, interval, c.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Run)
	g.Go(func() error {
		return janitor.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		c.logger.Info("shutting down API server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	if store != nil {
		if err := saveSnapshot(context.WithoutCancel(ctx), engine, store, c.logger); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}

	return runErr
}

func restoreSnapshot(ctx context.Context, engine *memory.Engine, store snapshot.Store, log *slog.Logger) error {
	snap, err := store.Load(ctx)
	if errors.Is(err, snapshot.ErrNotFound) {
		log.Info("no snapshot to restore")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}

	if err := engine.Restore(ctx, snap); err != nil {
		return fmt.Errorf("restoring snapshot: %w", err)
	}

	log.Info("restored snapshot",
		"messages", len(snap.Messages),
		"summaries", len(snap.Summaries),
		"created_at", snap.CreatedAt,
	)
	return nil
}

func saveSnapshot(ctx context.Context, engine *memory.Engine, store snapshot.Store, log *slog.Logger) error {
	snap := engine.Snapshot()
	if err := store.Save(ctx, snap); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	log.Info("saved snapshot",
		"messages", len(snap.Messages),
		"summaries", len(snap.Summaries),
	)
	return nil
}

// apiURL turns a listen address like ":8090" into a client URL.
func apiURL(listen string) string {
	if len(listen) > 0 && listen[0] == ':' {
		return "http://localhost" + listen
	}
	return "http://" + listen
}
