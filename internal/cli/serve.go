package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haeun/whatif/internal/tracing"
	"github.com/haeun/whatif/pkg/gateway"
	"github.com/haeun/whatif/pkg/localstore"
	"github.com/haeun/whatif/pkg/reconcile"
	"github.com/haeun/whatif/pkg/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync service",
	Long: `Run the sync service. It serves session state over a websocket
gateway, watches the local store for changes made by other processes,
and periodically reconciles the remote store.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	log := rt.log.Zerolog()

	if err := tracing.InitOpenTelemetry("whatif"); err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracing.ShutdownOpenTelemetry(ctx)
	}()

	ctx := context.Background()
	if err := rt.sync.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("initial load degraded")
	}

	// Gateway pushes every committed state transition to connected clients
	var srv *gateway.Server
	if rt.cfg.Gateway.Enabled {
		srv = gateway.NewServer(rt.cfg.Gateway.Host, rt.cfg.Gateway.Port, rt.cfg.Gateway.SharedSecret, log)
		publish := srv.Broadcaster().StatePublisher()
		rt.sync.SetOnChange(func(state session.State) {
			publish(state)
		})
		go func() {
			if err := srv.Start(); err != nil {
				log.Error().Err(err).Msg("gateway server stopped")
			}
		}()
	}

	// Reload when another process rewrites the collection keys
	watcher, err := localstore.NewWatcher(rt.local, log, func(key string) {
		if key != session.SessionsKey && key != session.CurrentSessionKey {
			return
		}
		if err := rt.sync.Load(context.Background()); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("reload after store change failed")
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("store watcher unavailable")
	} else {
		defer watcher.Stop()
	}

	var rec *reconcile.Reconciler
	if rt.remote != nil && rt.cfg.Sync.Schedule != "" {
		rec = reconcile.New(rt.sync.Snapshot, rt.remote, rt.resolver, log)
		if err := rec.Start(rt.cfg.Sync.Schedule); err != nil {
			return fmt.Errorf("failed to start reconciler: %w", err)
		}
		defer rec.Stop()
		log.Info().Str("schedule", rt.cfg.Sync.Schedule).Msg("reconciler scheduled")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("gateway shutdown failed")
		}
	}

	return nil
}
