package cli

import (
	"fmt"
	"path/filepath"

	"github.com/haeun/whatif/internal/config"
	"github.com/haeun/whatif/internal/logger"
	"github.com/haeun/whatif/pkg/identity"
	"github.com/haeun/whatif/pkg/localstore"
	"github.com/haeun/whatif/pkg/remotestore"
	"github.com/haeun/whatif/pkg/session"
)

// runtime bundles the shared pieces most commands need: config, logging
// and a hydrated synchronizer over the local and remote stores.
type runtime struct {
	cfg      *config.Config
	log      *logger.Logger
	local    *localstore.Store
	remote   *remotestore.Store
	resolver *identity.FileResolver
	sync     *session.Synchronizer
}

func newRuntime() (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	local, err := localstore.New(filepath.Join(cfg.DataDir, "store"))
	if err != nil {
		lg.Close()
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	resolver := identity.NewFileResolver(cfg.DataDir)

	var remote *remotestore.Store
	if cfg.Remote.DatabasePath != "" {
		remote, err = remotestore.Open(cfg.Remote.DatabasePath, lg.Zerolog())
		if err != nil {
			// Degrade to local-only rather than refusing to start
			logger := lg.Zerolog()
			logger.Warn().Err(err).Msg("remote store unavailable, running local-only")
			remote = nil
		}
	}

	syncCfg := session.Config{
		Local:    local,
		Identity: resolver,
		Logger:   lg.Zerolog(),
	}
	if remote != nil {
		syncCfg.Remote = remote
	}

	sync, err := session.New(syncCfg)
	if err != nil {
		if remote != nil {
			remote.Close()
		}
		lg.Close()
		return nil, fmt.Errorf("failed to create synchronizer: %w", err)
	}

	return &runtime{
		cfg:      cfg,
		log:      lg,
		local:    local,
		remote:   remote,
		resolver: resolver,
		sync:     sync,
	}, nil
}

// close drains background remote writes before releasing resources.
func (r *runtime) close() {
	r.sync.Wait()
	if r.remote != nil {
		r.remote.Close()
	}
	r.log.Close()
}
