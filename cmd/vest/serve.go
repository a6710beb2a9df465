package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/vesting/internal/config"
	"github.com/alfredjeanlab/vesting/internal/events"
	"github.com/alfredjeanlab/vesting/internal/server"
	"github.com/alfredjeanlab/vesting/internal/store"
	"github.com/alfredjeanlab/vesting/internal/store/memory"
	"github.com/alfredjeanlab/vesting/internal/store/postgres"
	vestsync "github.com/alfredjeanlab/vesting/internal/sync"
	"github.com/alfredjeanlab/vesting/internal/vesting"
)

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Start the vesting ledger server",
	GroupID:           "system",
	PersistentPreRunE: skipConnect,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		stack, err := openStack(cfg, logger)
		if err != nil {
			return err
		}
		defer stack.close(logger)

		vs := server.NewVestingServer(stack.svc, stack.keyring)
		grpcServer := server.NewGRPCServer(vs)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           vs.NewHTTPHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		scheduler := startSync(cfg, stack.svc, logger)

		logger.Info("vesting server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"owner", stack.svc.Owner(),
			"custody", cfg.Custody,
			"auth", stack.keyring.Enabled(),
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")
		return nil
	},
}

// stack is the ledger and everything it owns.
type stack struct {
	store     store.Store
	publisher events.Publisher
	keyring   *config.Keyring
	svc       *vesting.Service
}

// openStack wires the store, publisher, keyring and ledger from cfg.
// Everything opened so far is closed again on error.
func openStack(cfg *config.Config, logger *slog.Logger) (*stack, error) {
	st := &stack{}

	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st.store = pg
		logger.Info("using postgres store")
	} else {
		st.store = memory.New()
		logger.Warn("VESTING_DATABASE_URL not set, ledger state is in-memory only")
	}

	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			st.close(logger)
			return nil, err
		}
		st.publisher = pub
		logger.Info("events enabled", "nats_url", cfg.NATSURL)
	} else {
		st.publisher = &events.NoopPublisher{}
		logger.Info("events disabled (VESTING_NATS_URL not set)")
	}

	keyring, err := config.LoadKeyring(cfg.KeyringPath)
	if err != nil {
		st.close(logger)
		return nil, err
	}
	if !keyring.Enabled() {
		logger.Warn("no keyring configured, callers are trusted by header")
	}
	st.keyring = keyring

	svc, err := vesting.New(vesting.Config{
		Admin:       cfg.Admin,
		Custody:     cfg.Custody,
		FaucetLimit: cfg.FaucetLimit,
	}, st.store, st.publisher)
	if err != nil {
		st.close(logger)
		return nil, fmt.Errorf("starting ledger: %w", err)
	}
	st.svc = svc
	if err := svc.RestoreOwner(context.Background()); err != nil {
		st.close(logger)
		return nil, err
	}
	return st, nil
}

func (st *stack) close(logger *slog.Logger) {
	if st.publisher != nil {
		if err := st.publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
	}
	if st.store != nil {
		if err := st.store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}
	}
}

// startSync starts snapshot export when an interval and at least one
// destination are configured. It returns nil otherwise.
func startSync(cfg *config.Config, src vestsync.Source, logger *slog.Logger) *vestsync.Scheduler {
	if cfg.SyncInterval <= 0 {
		return nil
	}
	var dests []vestsync.Destination

	if cfg.SyncS3Bucket != "" {
		s3Dest, err := vestsync.NewS3Destination(context.Background(),
			cfg.SyncS3Bucket, cfg.SyncS3Key, cfg.SyncS3Region, cfg.SyncS3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}
	if cfg.SyncGitRepo != "" {
		dests = append(dests, vestsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
		logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}
	if len(dests) == 0 {
		return nil
	}

	scheduler := vestsync.NewScheduler(src, dests, cfg.SyncInterval, logger)
	scheduler.Start()
	logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
	return scheduler
}
