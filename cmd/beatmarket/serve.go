package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sigweihq/beatmarket/pkg/api"
	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/sigweihq/beatmarket/pkg/chains/evm"
	"github.com/sigweihq/beatmarket/pkg/chains/svm"
	"github.com/sigweihq/beatmarket/pkg/config"
	"github.com/sigweihq/beatmarket/pkg/metrics"
	"github.com/sigweihq/beatmarket/pkg/pinning"
	"github.com/sigweihq/beatmarket/pkg/processor"
	"github.com/sigweihq/beatmarket/pkg/store"
	"github.com/sigweihq/beatmarket/pkg/store/memory"
	"github.com/sigweihq/beatmarket/pkg/store/postgres"
	redisstore "github.com/sigweihq/beatmarket/pkg/store/redis"
	"github.com/sigweihq/beatmarket/pkg/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := cfg.Registry()
	if err := attachChains(ctx, logger, cfg, registry); err != nil {
		return err
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	recorder := metrics.NewPrometheusRecorder(prometheus.DefaultRegisterer)

	var pinner pinning.Pinner
	if cfg.Pinata.JWT != "" {
		client, err := pinning.NewClient(cfg.Pinata.URL, cfg.Pinata.JWT)
		if err != nil {
			return fmt.Errorf("failed to configure pinning: %w", err)
		}
		pinner = client
	} else {
		logger.Warn("pinata.jwt not set, uploads are disabled")
	}

	reconciler := processor.NewReconciler(s, logger, recorder)
	var purchaseOpts []processor.PurchaseOption
	if cfg.Marketplace.ContractAddress != "" {
		purchaseOpts = append(purchaseOpts, processor.WithContract(cfg.Marketplace.ContractAddress))
	}
	server := api.NewServer(api.Config{
		Store:        s,
		Processor:    processor.NewPurchaseProcessor(registry, reconciler, logger, recorder, purchaseOpts...),
		Pinner:       pinner,
		Registry:     registry,
		DefaultChain: chains.ChainID(cfg.Marketplace.DefaultChain),
		Logger:       logger,
		Metrics:      recorder,
		Gatherer:     prometheus.DefaultGatherer,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("beatmarket listening", "addr", httpServer.Addr, "store", cfg.Store.Driver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// attachChains attaches receipt adapters for every EVM and Solana network,
// optionally merging chainlist endpoints and ordering them by health.
func attachChains(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig, registry *chains.Registry) error {
	endpoints := make(map[chains.ChainID][]string)
	if cfg.Chains.Discover {
		endpoints = evm.DiscoverEndpoints(ctx, logger, registry, utils.CreateHTTPClientWithTimeouts(), cfg.Chains.ChainlistURL)
	} else {
		for _, desc := range registry.NetworksByFamily(chains.FamilyEVM) {
			endpoints[desc.ChainID] = desc.RPCURLs
		}
	}

	if cfg.Chains.HealthCheck {
		for id, eps := range endpoints {
			endpoints[id] = evm.PrioritizeHealthy(ctx, evm.NewRPCClient(id, eps))
		}
	}

	if err := evm.InitEVMChainsWithEndpoints(logger, registry, endpoints); err != nil {
		return fmt.Errorf("failed to init EVM chains: %w", err)
	}
	if err := svm.InitSVMChains(logger, registry); err != nil {
		return fmt.Errorf("failed to init Solana chains: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.AppConfig) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		s, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case config.StoreRedis:
		return redisstore.Open(ctx, cfg.Redis)
	}
	return memory.New(), nil
}
