package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/pilacorp/go-degree-credential/config"
	"github.com/pilacorp/go-degree-credential/degree"
	"github.com/pilacorp/go-degree-credential/did/identity"
	"github.com/pilacorp/go-degree-credential/did/signer"
	"github.com/pilacorp/go-degree-credential/kvstore"
	"github.com/pilacorp/go-degree-credential/ledger"
	"github.com/pilacorp/go-degree-credential/logger"
	"github.com/pilacorp/go-degree-credential/storage"
	httptransport "github.com/pilacorp/go-degree-credential/transport/http"
	"github.com/pilacorp/go-degree-credential/wallet"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "degree-server: %v\n", err)
		os.Exit(1)
	}
}

// run wires the dependencies and serves until interrupted.
func run() error {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	identities := identity.NewProvider(store,
		identity.WithMethod(cfg.DIDMethod),
		identity.WithLogger(log.Named("identity")),
	)
	if cfg.SignerEndpoint != "" {
		remote, err := signer.NewRemoteSigner(cfg.SignerEndpoint, cfg.SignerAPIKey, cfg.SignerAddress)
		if err != nil {
			return fmt.Errorf("remote signer: %w", err)
		}
		if err := signer.CheckAddress(remote); err != nil {
			return fmt.Errorf("remote signer: %w", err)
		}
		if err := identities.WithSigner(identity.ScopeInstitution, remote); err != nil {
			return err
		}
		log.Info("institution signs through remote signer", zap.String("address", remote.GetAddress()))
	}

	l, err := openLedger(ctx, cfg, identities, log)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	content, err := openContentStore(cfg, log)
	if err != nil {
		return err
	}

	svc := degree.NewService(identities, l, content,
		degree.WithMetrics(degree.NewMetrics(reg)),
		degree.WithLogger(log.Named("degree")),
	)

	// Registration failure leaves issuing and verification usable.
	if err := svc.RegisterInstitution(ctx); err != nil {
		log.Warn("institution DID registration failed", zap.Error(err))
	}

	w, err := wallet.Open(ctx, store, wallet.WithLogger(log.Named("wallet")))
	if err != nil {
		return err
	}

	h := httptransport.New(svc, identities, w, reg, log.Named("http"))
	srv := httptransport.NewServer(cfg.Addr, h)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting degree-server", zap.String("addr", cfg.Addr), zap.String("ledger", cfg.Ledger), zap.String("keystore", cfg.Keystore))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("degree-server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Server) (kvstore.Store, func(), error) {
	switch cfg.Keystore {
	case config.KeystoreMemory:
		return kvstore.NewMemory(), func() {}, nil
	case config.KeystoreRedis:
		r, err := kvstore.DialRedis(ctx, cfg.RedisURL, kvstore.DefaultRedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	default:
		f, err := kvstore.NewFile(cfg.KeystorePath)
		if err != nil {
			return nil, nil, err
		}
		return f, func() {}, nil
	}
}

func openLedger(ctx context.Context, cfg config.Server, identities *identity.Provider, log *zap.Logger) (ledger.Ledger, error) {
	if cfg.Ledger != config.LedgerRegistry {
		return ledger.NewSimulated(
			ledger.WithDelay(cfg.LedgerDelay),
			ledger.WithSimulatedLogger(log.Named("ledger")),
		), nil
	}

	inst, err := identities.Get(ctx, identity.ScopeInstitution)
	if err != nil {
		return nil, err
	}
	return ledger.DialRegistry(ctx, cfg.RPC, cfg.RegistryAddress, cfg.ChainID, inst.Signer(),
		ledger.WithRegistryLogger(log.Named("ledger")),
	)
}

func openContentStore(cfg config.Server, log *zap.Logger) (storage.ContentStore, error) {
	if cfg.PinningJWT == "" {
		return storage.NewMockIPFS(
			storage.WithMockDelay(cfg.StorageDelay),
			storage.WithMockLogger(log.Named("storage")),
		), nil
	}
	return storage.NewPinningClient(cfg.PinningURL, cfg.PinningJWT, storage.WithPinningLogger(log.Named("storage")))
}
