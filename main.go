package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/statebridge/authnode/pkg/validator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	config, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := NewLoggerIPFS("authnode")

	db, err := ConnectToDB(config.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("connected to database", "driver", config.Database.Driver)

	metrics := NewMetrics()

	signingKey, err := loadSigningKey(config.JWTPrivateKey)
	if err != nil {
		return fmt.Errorf("failed to load JWT signing key: %w", err)
	}
	authManager, err := NewAuthManager(signingKey)
	if err != nil {
		return fmt.Errorf("failed to create auth manager: %w", err)
	}

	validators := validator.DefaultRegistry()
	accountService := NewAccountService(db, validators, metrics, logger)

	node := NewRPCNode(authManager, metrics, logger)
	router := NewRPCRouter(accountService, authManager, validators, metrics, logger)
	router.Register(node)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", node.HandleConnection)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    config.ListenAddress,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", config.ListenAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// loadSigningKey parses the configured hex key, or generates an ephemeral
// one when none is configured.
func loadSigningKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		return ethcrypto.GenerateKey()
	}
	return ethcrypto.HexToECDSA(hexKey)
}
