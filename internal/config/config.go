package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/vesting/internal/model"
)

// DefaultCustody is the escrow account used when VESTING_CUSTODY is unset.
const DefaultCustody = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"

type Config struct {
	DatabaseURL string        // VESTING_DATABASE_URL (optional, empty = in-memory store)
	Admin       model.Address // VESTING_ADMIN (required)
	Custody     model.Address // VESTING_CUSTODY (default DefaultCustody)
	GRPCAddr    string        // VESTING_GRPC_ADDR (default ":9090")
	HTTPAddr    string        // VESTING_HTTP_ADDR (default ":8080")
	NATSURL     string        // VESTING_NATS_URL (optional, empty = no bus)
	KeyringPath string        // VESTING_KEYRING (optional, empty = auth disabled)

	// FaucetLimit is the per-call faucet cap in whole tokens.
	FaucetLimit decimal.Decimal // VESTING_FAUCET_LIMIT (default 0 = disabled)

	// Sync settings
	SyncInterval   time.Duration // VESTING_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket   string        // VESTING_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // VESTING_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // VESTING_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // VESTING_SYNC_S3_KEY (default "vesting/snapshot.jsonl")
	SyncGitRepo    string        // VESTING_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // VESTING_SYNC_GIT_FILE (default "vesting.jsonl")
	SyncGitBranch  string        // VESTING_SYNC_GIT_BRANCH (default "main")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:    os.Getenv("VESTING_DATABASE_URL"),
		GRPCAddr:       envOrDefault("VESTING_GRPC_ADDR", ":9090"),
		HTTPAddr:       envOrDefault("VESTING_HTTP_ADDR", ":8080"),
		NATSURL:        os.Getenv("VESTING_NATS_URL"),
		KeyringPath:    os.Getenv("VESTING_KEYRING"),
		SyncS3Bucket:   os.Getenv("VESTING_SYNC_S3_BUCKET"),
		SyncS3Endpoint: os.Getenv("VESTING_SYNC_S3_ENDPOINT"),
		SyncS3Region:   envOrDefault("VESTING_SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:      envOrDefault("VESTING_SYNC_S3_KEY", "vesting/snapshot.jsonl"),
		SyncGitRepo:    os.Getenv("VESTING_SYNC_GIT_REPO"),
		SyncGitFile:    envOrDefault("VESTING_SYNC_GIT_FILE", "vesting.jsonl"),
		SyncGitBranch:  envOrDefault("VESTING_SYNC_GIT_BRANCH", "main"),
	}

	adminStr := os.Getenv("VESTING_ADMIN")
	if adminStr == "" {
		return nil, fmt.Errorf("VESTING_ADMIN is required")
	}
	admin, err := model.ParseAddress(adminStr)
	if err != nil {
		return nil, fmt.Errorf("VESTING_ADMIN: %w", err)
	}
	if admin.IsZero() {
		return nil, fmt.Errorf("VESTING_ADMIN: must not be the zero address")
	}
	c.Admin = admin

	custody, err := model.ParseAddress(envOrDefault("VESTING_CUSTODY", DefaultCustody))
	if err != nil {
		return nil, fmt.Errorf("VESTING_CUSTODY: %w", err)
	}
	if custody.IsZero() || custody == admin {
		return nil, fmt.Errorf("VESTING_CUSTODY: must be non-zero and differ from VESTING_ADMIN")
	}
	c.Custody = custody

	limit, err := model.ParseUnits(envOrDefault("VESTING_FAUCET_LIMIT", "0"), model.TokenDecimals)
	if err != nil {
		return nil, fmt.Errorf("VESTING_FAUCET_LIMIT: %w", err)
	}
	c.FaucetLimit = limit

	intervalStr := envOrDefault("VESTING_SYNC_INTERVAL", "3m")
	if intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("VESTING_SYNC_INTERVAL: %w", err)
		}
		c.SyncInterval = d
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
