package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dwarvesf/faucet-swap-backend/internal/types/environments"
)

type AppConfig struct {
	Environment    environments.Environment
	ApiServer      ApiServerConfig
	Postgres       DBConnection
	Chain          ChainConfig
	Faucet         FaucetConfig
	Listener       ListenerConfig
	Reconciler     ReconcilerConfig
	Vault          VaultConfig
	UptimeWebhooks UptimeWebhooksConfig
}

type ApiServerConfig struct {
	Port           string
	AllowedOrigins string
}

type DBConnection struct {
	Host string
	Port string
	User string
	Name string
	Pass string

	SSLMode string
}

type ChainConfig struct {
	RPCEndpoint            string
	ChainID                int64
	DepositContractAddress string
	// SignerPrivateKey is hex without 0x. Ignored when Vault is configured.
	SignerPrivateKey string
}

// FaucetConfig maps a target token symbol to its dispenser contract.
type FaucetConfig struct {
	Addresses       map[string]string
	WithdrawTimeout time.Duration
}

type ListenerConfig struct {
	PollInterval    time.Duration
	RetryDelay      time.Duration
	MaxRetryDelay   time.Duration
	Confirmations   uint64
	MaxBlockRange   uint64
	StartBlock      uint64
	ChannelCapacity int
}

type ReconcilerConfig struct {
	// PendingTTL of zero keeps pending intents forever.
	PendingTTL          time.Duration
	MaintenanceSchedule string
}

type VaultConfig struct {
	Addr          string
	KVSecretPath  string
	Role          string
	SignerKeyName string
}

type UptimeWebhooksConfig struct {
	Reconciler  string
	Maintenance string
}

func New() *AppConfig {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// does not override variables already present in the environment
	godotenv.Load(".env." + env)

	return &AppConfig{
		Environment: environments.Parse(env),
		ApiServer: ApiServerConfig{
			Port:           envOrDefault("PORT", "8080"),
			AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		},
		Postgres: DBConnection{
			Host:    os.Getenv("DB_HOST"),
			Port:    os.Getenv("DB_PORT"),
			User:    os.Getenv("DB_USER"),
			Name:    os.Getenv("DB_NAME"),
			Pass:    os.Getenv("DB_PASS"),
			SSLMode: os.Getenv("DB_SSL_MODE"),
		},
		Chain: ChainConfig{
			RPCEndpoint:            os.Getenv("CHAIN_RPC_ENDPOINT"),
			ChainID:                int64(envVarAtoiOrDefault("CHAIN_ID", 1)),
			DepositContractAddress: os.Getenv("CHAIN_DEPOSIT_CONTRACT_ADDR"),
			SignerPrivateKey:       os.Getenv("CHAIN_SIGNER_PRIVATE_KEY"),
		},
		Faucet: FaucetConfig{
			Addresses: map[string]string{
				"USDT": os.Getenv("FAUCET_USDT_ADDR"),
				"WETH": os.Getenv("FAUCET_WETH_ADDR"),
			},
			WithdrawTimeout: envVarDuration("FAUCET_WITHDRAW_TIMEOUT", 60*time.Second),
		},
		Listener: ListenerConfig{
			PollInterval:    envVarDuration("LISTENER_POLL_INTERVAL", 5*time.Second),
			RetryDelay:      envVarDuration("LISTENER_RETRY_DELAY", 2*time.Second),
			MaxRetryDelay:   envVarDuration("LISTENER_MAX_RETRY_DELAY", 2*time.Minute),
			Confirmations:   uint64(envVarAtoiOrDefault("LISTENER_CONFIRMATIONS", 0)),
			MaxBlockRange:   uint64(envVarAtoiOrDefault("LISTENER_MAX_BLOCK_RANGE", 10000)),
			StartBlock:      uint64(envVarAtoiOrDefault("LISTENER_START_BLOCK", 0)),
			ChannelCapacity: envVarAtoiOrDefault("LISTENER_CHANNEL_CAPACITY", 16),
		},
		Reconciler: ReconcilerConfig{
			PendingTTL:          envVarDuration("PENDING_TTL", 0),
			MaintenanceSchedule: envOrDefault("MAINTENANCE_SCHEDULE", "@every 5m"),
		},
		Vault: VaultConfig{
			Addr:          os.Getenv("VAULT_ADDR"),
			KVSecretPath:  os.Getenv("VAULT_KV_SECRET_PATH"),
			Role:          os.Getenv("VAULT_ROLE"),
			SignerKeyName: envOrDefault("VAULT_SIGNER_KEY_NAME", "signer_private_key"),
		},
		UptimeWebhooks: UptimeWebhooksConfig{
			Reconciler:  os.Getenv("UPTIME_WEBHOOK_RECONCILER"),
			Maintenance: os.Getenv("UPTIME_WEBHOOK_MAINTENANCE"),
		},
	}
}

func envOrDefault(envName, fallback string) string {
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return fallback
}

// envVarAtoiOrDefault panics on malformed values so misconfiguration fails at boot.
func envVarAtoiOrDefault(envName string, fallback int) int {
	valueStr := os.Getenv(envName)
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		panic(err)
	}

	return value
}

func envVarDuration(envName string, fallback time.Duration) time.Duration {
	valueStr := os.Getenv(envName)
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		panic(err)
	}
	return value
}
