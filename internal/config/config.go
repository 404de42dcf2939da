// Package config defines the top-level configuration for a vault node and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by OMNIVAULT_* environment variables.
type Config struct {
	Vault     VaultConfig     `toml:"vault"`
	Messenger MessengerConfig `toml:"messenger"`
	Chains    []ChainConfig   `toml:"chains"`
	Child     ChildConfig     `toml:"child"`
	Rebalance RebalanceConfig `toml:"rebalance"`
	Health    HealthConfig    `toml:"health"`
	Relayer   RelayerConfig   `toml:"relayer"`
	Roles     RolesConfig     `toml:"roles"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Archive   ArchiveConfig   `toml:"archive"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// VaultConfig holds the home ledger's governance parameters. Amounts are
// fixed-point at scale 1e6.
type VaultConfig struct {
	DepositCap       int64    `toml:"deposit_cap"`
	ManagementFeeBps int64    `toml:"management_fee_bps"`
	FeeSink          string   `toml:"fee_sink"`
	FeeTimelock      duration `toml:"fee_timelock"`
}

// MessengerConfig identifies this node on the cross-chain messaging layer.
type MessengerConfig struct {
	ChainID      uint32 `toml:"chain_id"`
	LocalAddress string `toml:"local_address"`
}

// ChainConfig describes one trusted remote endpoint. Endpoint is the base URL
// of the peer node's HTTP API; when empty, outbound dispatch to that chain is
// not possible from this node.
type ChainConfig struct {
	ChainID      uint32 `toml:"chain_id"`
	VaultAddress string `toml:"vault_address"`
	Endpoint     string `toml:"endpoint"`
}

// ChildConfig holds the child ledger parameters for child mode.
type ChildConfig struct {
	HomeChainID      uint32   `toml:"home_chain_id"`
	HomeAddress      string   `toml:"home_address"`
	SeedNAV          int64    `toml:"seed_nav"`
	SeedShares       int64    `toml:"seed_shares"`
	SnapshotInterval duration `toml:"snapshot_interval"`
	HarvestInterval  duration `toml:"harvest_interval"`
	ReportInterval   duration `toml:"report_interval"`
	MinLiquidity     int64    `toml:"min_liquidity"`
	MaxDepositAmount int64    `toml:"max_deposit_amount"`
	SlippageBps      int64    `toml:"slippage_bps"`
}

// RebalanceConfig holds the rebalancing engine's gating parameters.
type RebalanceConfig struct {
	Enabled               bool     `toml:"enabled"`
	MinAPYDifferentialBps int64    `toml:"min_apy_differential_bps"`
	MinAmount             int64    `toml:"min_amount"`
	MaxAmount             int64    `toml:"max_amount"`
	MaxGasCostUSD         int64    `toml:"max_gas_cost_usd"`
	FlatCostUSD           int64    `toml:"flat_cost_usd"`
	Cooldown              duration `toml:"cooldown"`
	Interval              duration `toml:"interval"`
	Operator              string   `toml:"operator"`
}

// HealthConfig holds the health coordinator's parameters.
type HealthConfig struct {
	CheckInterval duration `toml:"check_interval"`
	Staleness     duration `toml:"staleness"`
}

// RelayerConfig holds the relayer signing key and the set of peer relayer
// addresses whose message attestations this node accepts. The key is either a
// raw hex key or an encrypted key file plus password.
type RelayerConfig struct {
	PrivateKey       string   `toml:"private_key"`
	EncryptedKeyPath string   `toml:"encrypted_key_path"`
	KeyPassword      string   `toml:"key_password"`
	TrustedSigners   []string `toml:"trusted_signers"`
}

// RolesConfig grants capability roles to caller identities.
type RolesConfig struct {
	Admins    []string `toml:"admins"`
	Operators []string `toml:"operators"`
	Guardians []string `toml:"guardians"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig holds long-term archival parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// ServerConfig holds HTTP server parameters. The admin HMAC pair, when set,
// requires signed requests on the /api/admin routes in addition to the API
// key.
type ServerConfig struct {
	Enabled         bool     `toml:"enabled"`
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	AdminHMACKey    string   `toml:"admin_hmac_key"`
	AdminHMACSecret string   `toml:"admin_hmac_secret"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "48h").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Vault: VaultConfig{
			DepositCap:       10_000_000_000_000, // 10M at scale 1e6
			ManagementFeeBps: 50,
			FeeTimelock:      duration{48 * time.Hour},
		},
		Child: ChildConfig{
			SeedNAV:          1_000_000,
			SeedShares:       1_000_000,
			SnapshotInterval: duration{24 * time.Hour},
			HarvestInterval:  duration{time.Hour},
			ReportInterval:   duration{6 * time.Hour},
			MinLiquidity:     0,
			MaxDepositAmount: 1_000_000_000_000, // 1M at scale 1e6
			SlippageBps:      50,
		},
		Rebalance: RebalanceConfig{
			Enabled:               false,
			MinAPYDifferentialBps: 100,
			MinAmount:             100_000_000,       // 100 at scale 1e6
			MaxAmount:             1_000_000_000_000, // 1M at scale 1e6
			MaxGasCostUSD:         50_000_000,        // $50 at scale 1e6
			FlatCostUSD:           10_000_000,        // $10 at scale 1e6
			Cooldown:              duration{6 * time.Hour},
			Interval:              duration{15 * time.Minute},
		},
		Health: HealthConfig{
			CheckInterval: duration{time.Minute},
			Staleness:     duration{24 * time.Hour},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "omnivault",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "omnivault-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"emergency_pause", "emergency_withdraw_all", "health_degraded", "failed_operation"},
		},
		Mode:     "home",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"home":    true,
	"child":   true,
	"monitor": true,
	"sim":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: home, child, monitor, sim)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Sim mode wires everything in-process and needs no external identities.
	if mode == "sim" {
		return combine(errs)
	}

	// Messenger identity.
	if c.Messenger.ChainID == 0 {
		errs = append(errs, "messenger: chain_id must be set")
	}
	if !common.IsHexAddress(c.Messenger.LocalAddress) {
		errs = append(errs, fmt.Sprintf("messenger: local_address %q is not a valid address", c.Messenger.LocalAddress))
	}

	// Trusted remotes.
	seen := make(map[uint32]bool, len(c.Chains))
	for i, ch := range c.Chains {
		if ch.ChainID == 0 {
			errs = append(errs, fmt.Sprintf("chains[%d]: chain_id must be set", i))
		}
		if seen[ch.ChainID] {
			errs = append(errs, fmt.Sprintf("chains[%d]: duplicate chain_id %d", i, ch.ChainID))
		}
		seen[ch.ChainID] = true
		if !common.IsHexAddress(ch.VaultAddress) {
			errs = append(errs, fmt.Sprintf("chains[%d]: vault_address %q is not a valid address", i, ch.VaultAddress))
		}
	}

	switch mode {
	case "home":
		if c.Vault.ManagementFeeBps < 0 || c.Vault.ManagementFeeBps > 10_000 {
			errs = append(errs, fmt.Sprintf("vault: management_fee_bps must be 0-10000, got %d", c.Vault.ManagementFeeBps))
		}
		if c.Vault.DepositCap <= 0 {
			errs = append(errs, "vault: deposit_cap must be > 0")
		}
		if c.Vault.FeeTimelock.Duration <= 0 {
			errs = append(errs, "vault: fee_timelock must be > 0")
		}
		if c.Rebalance.Enabled {
			if c.Rebalance.MinAPYDifferentialBps <= 0 {
				errs = append(errs, "rebalance: min_apy_differential_bps must be > 0 when enabled")
			}
			if c.Rebalance.MaxAmount < c.Rebalance.MinAmount {
				errs = append(errs, "rebalance: max_amount must not be below min_amount")
			}
			if c.Rebalance.Interval.Duration <= 0 {
				errs = append(errs, "rebalance: interval must be > 0 when enabled")
			}
			if c.Rebalance.Operator == "" {
				errs = append(errs, "rebalance: operator identity is required when enabled")
			}
		}
	case "child":
		if c.Child.HomeChainID == 0 {
			errs = append(errs, "child: home_chain_id must be set")
		}
		if !common.IsHexAddress(c.Child.HomeAddress) {
			errs = append(errs, fmt.Sprintf("child: home_address %q is not a valid address", c.Child.HomeAddress))
		}
		if c.Child.SeedNAV <= 0 || c.Child.SeedShares <= 0 {
			errs = append(errs, "child: seed_nav and seed_shares must be > 0")
		}
		if c.Child.SlippageBps < 0 || c.Child.SlippageBps > 500 {
			errs = append(errs, fmt.Sprintf("child: slippage_bps must be 0-500, got %d", c.Child.SlippageBps))
		}
	}

	// Relayer key: both halves of the encrypted path must be present.
	if c.Relayer.EncryptedKeyPath != "" && c.Relayer.KeyPassword == "" {
		errs = append(errs, "relayer: key_password is required when encrypted_key_path is set")
	}
	for i, addr := range c.Relayer.TrustedSigners {
		if !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Sprintf("relayer: trusted_signers[%d] %q is not a valid address", i, addr))
		}
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 settings only matter when archival is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if (c.Server.AdminHMACKey == "") != (c.Server.AdminHMACSecret == "") {
			errs = append(errs, "server: admin_hmac_key and admin_hmac_secret must be set together")
		}
	}

	return combine(errs)
}

func combine(errs []string) error {
	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
