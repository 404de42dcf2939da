package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies OMNIVAULT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known OMNIVAULT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Vault ──
	setInt64(&cfg.Vault.DepositCap, "OMNIVAULT_VAULT_DEPOSIT_CAP")
	setInt64(&cfg.Vault.ManagementFeeBps, "OMNIVAULT_VAULT_MANAGEMENT_FEE_BPS")
	setStr(&cfg.Vault.FeeSink, "OMNIVAULT_VAULT_FEE_SINK")
	setDuration(&cfg.Vault.FeeTimelock, "OMNIVAULT_VAULT_FEE_TIMELOCK")

	// ── Messenger ──
	setUint32(&cfg.Messenger.ChainID, "OMNIVAULT_MESSENGER_CHAIN_ID")
	setStr(&cfg.Messenger.LocalAddress, "OMNIVAULT_MESSENGER_LOCAL_ADDRESS")

	// ── Child ──
	setUint32(&cfg.Child.HomeChainID, "OMNIVAULT_CHILD_HOME_CHAIN_ID")
	setStr(&cfg.Child.HomeAddress, "OMNIVAULT_CHILD_HOME_ADDRESS")
	setInt64(&cfg.Child.SeedNAV, "OMNIVAULT_CHILD_SEED_NAV")
	setInt64(&cfg.Child.SeedShares, "OMNIVAULT_CHILD_SEED_SHARES")
	setDuration(&cfg.Child.SnapshotInterval, "OMNIVAULT_CHILD_SNAPSHOT_INTERVAL")
	setDuration(&cfg.Child.HarvestInterval, "OMNIVAULT_CHILD_HARVEST_INTERVAL")
	setDuration(&cfg.Child.ReportInterval, "OMNIVAULT_CHILD_REPORT_INTERVAL")
	setInt64(&cfg.Child.MinLiquidity, "OMNIVAULT_CHILD_MIN_LIQUIDITY")
	setInt64(&cfg.Child.MaxDepositAmount, "OMNIVAULT_CHILD_MAX_DEPOSIT_AMOUNT")
	setInt64(&cfg.Child.SlippageBps, "OMNIVAULT_CHILD_SLIPPAGE_BPS")

	// ── Rebalance ──
	setBool(&cfg.Rebalance.Enabled, "OMNIVAULT_REBALANCE_ENABLED")
	setInt64(&cfg.Rebalance.MinAPYDifferentialBps, "OMNIVAULT_REBALANCE_MIN_APY_DIFFERENTIAL_BPS")
	setInt64(&cfg.Rebalance.MinAmount, "OMNIVAULT_REBALANCE_MIN_AMOUNT")
	setInt64(&cfg.Rebalance.MaxAmount, "OMNIVAULT_REBALANCE_MAX_AMOUNT")
	setInt64(&cfg.Rebalance.MaxGasCostUSD, "OMNIVAULT_REBALANCE_MAX_GAS_COST_USD")
	setInt64(&cfg.Rebalance.FlatCostUSD, "OMNIVAULT_REBALANCE_FLAT_COST_USD")
	setDuration(&cfg.Rebalance.Cooldown, "OMNIVAULT_REBALANCE_COOLDOWN")
	setDuration(&cfg.Rebalance.Interval, "OMNIVAULT_REBALANCE_INTERVAL")
	setStr(&cfg.Rebalance.Operator, "OMNIVAULT_REBALANCE_OPERATOR")

	// ── Health ──
	setDuration(&cfg.Health.CheckInterval, "OMNIVAULT_HEALTH_CHECK_INTERVAL")
	setDuration(&cfg.Health.Staleness, "OMNIVAULT_HEALTH_STALENESS")

	// ── Relayer ──
	setStr(&cfg.Relayer.PrivateKey, "OMNIVAULT_RELAYER_PRIVATE_KEY")
	setStr(&cfg.Relayer.EncryptedKeyPath, "OMNIVAULT_RELAYER_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Relayer.KeyPassword, "OMNIVAULT_RELAYER_KEY_PASSWORD")
	setStringSlice(&cfg.Relayer.TrustedSigners, "OMNIVAULT_RELAYER_TRUSTED_SIGNERS")

	// ── Roles ──
	setStringSlice(&cfg.Roles.Admins, "OMNIVAULT_ROLES_ADMINS")
	setStringSlice(&cfg.Roles.Operators, "OMNIVAULT_ROLES_OPERATORS")
	setStringSlice(&cfg.Roles.Guardians, "OMNIVAULT_ROLES_GUARDIANS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "OMNIVAULT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "OMNIVAULT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "OMNIVAULT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "OMNIVAULT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "OMNIVAULT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "OMNIVAULT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "OMNIVAULT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "OMNIVAULT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "OMNIVAULT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "OMNIVAULT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "OMNIVAULT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "OMNIVAULT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "OMNIVAULT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "OMNIVAULT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "OMNIVAULT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "OMNIVAULT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "OMNIVAULT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "OMNIVAULT_S3_REGION")
	setStr(&cfg.S3.Bucket, "OMNIVAULT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "OMNIVAULT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "OMNIVAULT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "OMNIVAULT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "OMNIVAULT_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "OMNIVAULT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "OMNIVAULT_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "OMNIVAULT_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "OMNIVAULT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "OMNIVAULT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "OMNIVAULT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "OMNIVAULT_SERVER_API_KEY")
	setStr(&cfg.Server.AdminHMACKey, "OMNIVAULT_SERVER_ADMIN_HMAC_KEY")
	setStr(&cfg.Server.AdminHMACSecret, "OMNIVAULT_SERVER_ADMIN_HMAC_SECRET")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "OMNIVAULT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "OMNIVAULT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "OMNIVAULT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "OMNIVAULT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "OMNIVAULT_MODE")
	setStr(&cfg.LogLevel, "OMNIVAULT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint32(dst *uint32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
