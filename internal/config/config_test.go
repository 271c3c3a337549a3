package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contract = "0xb6dAe651468E9593E4581705a09c10A76AC1e0c8"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func validConfig() Config {
	cfg := Defaults()
	cfg.Chain.RPCURL = "http://localhost:8545"
	cfg.Chain.ContractAddress = contract
	return cfg
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	p := writeConfig(t, `
mode = "index"

[chain]
rpc_url = "http://node:8545"
contract_address = "`+contract+`"
start_block = 9000000
poll_interval = "3s"

[market]
platform_primary_fee = 15

[s3]
enabled = true
snapshot_cron = "0 * * * *"
`)

	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "index", cfg.Mode)
	assert.Equal(t, uint64(9000000), cfg.Chain.StartBlock)
	assert.Equal(t, 3*time.Second, cfg.Chain.PollInterval.Duration)
	assert.Equal(t, int64(15), cfg.Market.PlatformPrimaryFee)
	// untouched fields keep their defaults
	assert.Equal(t, int64(1), cfg.Market.PlatformSecondaryFee)
	assert.Equal(t, int64(4), cfg.Market.ArtistRoyaltyFee)
	assert.Equal(t, uint64(12), cfg.Chain.Confirmations)
	assert.Equal(t, 64, cfg.Chain.MaxArtistProbe)
	assert.True(t, cfg.S3.Enabled)
	assert.Equal(t, "0 * * * *", cfg.S3.SnapshotCron)
	assert.Equal(t, time.Hour, cfg.S3.SnapshotInterval.Duration)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	p := writeConfig(t, `
[chain]
rpc_url = "http://from-file:8545"
`)
	t.Setenv("ARTINDEX_CHAIN_RPC_URL", "http://from-env:8545")
	t.Setenv("ARTINDEX_CHAIN_START_BLOCK", "123")
	t.Setenv("ARTINDEX_CHAIN_POLL_INTERVAL", "250ms")
	t.Setenv("ARTINDEX_STORE_DRIVER", "memory")
	t.Setenv("ARTINDEX_MARKET_ARTIST_ROYALTY_FEE", "7")
	t.Setenv("ARTINDEX_NOTIFY_SEVERITIES", "error, warning,")
	t.Setenv("ARTINDEX_REDIS_ENABLED", "false")
	t.Setenv("ARTINDEX_CHAIN_BATCH_SIZE", "not-a-number")

	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:8545", cfg.Chain.RPCURL)
	assert.Equal(t, uint64(123), cfg.Chain.StartBlock)
	assert.Equal(t, 250*time.Millisecond, cfg.Chain.PollInterval.Duration)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, int64(7), cfg.Market.ArtistRoyaltyFee)
	assert.Equal(t, []string{"error", "warning"}, cfg.Notify.Severities)
	assert.False(t, cfg.Redis.Enabled)
	// unparsable values are ignored
	assert.Equal(t, uint64(1000), cfg.Chain.BatchSize)
}

func TestLoadRejectsBadFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	p := writeConfig(t, `[chain]
poll_interval = "soon"`)
	_, err = Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: decode")
}

func TestValidateDefaultsNeedChain(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain: rpc_url is required")
	assert.Contains(t, err.Error(), "chain: contract_address")

	cfg = validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateServeModeSkipsChain(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "serve"
	require.NoError(t, cfg.Validate())

	cfg.Store.Driver = "memory"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "driver memory")
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "trade"
	cfg.LogLevel = "verbose"
	cfg.Chain.MaxArtistProbe = 0
	cfg.Chain.BatchSize = 0
	cfg.Store.Driver = "sqlite"
	cfg.Redis.Addr = ""
	cfg.Notify.TelegramToken = "token"
	cfg.Notify.Severities = []string{"fatal"}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		`unknown mode "trade"`,
		`unknown log_level "verbose"`,
		"max_artist_probe must be >= 1",
		"batch_size must be >= 1",
		`unknown driver "sqlite"`,
		"redis: addr must not be empty",
		"telegram_chat_id must be set together",
		`unknown severity "fatal"`,
	} {
		assert.Contains(t, msg, want)
	}
}

func TestValidateDoesNotBoundFees(t *testing.T) {
	cfg := validConfig()
	cfg.Market.PlatformPrimaryFee = 150
	cfg.Market.ArtistRoyaltyFee = -3
	require.NoError(t, cfg.Validate())
}

func TestModes(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "full"
	assert.True(t, cfg.Indexes())
	assert.True(t, cfg.Serves())

	cfg.Server.Enabled = false
	assert.False(t, cfg.Serves())

	cfg.Mode = "serve"
	assert.False(t, cfg.Indexes())
	assert.True(t, cfg.Serves())

	cfg.Mode = "INDEX"
	assert.True(t, cfg.Indexes())
	assert.False(t, cfg.Serves())
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.DSN = "postgres://u:p@db/artindexer"
	cfg.Postgres.Password = "p"
	cfg.S3.SecretKey = "secret"
	cfg.Server.APIKey = "key"
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Postgres.DSN)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.S3.SecretKey)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "***", out.Notify.DiscordWebhookURL)
	assert.Equal(t, "***", out.Chain.RPCURL)
	assert.Empty(t, out.Redis.Password)
	assert.Equal(t, contract, out.Chain.ContractAddress)

	out.Server.CORSOrigins[0] = "changed"
	assert.Equal(t, "http://localhost:3000", cfg.Server.CORSOrigins[0])
	assert.Equal(t, "postgres://u:p@db/artindexer", cfg.Postgres.DSN)
}
