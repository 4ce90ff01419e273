package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
service:
  name: poolscan-test
  http_port: 9090

postgres:
  host: ${TEST_PG_HOST:db.internal}
  user: scanner
  password: ${TEST_PG_PASSWORD:changeme}
  database: poolscan

redis:
  addresses:
    - localhost:6379

chains:
  - chain_id: 1
    name: ethereum
    rpc_url: https://eth.example.com
    confirmations: 12
    protocols:
      - tag: uniswap_v2
        factory_address: "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"
        creation_topic: "0x0d3648bd0f6ba80134a33ba9275ac585d9d315f0ad8355cddefde31afa28d0e9"
        swap_topic: "0xd78ad95fa46c994b6551d0da85fc275fe613ce37657fb8d5e3d130840159d822"
        creation_block: 10000835
        enabled: true
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestLoad 测试加载与默认值
func TestLoad(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "poolscan-test", cfg.Service.Name)
	assert.Equal(t, 9090, cfg.Service.HTTPPort)

	// 未配置的字段取默认值
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, 5, cfg.Indexer.PollInterval)
	assert.Equal(t, 500, cfg.Indexer.LogBatchSize)
	assert.Equal(t, 60, cfg.Indexer.LockTTL)
	assert.Equal(t, int64(2000), cfg.Chains[0].MaxBlockRange)
	assert.Equal(t, 12, cfg.Chains[0].BlockTime)
	assert.Equal(t, "info", cfg.Log.Level)

	require.Len(t, cfg.Chains, 1)
	require.Len(t, cfg.Chains[0].Protocols, 1)
	assert.Equal(t, "uniswap_v2", cfg.Chains[0].Protocols[0].Tag)
	assert.True(t, cfg.Chains[0].Protocols[0].Enabled)
}

// TestLoad_EnvExpansion 测试 ${VAR:default} 展开
func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_PG_HOST", "pg.override")

	cfg, err := Load(writeTempConfig(t, testYAML))
	require.NoError(t, err)

	// 已设置的环境变量覆盖默认值
	assert.Equal(t, "pg.override", cfg.Postgres.Host)
	// 未设置的取冒号后的默认值
	assert.Equal(t, "changeme", cfg.Postgres.Password)
}

// TestLoad_FileNotFound 测试文件缺失
func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

// TestValidate 测试配置校验
func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(writeTempConfig(t, testYAML))
		require.NoError(t, err)
		return cfg
	}

	t.Run("合法配置", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("无链", func(t *testing.T) {
		cfg := base()
		cfg.Chains = nil
		assert.ErrorContains(t, cfg.Validate(), "at least one chain")
	})

	t.Run("重复 chain_id", func(t *testing.T) {
		cfg := base()
		cfg.Chains = append(cfg.Chains, cfg.Chains[0])
		assert.ErrorContains(t, cfg.Validate(), "duplicate chain_id")
	})

	t.Run("缺 rpc_url", func(t *testing.T) {
		cfg := base()
		cfg.Chains[0].RPCURL = ""
		assert.ErrorContains(t, cfg.Validate(), "rpc_url")
	})

	t.Run("重复协议 tag", func(t *testing.T) {
		cfg := base()
		cfg.Chains[0].Protocols = append(cfg.Chains[0].Protocols, cfg.Chains[0].Protocols[0])
		assert.ErrorContains(t, cfg.Validate(), "duplicate protocol tag")
	})

	t.Run("启用协议缺 factory", func(t *testing.T) {
		cfg := base()
		cfg.Chains[0].Protocols[0].FactoryAddress = ""
		assert.ErrorContains(t, cfg.Validate(), "factory_address")
	})

	t.Run("禁用协议不校验字段", func(t *testing.T) {
		cfg := base()
		cfg.Chains[0].Protocols[0].FactoryAddress = ""
		cfg.Chains[0].Protocols[0].Enabled = false
		assert.NoError(t, cfg.Validate())
	})

	t.Run("kafka 启用但无 broker", func(t *testing.T) {
		cfg := base()
		cfg.Kafka.Enabled = true
		assert.ErrorContains(t, cfg.Validate(), "kafka")
	})
}

// TestRedacted 测试敏感字段脱敏
func TestRedacted(t *testing.T) {
	cfg := &Config{}
	cfg.Postgres.Password = "supersecret"
	cfg.Redis.Password = "alsosecret"

	out := cfg.Redacted()
	assert.Equal(t, "****", out.Postgres.Password)
	assert.Equal(t, "****", out.Redis.Password)

	// 原对象不受影响
	assert.Equal(t, "supersecret", cfg.Postgres.Password)
}

// TestDSN 测试连接串拼接
func TestDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "scanner",
		Password: "pw",
		Database: "poolscan",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "host=db.internal")
	assert.Contains(t, dsn, "port=5433")
	assert.Contains(t, dsn, "user=scanner")
	assert.Contains(t, dsn, "dbname=poolscan")
}
