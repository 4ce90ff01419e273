package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 配置
type Config struct {
	Service  ServiceConfig  `yaml:"service" json:"service"`
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka" json:"kafka"`
	Indexer  IndexerConfig  `yaml:"indexer" json:"indexer"`
	Chains   []ChainConfig  `yaml:"chains" json:"chains"`
	Log      LogConfig      `yaml:"log" json:"log"`
}

// ServiceConfig 服务配置
type ServiceConfig struct {
	Name     string `yaml:"name" json:"name"`
	HTTPPort int    `yaml:"http_port" json:"http_port"`
	Env      string `yaml:"env" json:"env"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string `yaml:"host" json:"host"`
	Port            int    `yaml:"port" json:"port"`
	Database        string `yaml:"database" json:"database"`
	User            string `yaml:"user" json:"user"`
	Password        string `yaml:"password" json:"-"`
	MaxConnections  int    `yaml:"max_connections" json:"max_connections"`
	MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime"` // 秒
}

// DSN 返回 GORM 连接字符串
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addresses []string `yaml:"addresses" json:"addresses"`
	Password  string   `yaml:"password" json:"-"`
	DB        int      `yaml:"db" json:"db"`
	PoolSize  int      `yaml:"pool_size" json:"pool_size"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Enabled  bool     `yaml:"enabled" json:"enabled"`
	Brokers  []string `yaml:"brokers" json:"brokers"`
	ClientID string   `yaml:"client_id" json:"client_id"`
}

// IndexerConfig 索引器运行参数
type IndexerConfig struct {
	PollInterval         int  `yaml:"poll_interval" json:"poll_interval"`                   // 秒
	RPCTimeout           int  `yaml:"rpc_timeout" json:"rpc_timeout"`                       // 秒
	MaxRetries           int  `yaml:"max_retries" json:"max_retries"`                       // 方法级重试次数
	RetryBaseDelay       int  `yaml:"retry_base_delay" json:"retry_base_delay"`             // 毫秒
	ProtocolConcurrency  int  `yaml:"protocol_concurrency" json:"protocol_concurrency"`     // 并发协议数
	BatchConcurrency     int  `yaml:"batch_concurrency" json:"batch_concurrency"`           // 协议内并发批次数
	LogBatchSize         int  `yaml:"log_batch_size" json:"log_batch_size"`                 // 每批日志条数
	LockTTL              int  `yaml:"lock_ttl" json:"lock_ttl"`                             // 秒
	StateRefreshInterval int  `yaml:"state_refresh_interval" json:"state_refresh_interval"` // 秒
	ValidateTopics       bool `yaml:"validate_topics" json:"validate_topics"`               // 启动时校验 creation_block
}

// ChainConfig 链配置 (加载后不可变，改动需要重启)
type ChainConfig struct {
	ChainID       int64            `yaml:"chain_id" json:"chain_id"`
	Name          string           `yaml:"name" json:"name"`
	RPCURL        string           `yaml:"rpc_url" json:"rpc_url"`
	BackupRPCURLs []string         `yaml:"backup_rpc_urls" json:"backup_rpc_urls"`
	BlockTime     int              `yaml:"block_time" json:"block_time"` // 秒
	Confirmations int64            `yaml:"confirmations" json:"confirmations"`
	MaxBlockRange int64            `yaml:"max_block_range" json:"max_block_range"`
	Protocols     []ProtocolConfig `yaml:"protocols" json:"protocols"`
}

// ProtocolConfig 协议配置
type ProtocolConfig struct {
	Tag            string  `yaml:"tag" json:"tag"`
	FactoryAddress string  `yaml:"factory_address" json:"factory_address"`
	CreationTopic  string  `yaml:"creation_topic" json:"creation_topic"`
	SwapTopic      string  `yaml:"swap_topic" json:"swap_topic"`
	CreationBlock  int64   `yaml:"creation_block" json:"creation_block"`
	FeeTiers       []int64 `yaml:"fee_tiers" json:"fee_tiers"`
	// Singleton 为 true 时 swap 事件由 factory/manager 单例合约发出，
	// 日志过滤按合约地址收敛; 否则按 topic0 全量过滤再与已知池匹配。
	Singleton bool `yaml:"singleton" json:"singleton"`
	Enabled   bool `yaml:"enabled" json:"enabled"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Load 加载配置
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// 环境变量替换
	content := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, err
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandEnvVars 展开环境变量 ${VAR:default}
func expandEnvVars(s string) string {
	result := s
	for {
		start := strings.Index(result, "${")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}")
		if end == -1 {
			break
		}
		end += start

		expr := result[start+2 : end]
		parts := strings.SplitN(expr, ":", 2)
		varName := parts[0]
		defaultVal := ""
		if len(parts) > 1 {
			defaultVal = parts[1]
		}

		value := os.Getenv(varName)
		if value == "" {
			value = defaultVal
		}

		result = result[:start] + value + result[end+1:]
	}
	return result
}

// setDefaults 设置默认值
func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "poolscan"
	}
	if cfg.Service.HTTPPort == 0 {
		cfg.Service.HTTPPort = 8080
	}
	if cfg.Service.Env == "" {
		cfg.Service.Env = "dev"
	}

	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.MaxConnections == 0 {
		cfg.Postgres.MaxConnections = 50
	}
	if cfg.Postgres.MaxIdleConns == 0 {
		cfg.Postgres.MaxIdleConns = 10
	}
	if cfg.Postgres.ConnMaxLifetime == 0 {
		cfg.Postgres.ConnMaxLifetime = 3600
	}

	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 50
	}

	if cfg.Indexer.PollInterval == 0 {
		cfg.Indexer.PollInterval = 5
	}
	if cfg.Indexer.RPCTimeout == 0 {
		cfg.Indexer.RPCTimeout = 15
	}
	if cfg.Indexer.MaxRetries == 0 {
		cfg.Indexer.MaxRetries = 3
	}
	if cfg.Indexer.RetryBaseDelay == 0 {
		cfg.Indexer.RetryBaseDelay = 200
	}
	if cfg.Indexer.ProtocolConcurrency == 0 {
		cfg.Indexer.ProtocolConcurrency = 4
	}
	if cfg.Indexer.BatchConcurrency == 0 {
		cfg.Indexer.BatchConcurrency = 4
	}
	if cfg.Indexer.LogBatchSize == 0 {
		cfg.Indexer.LogBatchSize = 500
	}
	if cfg.Indexer.LockTTL == 0 {
		cfg.Indexer.LockTTL = 60
	}
	if cfg.Indexer.StateRefreshInterval == 0 {
		cfg.Indexer.StateRefreshInterval = 300
	}

	for i := range cfg.Chains {
		if cfg.Chains[i].BlockTime == 0 {
			cfg.Chains[i].BlockTime = 12
		}
		if cfg.Chains[i].MaxBlockRange == 0 {
			cfg.Chains[i].MaxBlockRange = 2000
		}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// Validate 校验配置，启动时失败直接退出
func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("at least one chain is required")
	}

	seen := make(map[int64]bool)
	for _, chain := range c.Chains {
		if chain.ChainID == 0 {
			return fmt.Errorf("chain %q: chain_id is required", chain.Name)
		}
		if seen[chain.ChainID] {
			return fmt.Errorf("duplicate chain_id %d", chain.ChainID)
		}
		seen[chain.ChainID] = true

		if chain.RPCURL == "" {
			return fmt.Errorf("chain %d: rpc_url is required", chain.ChainID)
		}
		if chain.Confirmations < 0 {
			return fmt.Errorf("chain %d: confirmations must be >= 0", chain.ChainID)
		}

		tags := make(map[string]bool)
		for _, p := range chain.Protocols {
			if p.Tag == "" {
				return fmt.Errorf("chain %d: protocol tag is required", chain.ChainID)
			}
			if tags[p.Tag] {
				return fmt.Errorf("chain %d: duplicate protocol tag %q", chain.ChainID, p.Tag)
			}
			tags[p.Tag] = true

			if !p.Enabled {
				continue
			}
			if p.FactoryAddress == "" {
				return fmt.Errorf("chain %d protocol %s: factory_address is required", chain.ChainID, p.Tag)
			}
			if p.CreationTopic == "" || p.SwapTopic == "" {
				return fmt.Errorf("chain %d protocol %s: creation_topic and swap_topic are required", chain.ChainID, p.Tag)
			}
			if p.CreationBlock < 0 {
				return fmt.Errorf("chain %d protocol %s: creation_block must be >= 0", chain.ChainID, p.Tag)
			}
		}
	}

	if c.Postgres.Host == "" {
		return fmt.Errorf("postgres host is required")
	}
	if len(c.Redis.Addresses) == 0 {
		return fmt.Errorf("at least one redis address is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled but no brokers configured")
	}

	return nil
}

// Redacted 返回可对外输出的配置副本 (抹掉密码)
func (c *Config) Redacted() Config {
	out := *c
	out.Postgres.Password = "****"
	out.Redis.Password = "****"
	return out
}
