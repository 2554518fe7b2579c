package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvPath 指定配置文件路径的环境变量。
	EnvPath = "PQBTC_CONFIG"
	// DefaultPath 是未设置 EnvPath 时使用的配置文件路径。
	DefaultPath = "configs/pqclaim.yaml"
)

// Config 描述了证明服务在启动阶段需要加载的核心配置。
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	TaskQueue TaskQueueConfig `yaml:"task_queue"`
	Prover    ProverConfig    `yaml:"prover"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Alerting  AlertingConfig  `yaml:"alerting"`
}

// ServerConfig 控制 API 服务的监听地址与鉴权。
type ServerConfig struct {
	Address         string        `yaml:"address"`
	AuthToken       string        `yaml:"auth_token"`
	AuthTokenEnv    string        `yaml:"auth_token_env"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig 对应 pkg/logger 的配置。
type LogConfig struct {
	Level       string         `yaml:"level"`
	Format      string         `yaml:"format"`
	OutputPaths []string       `yaml:"output_paths"`
	Audit       AuditLogConfig `yaml:"audit"`
}

// AuditLogConfig 控制审计日志的输出与滚动。
type AuditLogConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// StorageConfig 描述任务存储后端。
type StorageConfig struct {
	TaskStore TaskStoreConfig `yaml:"task_store"`
}

// TaskStoreConfig 支持 memory 与 mysql 两种驱动。
type TaskStoreConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	DSNEnv          string        `yaml:"dsn_env"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// TaskQueueConfig 描述任务队列与工作协程。
type TaskQueueConfig struct {
	Driver     string         `yaml:"driver"`
	Buffer     int            `yaml:"buffer"`
	Workers    int            `yaml:"workers"`
	MaxRetries int            `yaml:"max_retries"`
	Redis      RedisConfig    `yaml:"redis"`
	RabbitMQ   RabbitMQConfig `yaml:"rabbitmq"`
}

// RedisConfig 描述 Redis 队列连接。
type RedisConfig struct {
	Address     string        `yaml:"address"`
	Password    string        `yaml:"password"`
	PasswordEnv string        `yaml:"password_env"`
	DB          int           `yaml:"db"`
	Queue       string        `yaml:"queue"`
	BlockWait   time.Duration `yaml:"block_wait"`
}

// RabbitMQConfig 描述 RabbitMQ 队列连接。
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	URLEnv     string `yaml:"url_env"`
	Queue      string `yaml:"queue"`
	Prefetch   int    `yaml:"prefetch"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// ProverConfig 配置证明签名密钥。为空时每次启动生成新密钥。
type ProverConfig struct {
	AttestationKey    string `yaml:"attestation_key"`
	AttestationKeyEnv string `yaml:"attestation_key_env"`
}

// MetricsConfig 控制 Prometheus 指标暴露。Address 为空时挂载在 API 服务上。
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// AlertingConfig 描述告警渠道。
type AlertingConfig struct {
	MinimumSeverity string        `yaml:"minimum_severity"`
	Audit           bool          `yaml:"audit"`
	Webhook         WebhookConfig `yaml:"webhook"`
}

// WebhookConfig 描述 Webhook 告警。
type WebhookConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
}

// Path 返回配置文件路径：优先 PQBTC_CONFIG，否则 DefaultPath。
func Path() string {
	if p := strings.TrimSpace(os.Getenv(EnvPath)); p != "" {
		return p
	}
	return DefaultPath
}

// Default 返回全部使用默认值的配置，相对路径基于当前目录。
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults(".")
	return cfg
}

// Load 负责解析指定路径的 YAML 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return Parse(content, filepath.Dir(path))
}

// LoadOrDefault 在默认路径不存在时回退到 Default；显式指定的路径必须存在。
func LoadOrDefault() (*Config, error) {
	path := Path()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && os.Getenv(EnvPath) == "" {
		return Default(), nil
	}
	return Load(path)
}

// Parse 解析 YAML 内容，baseDir 用于补全相对路径。
func Parse(content []byte, baseDir string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.applyDefaults(baseDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查驱动名称等枚举字段。
func (c *Config) Validate() error {
	switch c.Storage.TaskStore.Driver {
	case "memory":
	case "mysql":
		if c.TaskStoreDSN() == "" {
			return errors.New("storage.task_store.dsn 不能为空")
		}
	default:
		return fmt.Errorf("不支持的任务存储驱动: %s", c.Storage.TaskStore.Driver)
	}
	switch c.TaskQueue.Driver {
	case "memory":
	case "redis":
		if c.TaskQueue.Redis.Address == "" {
			return errors.New("task_queue.redis.address 不能为空")
		}
	case "rabbitmq":
		if c.RabbitMQURL() == "" {
			return errors.New("task_queue.rabbitmq.url 不能为空")
		}
	default:
		return fmt.Errorf("不支持的任务队列驱动: %s", c.TaskQueue.Driver)
	}
	switch c.Alerting.MinimumSeverity {
	case "info", "warning", "critical":
	default:
		return fmt.Errorf("不支持的告警级别: %s", c.Alerting.MinimumSeverity)
	}
	return nil
}

// AuthToken 返回 API 访问令牌。
func (c *Config) AuthToken() string {
	return resolveSecret(c.Server.AuthToken, c.Server.AuthTokenEnv)
}

// TaskStoreDSN 返回 MySQL DSN。
func (c *Config) TaskStoreDSN() string {
	return resolveSecret(c.Storage.TaskStore.DSN, c.Storage.TaskStore.DSNEnv)
}

// RedisPassword 返回 Redis 密码。
func (c *Config) RedisPassword() string {
	return resolveSecret(c.TaskQueue.Redis.Password, c.TaskQueue.Redis.PasswordEnv)
}

// RabbitMQURL 返回 RabbitMQ 连接串。
func (c *Config) RabbitMQURL() string {
	return resolveSecret(c.TaskQueue.RabbitMQ.URL, c.TaskQueue.RabbitMQ.URLEnv)
}

// AttestationKey 返回十六进制的证明签名密钥。
func (c *Config) AttestationKey() string {
	return resolveSecret(c.Prover.AttestationKey, c.Prover.AttestationKeyEnv)
}

// resolveSecret 优先使用内联值，否则读取环境变量。
func resolveSecret(inline, envName string) string {
	if v := strings.TrimSpace(inline); v != "" {
		return v
	}
	if envName == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(envName))
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	for i, out := range c.Log.OutputPaths {
		c.Log.OutputPaths[i] = resolvePath(baseDir, out)
	}
	if c.Log.Audit.Enabled && c.Log.Audit.Path == "" {
		c.Log.Audit.Path = "logs/audit.log"
	}
	if c.Log.Audit.Path != "" {
		c.Log.Audit.Path = resolvePath(baseDir, c.Log.Audit.Path)
	}

	c.Storage.TaskStore.Driver = strings.ToLower(strings.TrimSpace(c.Storage.TaskStore.Driver))
	if c.Storage.TaskStore.Driver == "" {
		c.Storage.TaskStore.Driver = "memory"
	}

	c.TaskQueue.Driver = strings.ToLower(strings.TrimSpace(c.TaskQueue.Driver))
	if c.TaskQueue.Driver == "" {
		c.TaskQueue.Driver = "memory"
	}
	if c.TaskQueue.Buffer <= 0 {
		c.TaskQueue.Buffer = 256
	}
	if c.TaskQueue.Workers <= 0 {
		c.TaskQueue.Workers = 4
	}
	if c.TaskQueue.MaxRetries <= 0 {
		c.TaskQueue.MaxRetries = 3
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	c.Alerting.MinimumSeverity = strings.ToLower(strings.TrimSpace(c.Alerting.MinimumSeverity))
	if c.Alerting.MinimumSeverity == "" {
		c.Alerting.MinimumSeverity = "warning"
	}
	if c.Alerting.Webhook.Timeout <= 0 {
		c.Alerting.Webhook.Timeout = 5 * time.Second
	}
}

// resolvePath 将相对路径转换为基于配置目录的路径，stdout/stderr 保持不变。
func resolvePath(baseDir, path string) string {
	switch strings.ToLower(path) {
	case "stdout", "stderr", "":
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
