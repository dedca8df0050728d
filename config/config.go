package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyerfyer/doc-retrieval-engine/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Document DocumentConfig `mapstructure:"document"`
	Search   SearchConfig   `mapstructure:"search"`
	Index    IndexConfig    `mapstructure:"index"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type" validate:"oneof=local minio"` // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`                              // 本地存储路径
	Bucket    string `mapstructure:"bucket"`                            // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"`                          // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type" validate:"oneof=sqlite"` // 数据库类型
	DSN  string `mapstructure:"dsn" validate:"required"`      // 数据源名称
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`                             // 是否启用缓存
	Type     string `mapstructure:"type" validate:"oneof=memory redis"` // 缓存类型
	Address  string `mapstructure:"address"`                            // Redis地址
	Password string `mapstructure:"password"`                           // Redis密码
	DB       int    `mapstructure:"db"`                                 // Redis数据库
	TTL      int    `mapstructure:"ttl" validate:"min=0"`               // 缓存TTL（秒）
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool   `mapstructure:"enable"`                     // 是否启用异步任务队列
	RedisAddr     string `mapstructure:"redis_addr"`                 // Redis地址
	RedisPassword string `mapstructure:"redis_password"`             // Redis密码
	RedisDB       int    `mapstructure:"redis_db"`                   // Redis数据库编号
	Concurrency   int    `mapstructure:"concurrency" validate:"min=1"`
	RetryLimit    int    `mapstructure:"retry_limit" validate:"min=0"`
	RetryDelay    int    `mapstructure:"retry_delay" validate:"min=0"` // 重试延迟(秒)
}

// DocumentConfig 文档分块配置
type DocumentConfig struct {
	ChunkSize    int `mapstructure:"chunk_size" validate:"min=1"`     // 分块目标大小（字符）
	ChunkOverlap int `mapstructure:"chunk_overlap" validate:"min=0"`  // 相邻分块重叠大小
	MinChunkSize int `mapstructure:"min_chunk_size" validate:"min=0"` // 尾块并入阈值
}

// SearchConfig 检索配置
type SearchConfig struct {
	MaxResults int     `mapstructure:"max_results" validate:"min=1"` // 默认返回结果数
	Threshold  float64 `mapstructure:"threshold"`                    // 最低相似度分数
	Overfetch  int     `mapstructure:"overfetch" validate:"min=1"`   // 重排前候选超采倍数
}

// IndexConfig 索引配置
type IndexConfig struct {
	SnapshotPath    string `mapstructure:"snapshot_path"`    // 快照文件路径，为空时不持久化
	RemoveStopwords bool   `mapstructure:"remove_stopwords"` // 构建和查询时是否过滤停用词
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File       string `mapstructure:"file"`        // 日志文件路径，为空时输出到stdout
	MaxSize    int    `mapstructure:"max_size"`    // 单个日志文件大小上限（MB）
	MaxBackups int    `mapstructure:"max_backups"` // 保留的历史日志文件数
	MaxAge     int    `mapstructure:"max_age"`     // 日志保留天数
}

// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	var config Config

	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			log.Printf("Warning: Config file not found at %s, using defaults", configPath)
			setDefaults(v)
			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err == nil {
				if err := v.WriteConfigAs(configPath); err != nil {
					log.Printf("Warning: Could not write default config to %s: %v", configPath, err)
				}
			}
		} else {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
	} else {
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	setDefaults(v)

	// 支持环境变量覆盖
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	expandSecrets(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate 校验配置的合法性
// 字段级规则由validator标签声明，跨字段约束在此显式检查
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidConfig, err)
	}

	if c.Document.ChunkOverlap >= c.Document.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			models.ErrInvalidConfig, c.Document.ChunkOverlap, c.Document.ChunkSize)
	}
	if c.Search.Threshold < 0 || c.Search.Threshold > 1 {
		return fmt.Errorf("%w: search threshold must be within [0, 1], got %v",
			models.ErrInvalidConfig, c.Search.Threshold)
	}
	if c.Storage.Type == "minio" && c.Storage.Endpoint == "" {
		return fmt.Errorf("%w: minio storage requires an endpoint", models.ErrInvalidConfig)
	}
	if c.Cache.Type == "redis" && c.Cache.Address == "" {
		return fmt.Errorf("%w: redis cache requires an address", models.ErrInvalidConfig)
	}
	if c.Queue.Enable && c.Queue.RedisAddr == "" {
		return fmt.Errorf("%w: task queue requires a redis address", models.ErrInvalidConfig)
	}

	return nil
}

// expandSecrets 解析形如 ${ENV_VAR} 的敏感配置项
func expandSecrets(cfg *Config) {
	cfg.Storage.AccessKey = expandEnv(cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = expandEnv(cfg.Storage.SecretKey)
	cfg.Cache.Password = expandEnv(cfg.Cache.Password)
	cfg.Queue.RedisPassword = expandEnv(cfg.Queue.RedisPassword)
}

func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		if envVal := os.Getenv(value[2 : len(value)-1]); envVal != "" {
			return envVal
		}
	}
	return value
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./uploads")
	v.SetDefault("storage.bucket", "documents")
	v.SetDefault("storage.use_ssl", false)

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/retrieval.db")

	// 缓存默认配置
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", 3600)

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.retry_limit", 3)
	v.SetDefault("queue.retry_delay", 60)

	// 文档分块默认配置
	v.SetDefault("document.chunk_size", 2000)
	v.SetDefault("document.chunk_overlap", 300)
	v.SetDefault("document.min_chunk_size", 100)

	// 检索默认配置
	v.SetDefault("search.max_results", 8)
	v.SetDefault("search.threshold", 0.3)
	v.SetDefault("search.overfetch", 2)

	// 索引默认配置
	v.SetDefault("index.snapshot_path", "data/index_snapshot.json")
	v.SetDefault("index.remove_stopwords", true)

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 30)
}
