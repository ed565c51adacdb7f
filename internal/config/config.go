package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config 全局配置结构体（与 config.yaml 对应）
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Log         LogConfig         `mapstructure:"log"`
	Sync        SyncConfig        `mapstructure:"sync"`
	Lease       LeaseConfig       `mapstructure:"lease"`
	Provider    string            `mapstructure:"provider"` // 频道管理系统：dispatcharr / noop
	Dispatcharr DispatcharrConfig `mapstructure:"dispatcharr"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
	MatchCache  MatchCacheConfig  `mapstructure:"match_cache"`
	EPG         EPGConfig         `mapstructure:"epg"`
	Timezone    string            `mapstructure:"timezone"`
	Defaults    DefaultsConfig    `mapstructure:"defaults"`
	Seed        SeedConfig        `mapstructure:"seed"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres / sqlite
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text / json
}

// SyncConfig 生成任务调度配置
type SyncConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Cron              string        `mapstructure:"cron"`
	RunTimeout        time.Duration `mapstructure:"run_timeout"`
	MaxParallelGroups int           `mapstructure:"max_parallel_groups"`
}

// LeaseConfig 运行租约：同一时间只允许一个进程执行生成任务
type LeaseConfig struct {
	Backend       string        `mapstructure:"backend"` // local / file / redis
	FilePath      string        `mapstructure:"file_path"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	Key           string        `mapstructure:"key"`
	TTL           time.Duration `mapstructure:"ttl"`
	RetryInterval time.Duration `mapstructure:"retry_interval"` // 被其他实例占用时的首次重试间隔，之后翻倍，最长 1 分钟
}

// DispatcharrConfig 流来源与频道管理系统
type DispatcharrConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	Token     string        `mapstructure:"token"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Proxy     string        `mapstructure:"proxy"`
	RateLimit float64       `mapstructure:"rate_limit"` // 每秒请求数，0 不限
	Burst     int           `mapstructure:"burst"`
}

// ScheduleConfig 赛程源
type ScheduleConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// MatchCacheConfig 匹配缓存
type MatchCacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// EPGConfig XMLTV 输出
type EPGConfig struct {
	OutputPath string `mapstructure:"output_path"`
}

// DefaultsConfig 首次启动写入数据库的全局设置
type DefaultsConfig struct {
	Numbering NumberingDefaults `mapstructure:"numbering"`
	Lifecycle LifecycleDefaults `mapstructure:"lifecycle"`
}

type NumberingDefaults struct {
	NumberingMode string `mapstructure:"numbering_mode"`
	SortingScope  string `mapstructure:"sorting_scope"`
	SortBy        string `mapstructure:"sort_by"`
	RangeStart    int    `mapstructure:"range_start"`
	RangeEnd      int    `mapstructure:"range_end"` // 0 表示不限
	BlockStep     int    `mapstructure:"block_step"`
}

type LifecycleDefaults struct {
	CreateTiming string `mapstructure:"create_timing"`
	DeleteTiming string `mapstructure:"delete_timing"`
}

// SeedConfig 启动时导入的赛事组文件
type SeedConfig struct {
	GroupsFile string `mapstructure:"groups_file"`
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("./config")
}

// LoadConfigFrom 从指定目录读取 config.yaml
func LoadConfigFrom(dir string) (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	v := viper.New()
	setDefaults(v)

	// 2. 读取 config.yaml
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	v.SetTypeByDefaultValue(true)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "channelsync.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.cron", "*/15 * * * *")
	v.SetDefault("sync.run_timeout", 10*time.Minute)
	v.SetDefault("sync.max_parallel_groups", 4)
	v.SetDefault("lease.backend", "local")
	v.SetDefault("lease.file_path", "channelsync.lock")
	v.SetDefault("lease.key", "channelsync:generation")
	v.SetDefault("lease.ttl", 15*time.Minute)
	v.SetDefault("lease.retry_interval", 5*time.Second)
	v.SetDefault("provider", "dispatcharr")
	v.SetDefault("dispatcharr.timeout", 30*time.Second)
	v.SetDefault("dispatcharr.rate_limit", 10)
	v.SetDefault("dispatcharr.burst", 5)
	v.SetDefault("schedule.timeout", 20*time.Second)
	v.SetDefault("schedule.cache_ttl", 15*time.Minute)
	v.SetDefault("match_cache.ttl", 30*time.Minute)
	v.SetDefault("timezone", "UTC")
	v.SetDefault("defaults.numbering.numbering_mode", "strict_block")
	v.SetDefault("defaults.numbering.sorting_scope", "per_group")
	v.SetDefault("defaults.numbering.sort_by", "time")
	v.SetDefault("defaults.numbering.range_start", 1000)
	v.SetDefault("defaults.numbering.block_step", 10)
	v.SetDefault("defaults.lifecycle.create_timing", "same_day")
	v.SetDefault("defaults.lifecycle.delete_timing", "same_day")
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DISPATCHARR_TOKEN"); v != "" {
		cfg.Dispatcharr.Token = v
	}
	if v := os.Getenv("DISPATCHARR_PASSWORD"); v != "" {
		cfg.Dispatcharr.Password = v
	}
	if v := os.Getenv("DISPATCHARR_PROXY"); v != "" {
		cfg.Dispatcharr.Proxy = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Lease.RedisAddr = v
	}
	if v := os.Getenv("SCHEDULE_API_KEY"); v != "" {
		cfg.Schedule.APIKey = v
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}
	switch c.Lease.Backend {
	case "local", "file", "redis":
	default:
		return fmt.Errorf("不支持的租约后端: %s", c.Lease.Backend)
	}
	if c.Lease.Backend == "redis" && c.Lease.RedisAddr == "" {
		return fmt.Errorf("redis 租约缺少 redis_addr")
	}
	if c.Sync.MaxParallelGroups < 1 {
		c.Sync.MaxParallelGroups = 1
	}
	return nil
}

// GetGORMConfig 按运行模式选择 GORM 日志级别
func (d *DatabaseConfig) GetGORMConfig(mode string) gorm.Config {
	level := logger.Warn
	if mode == "debug" {
		level = logger.Info
	}
	return gorm.Config{Logger: logger.Default.LogMode(level)}
}
