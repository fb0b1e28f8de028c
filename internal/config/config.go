package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"meshgate/internal/core/engine"
)

// EnvPrefix 环境变量前缀，例如 MESHGATE_SERVER_PORT
const EnvPrefix = "MESHGATE"

// Config 网关完整配置
type Config struct {
	Server     ServerConfig                  `mapstructure:"server"`
	Log        LogConfig                     `mapstructure:"log"`
	Gateway    GatewayConfig                 `mapstructure:"gateway"`
	Auth       AuthConfig                    `mapstructure:"auth"`
	Downstream DownstreamConfig              `mapstructure:"downstream"`
	EventBus   EventBusConfig                `mapstructure:"eventbus"`
	Store      StoreConfig                   `mapstructure:"store"`
	NATS       NATSConfig                    `mapstructure:"nats"`
	Secrets    map[string]string             `mapstructure:"secrets"`
	Routes     map[string]engine.RouteConfig `mapstructure:"routes"`
}

// ServerConfig HTTP 监听配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error dpanic panic fatal"`
	// RedactPatterns 额外的脱敏正则，日志和错误信息中的匹配内容会被替换
	RedactPatterns []string `mapstructure:"redact_patterns"`
}

// GatewayConfig 选择 API 变体 (path | unified)
type GatewayConfig struct {
	Variant string `mapstructure:"variant" validate:"oneof=path unified"`
}

// AuthConfig 主令牌从哪个 secret 名称读取
type AuthConfig struct {
	MasterTokenEnv string `mapstructure:"master_token_env" validate:"required"`
}

// DownstreamConfig 下游调用超时
type DownstreamConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// EventBusConfig 事件总线 REST 入口
type EventBusConfig struct {
	Endpoint string `mapstructure:"endpoint" validate:"required,url"`
}

// StoreConfig 外部路由存储；driver 为空表示只用静态路由表
type StoreConfig struct {
	Driver  string        `mapstructure:"driver" validate:"omitempty,oneof=postgres"`
	DSN     string        `mapstructure:"dsn" validate:"required_if=Driver postgres"`
	Table   string        `mapstructure:"table"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// NATSConfig url 为空时不注册 NATS 适配器
type NATSConfig struct {
	URL        string `mapstructure:"url"`
	ClientName string `mapstructure:"client_name"`
}

// Init 初始化配置，加载 .env 和 config.yaml
func Init(cfgFile string) {
	// Load .env file (ignore if not exists)
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	SetDefaults(viper.GetViper())

	// Environment variables
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	}
}

// SetDefaults 注册默认值；AutomaticEnv 只对已知 key 生效，所以每个 key 都要有默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.redact_patterns", []string{})
	v.SetDefault("gateway.variant", "path")
	v.SetDefault("auth.master_token_env", "GATEWAY_MASTER_TOKEN")
	v.SetDefault("downstream.timeout", 30*time.Second)
	v.SetDefault("eventbus.endpoint", "https://rest.ably.io")
	v.SetDefault("store.driver", "")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.table", "gateway_routes")
	v.SetDefault("store.timeout", 2*time.Second)
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.client_name", "meshgate")
}

// Load 从全局 viper 读取并校验配置
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom 从指定 viper 实例读取并校验配置
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Gateway.Variant = strings.ToLower(strings.TrimSpace(cfg.Gateway.Variant))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置；路由表逐条校验，错误信息带上 route key
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for key, route := range c.Routes {
		normalized, rest, err := engine.KeyFromPath(key)
		if err != nil || rest != "" || !strings.EqualFold(normalized, strings.Trim(key, "/")) {
			return fmt.Errorf("invalid config: route key %q must look like {version}/{module} without dots", key)
		}
		if err := route.Validate(); err != nil {
			return fmt.Errorf("invalid config: route %q: %w", key, err)
		}
	}
	return nil
}

// Addr 返回监听地址 host:port
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// StaticRoutes 返回以规范化 key 存放的静态路由表
func (c *Config) StaticRoutes() *engine.StaticTable {
	routes := make(map[string]engine.RouteConfig, len(c.Routes))
	for key, route := range c.Routes {
		routes[strings.ToLower(strings.Trim(key, "/"))] = route
	}
	return engine.NewStaticTable(routes)
}
