package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}
type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin AdminHTTP
}

func (a App) Production() bool { return strings.EqualFold(a.Env, "production") }

type LogFile struct {
	Enable     bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Log struct {
	Level string
	JSON  bool
	File  LogFile
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
	LeewaySec         int
}

func (j JWT) TTL() time.Duration { return time.Duration(j.AccessTokenTTLMin) * time.Minute }

type Session struct {
	Driver   string // redis / memory
	TTLHours int
	SweepMin int
	Cookie   string
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string // postgres / mysql / memory
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

type Minio struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

type Storage struct {
	Driver     string // local / minio
	LocalDir   string
	PublicBase string
	Minio      Minio
}

type Limits struct {
	RPS         float64
	Burst       int
	AuthRPS     float64
	AuthBurst   int
	MaxInflight int64
	MaxBodyMB   int64
	TimeoutSec  int
}

type Cache struct {
	StoreListTTLSec int
}

type Admin struct {
	BootstrapUsername string
	BootstrapEmail    string
	BootstrapPassword string
}

type CORS struct {
	Origins []string
}

type Config struct {
	App     App
	Log     Log
	JWT     JWT
	Session Session
	DB      DB
	Redis   Redis `mapstructure:"redis"`
	Storage Storage
	Limits  Limits
	Cache   Cache
	Admin   Admin
	CORS    CORS `mapstructure:"cors"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "marketplace-api")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readTimeoutSec", 15)
	v.SetDefault("app.http.writeTimeoutSec", 15)
	v.SetDefault("app.http.idleTimeoutSec", 60)
	v.SetDefault("app.admin.host", "127.0.0.1")
	v.SetDefault("app.admin.port", 8081)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file.path", "logs/app.log")
	v.SetDefault("log.file.maxSizeMB", 100)
	v.SetDefault("log.file.maxBackups", 7)
	v.SetDefault("log.file.maxAgeDays", 30)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "marketplace-api")
	v.SetDefault("jwt.accessTokenTTLMin", 7*24*60)
	v.SetDefault("jwt.leewaySec", 0)

	v.SetDefault("session.driver", "redis")
	v.SetDefault("session.ttlHours", 7*24)
	v.SetDefault("session.sweepMin", 24*60)
	v.SetDefault("session.cookie", "sid")

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.maxOpenConns", 50)
	v.SetDefault("db.maxIdleConns", 10)
	v.SetDefault("db.connMaxLifetimeMin", 30)
	v.SetDefault("db.autoMigrate", true)
	v.SetDefault("db.logLevel", "warn")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("admin.bootstrapUsername", "admin")
	v.SetDefault("admin.bootstrapEmail", "admin@example.com")
	v.SetDefault("admin.bootstrapPassword", "")
	v.SetDefault("cors.origins", []string{})

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.localDir", "uploads")
	v.SetDefault("storage.publicBase", "/uploads")
	v.SetDefault("storage.minio.bucket", "marketplace")

	v.SetDefault("limits.rps", 200)
	v.SetDefault("limits.burst", 400)
	v.SetDefault("limits.authRPS", 1)
	v.SetDefault("limits.authBurst", 10)
	v.SetDefault("limits.maxInflight", 512)
	v.SetDefault("limits.maxBodyMB", 10)
	v.SetDefault("limits.timeoutSec", 10)

	v.SetDefault("cache.storeListTTLSec", 30)
}

// Read 读取配置文件（可缺省），环境变量 APP_xxx 覆盖
func Read(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// 文件不存在时只用默认值 + 环境变量
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func Load(path string) *Config {
	c, err := Read(path)
	if err != nil {
		log.Fatalf("%v", err)
	}
	return c
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		if c.App.Production() {
			return fmt.Errorf("config: jwt.secret is required in production")
		}
		c.JWT.Secret = "dev-secret-change-me"
	}
	switch c.DB.Driver {
	case "postgres", "mysql", "memory":
	default:
		return fmt.Errorf("config: unsupported db.driver %q", c.DB.Driver)
	}
	switch c.Session.Driver {
	case "redis", "memory":
	default:
		return fmt.Errorf("config: unsupported session.driver %q", c.Session.Driver)
	}
	switch c.Storage.Driver {
	case "local", "minio":
	default:
		return fmt.Errorf("config: unsupported storage.driver %q", c.Storage.Driver)
	}
	return nil
}
