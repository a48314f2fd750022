package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string           `yaml:"env" env-default:"development"` // environment
	HTTPServer HTTPServerConfig `yaml:"http_server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Redis      RedisConfig      `yaml:"redis"`
	Bot        BotConfig        `yaml:"bot"`
	Admin      AdminConfig      `yaml:"admin"`
}

// HTTPServerConfig структура http сервера
type HTTPServerConfig struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// DatabaseConfig структура по работе с БД
type DatabaseConfig struct {
	Host     string `yaml:"host" env-default:"localhost"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-required:"true"`
	Password string `yaml:"-" env:"DB_PASSWORD" env-required:"true"`
	Name     string `yaml:"name" env-required:"true"`
}

// JWTConfig настройка jwt
type JWTConfig struct {
	Secret   string `yaml:"-" env:"JWT_SECRET" env-required:"true"`
	TokenTTL int    `yaml:"token_ttl" env-default:"60"`
}

type MigrationsConfig struct {
	Path string `yaml:"path" env-default:"./migrations"`
}

// RedisConfig хранилище сессий диалога
type RedisConfig struct {
	Address    string        `yaml:"address" env-default:"localhost:6379"`
	Password   string        `yaml:"-" env:"REDIS_PASSWORD"`
	DB         int           `yaml:"db" env-default:"0"`
	SessionTTL time.Duration `yaml:"session_ttl" env-default:"24h"`
}

// BotConfig настройки бота и отправки уведомлений
type BotConfig struct {
	Token string `yaml:"-" env:"BOT_TOKEN" env-required:"true"`
	// WebhookSecret сверяется с заголовком X-Telegram-Bot-Api-Secret-Token; пустой — без проверки
	WebhookSecret string  `yaml:"-" env:"BOT_WEBHOOK_SECRET"`
	APIURL        string  `yaml:"api_url" env-default:"https://api.telegram.org"`
	AdminIDs      []int64 `yaml:"admin_ids" env:"ADMIN_IDS" env-separator:","`
	// RateLimit — событий в секунду на пользователя; 0 отключает лимит
	RateLimit float64 `yaml:"rate_limit" env-default:"1"`

	NotifyTimeout   time.Duration `yaml:"notify_timeout" env-default:"10s"`
	NotifyWorkers   int           `yaml:"notify_workers" env-default:"4"`
	NotifyQueueSize int           `yaml:"notify_queue_size" env-default:"256"`
	NotifyAttempts  int           `yaml:"notify_attempts" env-default:"3"`
	NotifyBackoff   time.Duration `yaml:"notify_backoff" env-default:"1s"`

	BreakerFailures    uint32        `yaml:"breaker_failures" env-default:"5"`
	BreakerOpenTimeout time.Duration `yaml:"breaker_open_timeout" env-default:"30s"`
}

// AdminConfig оператор HTTP API
type AdminConfig struct {
	Username     string `yaml:"username" env-default:"admin"`
	PasswordHash string `yaml:"-" env:"ADMIN_PASSWORD_HASH" env-required:"true"`
}

// MustLoad - если не загружаем - паникуем
func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		log.Fatal("CONFIG_PATH not exists")
	}
	return MustLoadByPath(configPath)
}

func fetchConfigPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("can't read config file %s", configPath)
	}

	return &cfg
}
