package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации леджера.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Settle   SettleConfig   `mapstructure:"settle"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	MetricsPort  int           `mapstructure:"metrics_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (Pub/Sub, очередь расчетов, дедуп).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig содержит пути к RSA ключам для проверки подписей инструкций.
type AuthConfig struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	PublicKey     []byte
}

// LedgerConfig — специфичные настройки ядра авторизации.
type LedgerConfig struct {
	OutboxBatchSize    int           `mapstructure:"outbox_batch_size"`
	OutboxPollInterval time.Duration `mapstructure:"outbox_poll_interval"`

	// Режим верификатора proof-ов: "stub" (принимает любой непустой proof,
	// НЕ дает экономических гарантий) или "remote" (внешний сервис).
	VerifierMode    string        `mapstructure:"verifier_mode"`
	VerifierURL     string        `mapstructure:"verifier_url"`
	VerifierTimeout time.Duration `mapstructure:"verifier_timeout"`
}

// SettleConfig — настройки воркера расчетов (cmd/settled).
type SettleConfig struct {
	// "mock" для локальной разработки, "circle" для реального кастодиального API
	WalletMode   string        `mapstructure:"wallet_mode"`
	CircleURL    string        `mapstructure:"circle_url"`
	CircleAPIKey string        `mapstructure:"circle_api_key"`
	DedupTTL     time.Duration `mapstructure:"dedup_ttl"`

	// Circuit Breaker для кастодиального API
	CBInterval time.Duration `mapstructure:"cb_interval"`
	CBTimeout  time.Duration `mapstructure:"cb_timeout"`
	RateLimit  float64       `mapstructure:"rate_limit"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// 2. ENV перекрывает файл: SERVER_PORT=9000 перекроет server.port
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Ключ подписи: либо PEM прямо в ENV (Docker/K8s), либо файл по пути
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("ledger.outbox_batch_size", 100)
	v.SetDefault("ledger.outbox_poll_interval", 500*time.Millisecond)
	v.SetDefault("ledger.verifier_mode", "stub")
	v.SetDefault("ledger.verifier_timeout", 10*time.Second)
	v.SetDefault("settle.wallet_mode", "mock")
	v.SetDefault("settle.dedup_ttl", 30*24*time.Hour)
	v.SetDefault("settle.cb_interval", 5*time.Second)
	v.SetDefault("settle.cb_timeout", 30*time.Second)
	v.SetDefault("settle.rate_limit", 50)
}

// loadKeyResource — универсальный хелпер: сначала ENV, потом файл
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
