package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Database struct {
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Name          string `mapstructure:"name"`
	Host          string `mapstructure:"host"`
	Port          string `mapstructure:"port"`
	SSLMode       string `mapstructure:"ssl-mode"`
	MaxConns      int32  `mapstructure:"max-conns"`
	MigrationsDir string `mapstructure:"migrations-dir"`
}

type Storage struct {
	Driver string `mapstructure:"driver"`
}

type KafkaWriter struct {
	BatchSize      int `mapstructure:"batch-size"`
	BatchTimeoutMs int `mapstructure:"batch-timeout-ms"`
}

type KafkaBroker struct {
	URL string `mapstructure:"url"`
}

type KafkaTopic struct {
	SettlementEvents string `mapstructure:"settlement-events"`
}

type KafkaReader struct {
	GroupID string `mapstructure:"group-id"`
}

type Kafka struct {
	Writer KafkaWriter `mapstructure:"writer"`
	Broker KafkaBroker `mapstructure:"broker"`
	Topic  KafkaTopic  `mapstructure:"topic"`
	Reader KafkaReader `mapstructure:"reader"`
}

type Settlement struct {
	UPIDelay        time.Duration `mapstructure:"upi-delay"`
	CardDelay       time.Duration `mapstructure:"card-delay"`
	UPISuccessRate  float64       `mapstructure:"upi-success-rate"`
	CardSuccessRate float64       `mapstructure:"card-success-rate"`
	TestMode        bool          `mapstructure:"test-mode"`
	TestSuccess     bool          `mapstructure:"test-success"`
	TestDelay       time.Duration `mapstructure:"test-delay"`
	Blocking        bool          `mapstructure:"blocking"`
	Parallelism     int           `mapstructure:"parallelism"`
	Seed            uint64        `mapstructure:"seed"`
}

type Validation struct {
	StrictExpiry bool `mapstructure:"strict-expiry"`
}

type IDs struct {
	Seed uint64 `mapstructure:"seed"`
}

type Server struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read-timeout"`
	WriteTimeout    time.Duration `mapstructure:"write-timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
	TestEndpoints   bool          `mapstructure:"test-endpoints"`
}

type Metrics struct {
	URL          string `mapstructure:"url"`
	IntervalMs   int    `mapstructure:"interval-ms"`
	CommonLabels string `mapstructure:"common-labels"`
}

type Logs struct {
	URL   string `mapstructure:"url"`
	Level string `mapstructure:"level"`
}

type Config struct {
	Database   Database   `mapstructure:"database"`
	Storage    Storage    `mapstructure:"storage"`
	Kafka      Kafka      `mapstructure:"kafka"`
	Settlement Settlement `mapstructure:"settlement"`
	Validation Validation `mapstructure:"validation"`
	IDs        IDs        `mapstructure:"ids"`
	Server     Server     `mapstructure:"server"`
	Metrics    Metrics    `mapstructure:"metrics"`
	Logs       Logs       `mapstructure:"logs"`
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

var defaults = map[string]any{
	"database.user":           "gateway_user",
	"database.password":       "gateway_pass",
	"database.name":           "payment_gateway",
	"database.host":           "localhost",
	"database.port":           "5432",
	"database.ssl-mode":       "disable",
	"database.max-conns":      10,
	"database.migrations-dir": "migrations",

	"storage.driver": StorageDriverPostgres,

	"kafka.writer.batch-size":       100,
	"kafka.writer.batch-timeout-ms": 100,
	"kafka.broker.url":              "",
	"kafka.topic.settlement-events": "settlement-events",
	"kafka.reader.group-id":         "gateway-smoke",

	"settlement.upi-delay":         "2s",
	"settlement.card-delay":        "3s",
	"settlement.upi-success-rate":  0.90,
	"settlement.card-success-rate": 0.95,
	"settlement.test-mode":         false,
	"settlement.test-success":      true,
	"settlement.test-delay":        "1s",
	"settlement.blocking":          false,
	"settlement.parallelism":       1000,
	"settlement.seed":              0,

	"validation.strict-expiry": false,

	"ids.seed": 0,

	"server.port":             "8000",
	"server.read-timeout":     "5s",
	"server.write-timeout":    "10s",
	"server.shutdown-timeout": "10s",
	"server.test-endpoints":   true,

	"metrics.url":           "",
	"metrics.interval-ms":   10_000,
	"metrics.common-labels": `service="payment-gateway"`,

	"logs.url":   "",
	"logs.level": "info",
}

// LoadConfig reads config.yaml from path, if present, on top of the built-in
// defaults. Environment variables override both: settlement.test-mode is
// SETTLEMENT_TEST_MODE. A .env file in the working directory is loaded first.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func MustLoadConfig(path string) *Config {
	config, err := LoadConfig(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return config
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return errors.Errorf("storage.driver must be %q or %q, got %q", StorageDriverPostgres, StorageDriverMemory, c.Storage.Driver)
	}

	for name, rate := range map[string]float64{
		"settlement.upi-success-rate":  c.Settlement.UPISuccessRate,
		"settlement.card-success-rate": c.Settlement.CardSuccessRate,
	} {
		if rate < 0 || rate > 1 {
			return errors.Errorf("%s must be within [0, 1], got %v", name, rate)
		}
	}

	if c.Settlement.Parallelism < 1 {
		return errors.Errorf("settlement.parallelism must be positive, got %d", c.Settlement.Parallelism)
	}
	return nil
}
