package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type App struct {
	Env  string `yaml:"env"`
	Port int    `yaml:"port"`
}

func (a *App) PortString() string { return fmt.Sprintf("%d", a.Port) }

type Mongo struct {
	URI string `yaml:"uri"`
	DB  string `yaml:"db"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Enabled is false when no brokers are configured; the platform event feed is
// optional and the service runs without it.
func (k *Kafka) Enabled() bool { return len(k.Brokers) > 0 }

type JWT struct {
	Alg           string `yaml:"alg"`
	PublicKeyPath string `yaml:"public_key_path"`
	HSSecret      string `yaml:"hs_secret"`
}

type Websocket struct {
	PingIntervalSec  int   `yaml:"ping_interval_seconds"`
	WriteDeadlineSec int   `yaml:"write_deadline_seconds"`
	ReadLimit        int64 `yaml:"read_limit_bytes"`
	PresenceTTLSec   int   `yaml:"presence_ttl_seconds"`
}

func (w *Websocket) PingInterval() time.Duration {
	return time.Duration(w.PingIntervalSec) * time.Second
}

func (w *Websocket) WriteDeadline() time.Duration {
	return time.Duration(w.WriteDeadlineSec) * time.Second
}

func (w *Websocket) PresenceTTL() time.Duration {
	return time.Duration(w.PresenceTTLSec) * time.Second
}

type Config struct {
	App       App       `yaml:"app"`
	Mongo     Mongo     `yaml:"mongo"`
	Redis     Redis     `yaml:"redis"`
	Kafka     Kafka     `yaml:"kafka"`
	JWT       JWT       `yaml:"jwt"`
	Websocket Websocket `yaml:"websocket"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat("config.yaml"); err == nil {
		b, err := os.ReadFile("config.yaml")
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, err
		}
	}

	_ = godotenv.Load()
	overrideFromEnv(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("SERVICE_PORT"); v != "" {
		n, _ := strconv.Atoi(v)
		cfg.App.Port = n
	}

	if v := os.Getenv("MONGODB_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("MONGODB_NAME"); v != "" {
		cfg.Mongo.DB = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}

	if v := os.Getenv("JWT_PUBLIC_KEY_PATH"); v != "" {
		cfg.JWT.PublicKeyPath = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.HSSecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Port == 0 {
		cfg.App.Port = 8084
	}
	if cfg.JWT.Alg == "" {
		cfg.JWT.Alg = "HS256"
	}
	if cfg.Websocket.PingIntervalSec == 0 {
		cfg.Websocket.PingIntervalSec = 25
	}
	if cfg.Websocket.WriteDeadlineSec == 0 {
		cfg.Websocket.WriteDeadlineSec = 10
	}
	if cfg.Websocket.ReadLimit == 0 {
		cfg.Websocket.ReadLimit = 64 * 1024
	}
	if cfg.Websocket.PresenceTTLSec == 0 {
		cfg.Websocket.PresenceTTLSec = int(time.Hour / time.Second)
	}
	if cfg.Kafka.Enabled() && cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "messaging.events"
	}
}

func validate(cfg *Config) error {
	if cfg.Mongo.URI == "" {
		return errors.New("mongo.uri missing")
	}
	if cfg.Mongo.DB == "" {
		return errors.New("mongo.db missing")
	}

	if cfg.Redis.Addr == "" {
		return errors.New("redis.addr missing")
	}

	switch strings.ToUpper(cfg.JWT.Alg) {
	case "RS256":
		if cfg.JWT.PublicKeyPath == "" {
			return errors.New("jwt.public_key_path required for RS256")
		}
	case "HS256":
		if cfg.JWT.HSSecret == "" {
			return errors.New("jwt.hs_secret required for HS256")
		}
	default:
		return errors.New("invalid jwt.alg (use RS256 or HS256)")
	}

	return nil
}
