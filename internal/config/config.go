package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env       string `mapstructure:"env"`
	Port      int    `mapstructure:"port"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr   string `mapstructure:"addr"`
	Pass   string `mapstructure:"password"`
	DB     int    `mapstructure:"db"`
	Prefix string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	TopicRoomEvents string   `mapstructure:"topic_room_events"`
}

type WSConfig struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	ReadTimeoutSeconds   int   `mapstructure:"read_timeout_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
	RateLimitBurst       int   `mapstructure:"rate_limit_burst"`
	RateLimitSeconds     int   `mapstructure:"rate_limit_seconds"`
}

type Config struct {
	App   AppConfig   `mapstructure:"app"`
	Mongo MongoConfig `mapstructure:"mongo"`
	Redis RedisConfig `mapstructure:"redis"`
	Kafka KafkaConfig `mapstructure:"kafka"`
	WS    WSConfig    `mapstructure:"ws"`

	// derived timeouts
	PingInterval  time.Duration
	WriteDeadline time.Duration
	ReadTimeout   time.Duration
	RateInterval  time.Duration
}

func (a AppConfig) PortString() string { return strconv.Itoa(a.Port) }

// Load reads configuration from an optional file plus the environment.
// A missing file is fine; every field has a default or an env override.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "production")
	v.SetDefault("app.port", 8080)
	v.SetDefault("redis.prefix", "rt")
	v.SetDefault("kafka.topic_room_events", "room-events")
	v.SetDefault("ws.ping_interval_seconds", 25)
	v.SetDefault("ws.write_deadline_seconds", 10)
	v.SetDefault("ws.read_timeout_seconds", 60)
	v.SetDefault("ws.max_message_size_bytes", 65536)
	// freehand drawing emits stroke frames at pointer rate, so the bucket
	// has to absorb sustained bursts of roughly 60 frames a second
	v.SetDefault("ws.rate_limit_burst", 600)
	v.SetDefault("ws.rate_limit_seconds", 10)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if env := v.GetString("JWT_SECRET"); c.App.JWTSecret == "" && env != "" {
		c.App.JWTSecret = env
	}
	if env := v.GetString("MONGO_URI"); c.Mongo.URI == "" && env != "" {
		c.Mongo.URI = env
	}
	if env := v.GetString("REDIS_ADDR"); c.Redis.Addr == "" && env != "" {
		c.Redis.Addr = env
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "realtime"
	}

	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.WriteDeadline = time.Duration(c.WS.WriteDeadlineSeconds) * time.Second
	c.ReadTimeout = time.Duration(c.WS.ReadTimeoutSeconds) * time.Second
	c.RateInterval = time.Duration(c.WS.RateLimitSeconds) * time.Second
	return &c, nil
}
