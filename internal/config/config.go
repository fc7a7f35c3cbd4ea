package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    Server    `mapstructure:"server"`
	HTTP      HTTP      `mapstructure:"http"`
	Logging   Logging   `mapstructure:"chat_logging"`
	Database  Database  `mapstructure:"database"`
	Pipeline  Pipeline  `mapstructure:"pipeline"`
	Ingest    Ingest    `mapstructure:"ingest"`
	Retention Retention `mapstructure:"retention"`
	Feed      Feed      `mapstructure:"feed"`
	Auth      Auth      `mapstructure:"auth"`
	Debug     Debug     `mapstructure:"debug"`
	LogLevel  string    `mapstructure:"log_level" validate:"oneof=DEBUG INFO WARN ERROR"`
}

type Server struct {
	Name    string `mapstructure:"name" validate:"required"`
	DataDir string `mapstructure:"data_dir" validate:"required"`
}

type HTTP struct {
	Listen         string   `mapstructure:"listen" validate:"required"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogTypes struct {
	Chat            bool `mapstructure:"chat"`
	PrivateMessages bool `mapstructure:"private_messages"`
	Commands        bool `mapstructure:"commands"`
	SystemMessages  bool `mapstructure:"system_messages"`
	JoinLeave       bool `mapstructure:"join_leave"`
	DeathMessages   bool `mapstructure:"death_messages"`
	Achievements    bool `mapstructure:"achievements"`
	Broadcasts      bool `mapstructure:"broadcasts"`
}

type Logging struct {
	Enabled          bool     `mapstructure:"enabled"`
	LogTypes         LogTypes `mapstructure:"log_types"`
	FilterSensitive  bool     `mapstructure:"filter_sensitive_data"`
	MaxMessageLength int      `mapstructure:"max_message_length" validate:"gte=4"`
	Channels         []string `mapstructure:"channels"`
	ExcludedPlayers  []string `mapstructure:"excluded_players"`
}

type Pool struct {
	MaximumPoolSize        int           `mapstructure:"maximum_pool_size" validate:"gte=1"`
	MinimumIdle            int           `mapstructure:"minimum_idle" validate:"gte=0"`
	ConnectionTimeout      time.Duration `mapstructure:"connection_timeout" validate:"gt=0"`
	IdleTimeout            time.Duration `mapstructure:"idle_timeout"`
	MaxLifetime            time.Duration `mapstructure:"max_lifetime"`
	LeakDetectionThreshold time.Duration `mapstructure:"leak_detection_threshold"`
}

type Database struct {
	Type     string `mapstructure:"type" validate:"oneof=sqlite mysql mariadb"`
	Path     string `mapstructure:"path" validate:"required_if=Type sqlite"`
	Host     string `mapstructure:"host" validate:"required_unless=Type sqlite"`
	Port     int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	Name     string `mapstructure:"database" validate:"required_unless=Type sqlite"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSL      bool   `mapstructure:"ssl"`
	Pool     Pool   `mapstructure:"pool"`
}

type Pipeline struct {
	WriteWorkers  int           `mapstructure:"write_workers" validate:"gte=1"`
	ReadWorkers   int           `mapstructure:"read_workers" validate:"gte=1"`
	QueueSize     int           `mapstructure:"queue_size" validate:"gte=1"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace" validate:"gt=0"`
}

// Container binds a docker container to the game adapter that parses its log.
type Container struct {
	Name string `mapstructure:"container" validate:"required"`
	Game string `mapstructure:"game" validate:"required"`
}

type Ingest struct {
	Containers   []Container `mapstructure:"containers" validate:"dive"`
	DefaultWorld string      `mapstructure:"default_world" validate:"required"`
	Tail         string      `mapstructure:"tail"`
}

type Retention struct {
	Enabled    bool          `mapstructure:"enabled"`
	MaxAge     time.Duration `mapstructure:"max_age" validate:"required_if=Enabled true"`
	Schedule   string        `mapstructure:"schedule" validate:"required_if=Enabled true"`
	Archive    bool          `mapstructure:"archive"`
	ArchiveDir string        `mapstructure:"archive_dir"`
}

type Redis struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type Feed struct {
	Redis Redis `mapstructure:"redis"`
}

type Auth struct {
	DefaultUser string        `mapstructure:"default_user" validate:"required"`
	DefaultPass string        `mapstructure:"default_pass" validate:"required"`
	SessionTTL  time.Duration `mapstructure:"session_ttl" validate:"gt=0"`
}

type Debug struct {
	Enabled bool `mapstructure:"enabled"`
}

var validate = validator.New()

// Load reads config.yml (or the file given), overlays CHATLOG_ environment
// variables and validates the result. A missing config file is not an error.
func Load(file string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/chatlog")
	}
	v.SetEnvPrefix("CHATLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)

	dataDir, err := filepath.Abs(cfg.Server.DataDir)
	if err != nil {
		return nil, err
	}
	cfg.Server.DataDir = dataDir
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(dataDir, "chatlog.db")
	}
	if cfg.Retention.ArchiveDir == "" {
		cfg.Retention.ArchiveDir = filepath.Join(dataDir, "archive")
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "minecraft")
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("http.listen", ":8080")
	v.SetDefault("http.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})

	v.SetDefault("chat_logging.enabled", true)
	for _, t := range []string{"chat", "private_messages", "system_messages", "join_leave", "death_messages", "achievements", "broadcasts"} {
		v.SetDefault("chat_logging.log_types."+t, true)
	}
	// command logging is opt-in
	v.SetDefault("chat_logging.log_types.commands", false)
	v.SetDefault("chat_logging.filter_sensitive_data", true)
	v.SetDefault("chat_logging.max_message_length", 1000)
	v.SetDefault("chat_logging.channels", []string{})
	v.SetDefault("chat_logging.excluded_players", []string{})

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.database", "minecraft_logs")
	v.SetDefault("database.username", "root")
	v.SetDefault("database.pool.maximum_pool_size", 10)
	v.SetDefault("database.pool.minimum_idle", 2)
	v.SetDefault("database.pool.connection_timeout", 30*time.Second)
	v.SetDefault("database.pool.idle_timeout", 600*time.Second)
	v.SetDefault("database.pool.max_lifetime", 1800*time.Second)
	v.SetDefault("database.pool.leak_detection_threshold", 60*time.Second)

	v.SetDefault("pipeline.write_workers", 3)
	v.SetDefault("pipeline.read_workers", 2)
	v.SetDefault("pipeline.queue_size", 1024)
	v.SetDefault("pipeline.shutdown_grace", 10*time.Second)

	v.SetDefault("ingest.default_world", "world")
	v.SetDefault("ingest.tail", "0")

	v.SetDefault("retention.enabled", false)
	v.SetDefault("retention.max_age", 90*24*time.Hour)
	v.SetDefault("retention.schedule", "0 4 * * *")
	v.SetDefault("retention.archive", true)

	v.SetDefault("feed.redis.channel", "chatlog:live")

	v.SetDefault("auth.default_user", "admin")
	v.SetDefault("auth.default_pass", "admin")
	v.SetDefault("auth.session_ttl", 7*24*time.Hour)

	v.SetDefault("log_level", "INFO")
}

// Holder hands out the current config snapshot. Reload swaps in a new one;
// snapshots already handed out are never modified.
type Holder struct {
	file    string
	current atomic.Pointer[Config]
}

func NewHolder(file string, cfg *Config) *Holder {
	h := &Holder{file: file}
	h.current.Store(cfg)
	return h
}

func (h *Holder) Get() *Config {
	return h.current.Load()
}

// Reload loads the config again and publishes it only if it is valid.
func (h *Holder) Reload() (*Config, error) {
	cfg, err := Load(h.file)
	if err != nil {
		return nil, err
	}
	h.current.Store(cfg)
	return cfg, nil
}
