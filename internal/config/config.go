package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TANKWARS_ROOM_TICK_RATE
const EnvPrefix = "TANKWARS"

// Config is the full server configuration
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Room   RoomConfig   `mapstructure:"room"`
	Match  MatchConfig  `mapstructure:"match"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig holds the HTTP and websocket settings
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	StaticDir      string   `mapstructure:"static_dir"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxConnsPerIP  int      `mapstructure:"max_conns_per_ip"`
	MaxTotalConns  int      `mapstructure:"max_total_conns"`
	PublicURL      string   `mapstructure:"public_url"`
}

// RoomConfig holds the room manager settings
type RoomConfig struct {
	TickRate          int           `mapstructure:"tick_rate"`
	MaxRooms          int           `mapstructure:"max_rooms"`
	MaxPlayers        int           `mapstructure:"max_players"`
	CrateInterval     time.Duration `mapstructure:"crate_interval"`
	MaxCrates         int           `mapstructure:"max_crates"`
	RespawnDelay      time.Duration `mapstructure:"respawn_delay"`
	ReconnectGrace    time.Duration `mapstructure:"reconnect_grace"`
	DiscoveryInterval time.Duration `mapstructure:"discovery_interval"`
}

// MatchConfig holds per-match toggles
type MatchConfig struct {
	LoadedAmmo bool `mapstructure:"loaded_ammo"`
}

// AuthConfig holds rejoin token and room password settings
type AuthConfig struct {
	TokenSecret string        `mapstructure:"token_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	BcryptCost  int           `mapstructure:"bcrypt_cost"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

func setDefaults() {
	viper.SetDefault("server.addr", ":3000")
	viper.SetDefault("server.static_dir", "")
	viper.SetDefault("server.allowed_origins", []string{"*"})
	viper.SetDefault("server.max_conns_per_ip", 5)
	viper.SetDefault("server.max_total_conns", 1000)
	viper.SetDefault("server.public_url", "http://localhost:3000")

	viper.SetDefault("room.tick_rate", 30)
	viper.SetDefault("room.max_rooms", 100)
	viper.SetDefault("room.max_players", 16)
	viper.SetDefault("room.crate_interval", "10s")
	viper.SetDefault("room.max_crates", 5)
	viper.SetDefault("room.respawn_delay", "3s")
	viper.SetDefault("room.reconnect_grace", "10s")
	viper.SetDefault("room.discovery_interval", "2s")

	viper.SetDefault("match.loaded_ammo", false)

	viper.SetDefault("auth.token_secret", "")
	viper.SetDefault("auth.token_ttl", "1h")
	viper.SetDefault("auth.bcrypt_cost", 10)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.max_size_mb", 50)
	viper.SetDefault("log.max_backups", 3)
}

// Load reads .env, then the config file, then TANKWARS_ environment
// overrides. An empty path searches tankwars.yaml in . and /etc/tankwars;
// a missing file is only an error when path was given.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("error loading .env: %w", err)
	}

	setDefaults()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("tankwars")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/tankwars")
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with
func (c Config) Validate() error {
	switch {
	case c.Room.TickRate <= 0:
		return fmt.Errorf("room.tick_rate must be positive, got %d", c.Room.TickRate)
	case c.Room.MaxPlayers < 2:
		return fmt.Errorf("room.max_players must be at least 2, got %d", c.Room.MaxPlayers)
	case c.Room.DiscoveryInterval <= 0:
		return fmt.Errorf("room.discovery_interval must be positive, got %s", c.Room.DiscoveryInterval)
	case c.Auth.TokenTTL <= 0:
		return fmt.Errorf("auth.token_ttl must be positive, got %s", c.Auth.TokenTTL)
	}
	return nil
}
