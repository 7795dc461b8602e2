package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "CARDROOM"
	envConfigDefaultPath = "CARDROOM_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)
	if err := readOrCreate(v, configPath, cfg, logger); err != nil {
		return cfg, configPath, err
	}

	// A configured room list replaces the default one instead of merging into it.
	if v.IsSet("rooms") {
		cfg.Rooms = nil
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, configPath, err
	}

	return cfg, configPath, nil
}

// readOrCreate reads the config file, writing the defaults first when it is
// missing. A default file that cannot be written is not fatal.
func readOrCreate(v *viper.Viper, path string, cfg Config, logger *zerolog.Logger) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config: %w", err)
	}

	if err := writeDefaultConfig(path, cfg); err != nil {
		if logger != nil {
			logger.Warn().Err(err).Str("path", path).Msg("default config not written")
		}
		return nil
	}
	if logger != nil {
		logger.Info().Str("path", path).Msg("created default config")
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read default config: %w", err)
	}
	return nil
}

// setDefaults registers every key so that env vars can override keys that
// are absent from the config file.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("max_message_bytes", cfg.MaxMessageBytes)
	v.SetDefault("max_frames_per_minute", cfg.MaxFramesPerMinute)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("jwt_secret", cfg.JWTSecret)
	v.SetDefault("jwt_issuer", cfg.JWTIssuer)
	v.SetDefault("jwt_audience", cfg.JWTAudience)
	v.SetDefault("jwt_ttl", cfg.JWTTTL)
	v.SetDefault("nats_url", cfg.NATSURL)

	s := cfg.Server
	v.SetDefault("server.id", s.ID)
	v.SetDefault("server.name", s.Name)
	v.SetDefault("server.client_keep_alive", s.ClientKeepAlive)
	v.SetDefault("server.max_player_inactivity_time", s.MaxPlayerInactivityTime)
	v.SetDefault("server.idle_client_timeout", s.IdleClientTimeout)
	v.SetDefault("server.message_counting_interval", s.MessageCountingInterval)
	v.SetDefault("server.max_message_count_per_interval", s.MaxMessageCountPerInterval)
	v.SetDefault("server.max_message_size_per_interval", s.MaxMessageSizePerInterval)
	v.SetDefault("server.command_counting_interval", s.CommandCountingInterval)
	v.SetDefault("server.max_command_count_per_interval", s.MaxCommandCountPerInterval)
	v.SetDefault("server.max_games_per_user", s.MaxGamesPerUser)
	v.SetDefault("server.max_user_total", s.MaxUserTotal)
	v.SetDefault("server.permit_unregistered_users", s.PermitUnregisteredUsers)
	v.SetDefault("server.require_client_id", s.RequireClientID)
	v.SetDefault("server.permit_create_game_as_judge", s.PermitCreateGameAsJudge)
	v.SetDefault("server.server_features", s.ServerFeatures)
	v.SetDefault("server.required_features", s.RequiredFeatures)
	v.SetDefault("server.max_chat_history", s.MaxChatHistory)
	v.SetDefault("server.login_message", s.LoginMessage)
	v.SetDefault("server.outbound_queue", s.OutboundQueue)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
