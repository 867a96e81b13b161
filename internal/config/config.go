package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	AdminPIN string `mapstructure:"admin_pin"`

	Words WordsConfig `mapstructure:"words"`
	DB    DBConfig    `mapstructure:"db"`
}

type WordsConfig struct {
	GeminiKey  string `mapstructure:"gemini_key"`
	DailyLimit int    `mapstructure:"daily_limit"`
}

// DBConfig configures the durable room store. An empty Host selects the
// in-memory store instead.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Port     int    `mapstructure:"port"`
}

var cfg *AppConfig

func GetConfig() *AppConfig {
	if cfg == nil {
		cfg = InitConfig()
	}

	return cfg
}

func InitConfig() *AppConfig {
	// Secrets live in .env during development; a missing file is fine
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigFile("app_config")
	v.SetConfigType("json")
	v.AddConfigPath(".")

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("words.daily_limit", 500)

	_ = v.BindEnv("admin_pin", "ADMIN_PIN")
	_ = v.BindEnv("words.gemini_key", "GEMINI_API_KEY")
	_ = v.BindEnv("words.daily_limit", "GEMINI_DAILY_LIMIT")
	_ = v.BindEnv("db.host", "DB_HOST")
	_ = v.BindEnv("db.user", "DB_USER")
	_ = v.BindEnv("db.password", "DB_PASSWORD")
	_ = v.BindEnv("db.name", "DB_NAME")
	_ = v.BindEnv("db.port", "DB_PORT")

	if err := v.ReadInConfig(); err != nil {
		panic(fmt.Errorf("failed to load config: %w", err))
	}

	var config AppConfig

	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("failed to parse config: %w", err))
	}

	return &config
}
