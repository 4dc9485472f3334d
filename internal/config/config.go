package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env         string `mapstructure:"ENV"`
	Port        string `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	AdminKey    string `mapstructure:"ADMIN_KEY"`
	CORSAllowed string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	AllocationInterval time.Duration `mapstructure:"ALLOCATION_INTERVAL"`
	CompletionInterval time.Duration `mapstructure:"COMPLETION_INTERVAL"`
	MinCompletionTime  time.Duration `mapstructure:"MIN_COMPLETION_TIME"`
	MaxCompletionTime  time.Duration `mapstructure:"MAX_COMPLETION_TIME"`
	FeederInterval     time.Duration `mapstructure:"FEEDER_INTERVAL"`

	AssistantBaseURL string `mapstructure:"ASSISTANT_BASE_URL"`
	AssistantModel   string `mapstructure:"ASSISTANT_MODEL"`
	AssistantAPIKey  string `mapstructure:"ASSISTANT_API_KEY"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("ALLOCATION_INTERVAL", "1s")
	v.SetDefault("COMPLETION_INTERVAL", "500ms")
	v.SetDefault("MIN_COMPLETION_TIME", "10s")
	v.SetDefault("MAX_COMPLETION_TIME", "15s")
	v.SetDefault("FEEDER_INTERVAL", "2s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
