package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	AdminKey        string        `mapstructure:"ADMIN_KEY"`
	TelemetryURL    string        `mapstructure:"TELEMETRY_URL"`
	CORSAllowed     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	MaxUploadSizeMB int64         `mapstructure:"MAX_UPLOAD_MB"`
	CountryDefault  string        `mapstructure:"COUNTRY_DEFAULT"`

	OptimizerPopulation  int `mapstructure:"OPTIMIZER_POPULATION"`
	OptimizerGenerations int `mapstructure:"OPTIMIZER_GENERATIONS"`
	OptimizerElite       int `mapstructure:"OPTIMIZER_ELITE"`
	AvgStopMinutes       int `mapstructure:"AVG_STOP_MINUTES"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_UPLOAD_MB", 20)
	v.SetDefault("COUNTRY_DEFAULT", "Peru")
	v.SetDefault("OPTIMIZER_POPULATION", 50)
	v.SetDefault("OPTIMIZER_GENERATIONS", 100)
	v.SetDefault("OPTIMIZER_ELITE", 10)
	v.SetDefault("AVG_STOP_MINUTES", 45)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
