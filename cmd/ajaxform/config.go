package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// appConfig is the merged view of ajaxform.yaml, AJAXFORM_* variables and
// flags.
type appConfig struct {
	Log    logConfig    `mapstructure:"log"`
	Submit submitConfig `mapstructure:"submit"`
	Serve  serveConfig  `mapstructure:"serve"`
}

type logConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

type submitConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

type serveConfig struct {
	Addr            string        `mapstructure:"addr"`
	Fixtures        string        `mapstructure:"fixtures"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)

	v.SetDefault("submit.timeout", 30*time.Second)
	v.SetDefault("submit.user_agent", "ajaxform/"+version)

	v.SetDefault("serve.addr", "127.0.0.1:8080")
	v.SetDefault("serve.shutdown_timeout", 5*time.Second)
}

// loadConfig reads the config file and environment into v. A missing default
// config file is not an error; a missing explicit one is.
func loadConfig(v *viper.Viper, file string) (appConfig, error) {
	setDefaults(v)

	if file != "" {
		path, err := homedir.Expand(file)
		if err != nil {
			return appConfig{}, err
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("ajaxform")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("AJAXFORM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return appConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg appConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return appConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
