package config

import "github.com/caarlos0/env/v11"

type ServerConfig struct {
	HTTPAddr          string `env:"HTTP_ADDR" envDefault:"127.0.0.1:8080"`
	MaxCaptureBytes   int    `env:"LOG_BODY_CAPTURE_BYTES" envDefault:"4096"`
	LoadActiveOnStart bool   `env:"LOAD_ACTIVE_ON_START" envDefault:"true"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
