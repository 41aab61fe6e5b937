package config

import "github.com/caarlos0/env/v11"

type DemoConfig struct {
	BaseURL  string   `env:"SCOREBOARD_URL" envDefault:"http://127.0.0.1:8080"`
	GameName string   `env:"DEMO_GAME" envDefault:"Poker"`
	Players  []string `env:"DEMO_PLAYERS" envDefault:"Alice,Bob" envSeparator:","`
	Rounds   int      `env:"DEMO_ROUNDS" envDefault:"3"`
	MaxScore int      `env:"DEMO_MAX_SCORE" envDefault:"20"`
}

func LoadDemo() (DemoConfig, error) {
	var cfg DemoConfig
	err := env.Parse(&cfg)
	return cfg, err
}
