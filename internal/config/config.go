package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Env string
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Store struct {
		Path string
	} `mapstructure:"store"`

	Remote struct {
		URL          string
		PullInterval time.Duration `mapstructure:"pull_interval"`
		PullTimeout  time.Duration `mapstructure:"pull_timeout"`
		PushCooldown time.Duration `mapstructure:"push_cooldown"`
	} `mapstructure:"remote"`

	Fleet struct {
		VTRs []string `mapstructure:"vtrs"`
	} `mapstructure:"fleet"`

	Admin struct {
		Token string
	} `mapstructure:"admin"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	// ENV overrides (APP_*) for deploys without a config file edit
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("store.path", "vtr-estoque.db")
	v.SetDefault("remote.pull_interval", 90*time.Second)
	v.SetDefault("remote.pull_timeout", 15*time.Second)
	v.SetDefault("remote.push_cooldown", 4*time.Second)

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}
