package config

import (
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	config = viper.New()
	holder atomic.Value
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	Server     struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Gateway struct {
		BaseURL   string        `mapstructure:"BASE_URL"`
		SecretKey string        `mapstructure:"SECRET_KEY"`
		Timeout   time.Duration `mapstructure:"TIMEOUT"`
	} `mapstructure:"GATEWAY"`
	// Sweep fields are pointers so an explicit midnight setting is
	// distinguishable from an absent one.
	Sweep struct {
		Hour   *int `mapstructure:"HOUR"`
		Minute *int `mapstructure:"MINUTE"`
	} `mapstructure:"SWEEP"`
	Otel struct {
		Enable bool `mapstructure:"ENABLE"`
	} `mapstructure:"OTEL"`
	Metrics struct {
		Enable bool `mapstructure:"ENABLE"`
	} `mapstructure:"METRICS"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() *Config {

	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if err := config.ReadInConfig(); err != nil {
		zap.L().Error("failed to read config file", zap.Error(err))
		os.Exit(1)
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}
	holder.Store(&cfg)

	config.OnConfigChange(func(e fsnotify.Event) {
		var newcfg Config
		if err := config.Unmarshal(&newcfg); err != nil {
			zap.L().Error("unable to reload config", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.Store(&newcfg)
		zap.L().Info("config reloaded", zap.String("file", e.Name))
	})
	config.WatchConfig()

	return &cfg
}

// Current returns the most recently loaded configuration. Callers holding the
// injected *Config keep the snapshot taken at startup.
func Current() *Config {
	if v, ok := holder.Load().(*Config); ok {
		return v
	}
	return nil
}
