package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	StorageBitcask = "bitcask"
	StorageMemory  = "memory"
)

type Config struct {
	ID              uint64  `json:"id" mapstructure:"id"`
	ListenSQL       string  `json:"listen_sql" mapstructure:"listen_sql"`
	LogLevel        string  `json:"log_level" mapstructure:"log_level"`
	DataDir         string  `json:"data_dir" mapstructure:"data_dir"`
	CompactThresh   float64 `json:"compact_threshold" mapstructure:"compact_threshold"`
	StorageSQL      string  `json:"storage_sql" mapstructure:"storage_sql"`
	DefaultDatabase string  `json:"default_database" mapstructure:"default_database"`
}

func DefaultConfig() *Config {
	return &Config{
		ID:              1,
		ListenSQL:       "0.0.0.0:9605",
		LogLevel:        "info",
		DataDir:         "data",
		CompactThresh:   0.2,
		StorageSQL:      StorageBitcask,
		DefaultDatabase: "default_db",
	}
}

// LoadConfig layers the yaml file and SPROUT_* environment variables over DefaultConfig.
// An empty configFile skips the file.
func LoadConfig(configFile string) (*Config, error) {
	viperCfg := viper.New()
	viperCfg.SetEnvPrefix("SPROUT")
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	def := DefaultConfig()
	viperCfg.SetDefault("id", def.ID)
	viperCfg.SetDefault("listen_sql", def.ListenSQL)
	viperCfg.SetDefault("log_level", def.LogLevel)
	viperCfg.SetDefault("data_dir", def.DataDir)
	viperCfg.SetDefault("compact_threshold", def.CompactThresh)
	viperCfg.SetDefault("storage_sql", def.StorageSQL)
	viperCfg.SetDefault("default_database", def.DefaultDatabase)

	if configFile != "" {
		viperCfg.SetConfigFile(configFile)
		if err := viperCfg.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", configFile)
		}
	}

	config := DefaultConfig()
	if err := viperCfg.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.ID == 0 {
		return errors.New("id not allow equal 0")
	}
	switch c.StorageSQL {
	case StorageBitcask, StorageMemory:
	default:
		return errors.Errorf("unknown sql storage engine %s", c.StorageSQL)
	}
	if c.DefaultDatabase == "" {
		return errors.New("default_database must not be empty")
	}
	if c.CompactThresh < 0 || c.CompactThresh > 1 {
		return errors.Errorf("compact_threshold %v out of range [0,1]", c.CompactThresh)
	}
	return nil
}
