package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadFile merges a yaml, toml or json config file into v. Keys use the same
// names as the environment variables without the prefix, e.g. "model".
func LoadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}
