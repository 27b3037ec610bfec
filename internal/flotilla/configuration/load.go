package configuration

import (
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const defaultConfigName = ".flotilla"

// Load merges a YAML config file into config, which should already carry
// defaults. When cfgFile is empty, $HOME/.flotilla.yaml is used if present;
// an explicitly named file that cannot be read is an error.
func Load(config *FlotillaConfig, cfgFile string) error {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return errors.WithMessage(err, "error finding user home directory")
		}
		v.AddConfigPath(home)
		v.SetConfigName(defaultConfigName)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			// No default config is fine.
			return nil
		}
		return errors.WithMessagef(err, "error reading config file %s", v.ConfigFileUsed())
	}
	if err := v.Unmarshal(config); err != nil {
		return errors.WithMessagef(err, "error unmarshalling config file %s", v.ConfigFileUsed())
	}
	return nil
}
