// Package config loads search options from defaults, an optional YAML file,
// SETX_ environment variables, and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jsdoublel/setx/internal/search"
)

var ErrInvalidConfig = errors.New("invalid config")

const envPrefix = "SETX"

// Option keys; flags bound to the loader must use these names
const (
	KeyRooted          = "rooted"
	KeyExtra           = "extra"
	KeyRounds          = "rounds"
	KeyPolyLimit       = "polylimit"
	KeyOutputCompleted = "output-completed"
	KeyOutput          = "output"
	KeyDistance        = "distance"
	KeyNProcs          = "nprocs"
	KeySeed            = "seed"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	def := search.DefaultOptions()
	v.SetDefault(KeyRooted, def.Rooted)
	v.SetDefault(KeyExtra, int(def.Extra))
	v.SetDefault(KeyRounds, def.SamplingRounds)
	v.SetDefault(KeyPolyLimit, def.PolyLimit)
	v.SetDefault(KeyOutputCompleted, def.OutputCompleted)
	v.SetDefault(KeyOutput, def.OutputFile)
	v.SetDefault(KeyDistance, def.Distance)
	v.SetDefault(KeyNProcs, def.NProcs)
	v.SetDefault(KeySeed, def.Seed)
	return v
}

// Loads options. path may be empty (no config file) and flags may be nil.
// Flags that were set take precedence over the environment, which takes
// precedence over the file.
func Load(path string, flags *pflag.FlagSet) (search.Options, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return search.Options{}, fmt.Errorf("%w, reading %s: %s", ErrInvalidConfig, path, err)
		}
	}
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return search.Options{}, fmt.Errorf("%w, binding flags: %s", ErrInvalidConfig, err)
		}
	}
	opts := search.Options{
		Rooted:          v.GetBool(KeyRooted),
		Extra:           search.ExtraLevel(v.GetInt(KeyExtra)),
		SamplingRounds:  v.GetInt(KeyRounds),
		PolyLimit:       v.GetInt(KeyPolyLimit),
		OutputCompleted: v.GetBool(KeyOutputCompleted),
		OutputFile:      v.GetString(KeyOutput),
		Distance:        v.GetBool(KeyDistance),
		NProcs:          v.GetInt(KeyNProcs),
		Seed:            v.GetUint64(KeySeed),
	}
	if err := opts.Validate(); err != nil {
		return search.Options{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return opts, nil
}
