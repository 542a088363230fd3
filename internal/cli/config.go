package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/JonMunkholm/workbench/internal/analysis"
	"github.com/JonMunkholm/workbench/internal/export"
)

// EnvPrefix prefixes every environment override, e.g. EDACTL_OUTPUT_DIR or
// EDACTL_ANALYSIS_TOP_K.
const EnvPrefix = "EDACTL"

// Settings is the edactl configuration.
type Settings struct {
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// OutputDir receives exports written without an explicit --out path.
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`

	// Delimiter is the default CSV separator for exports.
	Delimiter   string `mapstructure:"delimiter" yaml:"delimiter"`
	MaxFileSize int64  `mapstructure:"max_file_size" yaml:"max_file_size"`

	Analysis analysis.Options `mapstructure:"analysis" yaml:"analysis"`
}

// LoadSettings reads defaults, then the config file, then EDACTL_*
// variables, then any flags bound to v. Without cfgFile an optional
// .edactl.yaml is looked up in the working and home directories.
func LoadSettings(v *viper.Viper, cfgFile string) (Settings, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "text")
	v.SetDefault("output_dir", ".")
	v.SetDefault("delimiter", "comma")
	v.SetDefault("max_file_size", 200<<20)
	v.SetDefault("analysis.sample_cap", analysis.DefaultSampleCap)
	v.SetDefault("analysis.seed", analysis.DefaultSeed)
	v.SetDefault("analysis.top_k", analysis.DefaultTopK)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName(".edactl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	s.OutputDir = filepath.Clean(s.OutputDir)
	return s, nil
}

// Validate checks the settings that are not validated downstream.
func (s Settings) Validate() error {
	var errs []string
	switch s.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log_format must be text or json, got %q", s.LogFormat))
	}
	if _, err := export.ParseDelimiter(s.Delimiter); err != nil {
		errs = append(errs, fmt.Sprintf("delimiter: %v", err))
	}
	if s.MaxFileSize < 0 {
		errs = append(errs, "max_file_size must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
