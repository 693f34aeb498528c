package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".gitport"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for gitport settings.
const envPrefix = "GITPORT"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Load loads and validates configuration from file, env vars, and
// defaults.
func Load(configPath string) (*Config, error) {
	cfg, err := LoadUnvalidated(configPath)
	if err != nil {
		return nil, err
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return cfg, nil
}

// LoadUnvalidated loads configuration without validating it, so
// callers can apply overrides first.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadUnvalidated(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("gitlab.base_url", DefaultGitLabBaseURL)
	viperCfg.SetDefault("gitlab.timeout_seconds", DefaultGitLabTimeoutSeconds)
	viperCfg.SetDefault("gitlab.registry", DefaultGitLabRegistry)

	viperCfg.SetDefault("github.api_host", DefaultGitHubAPIHost)
	viperCfg.SetDefault("github.timeout_seconds", DefaultGitHubTimeoutSeconds)
	viperCfg.SetDefault("github.registry", DefaultGitHubRegistry)

	viperCfg.SetDefault("export.resume", false)
	viperCfg.SetDefault("export.checkpoint_every", DefaultCheckpointEvery)
	viperCfg.SetDefault("export.attachment_max_bytes", DefaultAttachmentMaxBytes)
	viperCfg.SetDefault("export.attachment_warn_bytes", DefaultAttachmentWarnBytes)
	viperCfg.SetDefault("export.pipeline_history_limit", DefaultPipelineHistoryLimit)

	viperCfg.SetDefault("apply.max_retries", DefaultApplyMaxRetries)
	viperCfg.SetDefault("apply.phase_workers", DefaultPhaseWorkers)
	viperCfg.SetDefault("apply.rate_limit_floor", DefaultRateLimitFloor)

	viperCfg.SetDefault("verify.tolerance", DefaultVerifyTolerance)
	viperCfg.SetDefault("verify.timeout_seconds", DefaultVerifyTimeoutSeconds)

	viperCfg.SetDefault("batch.parallel_limit", DefaultBatchParallelLimit)

	viperCfg.SetDefault("git.clone_timeout_seconds", DefaultCloneTimeoutSeconds)
	viperCfg.SetDefault("git.bundle_timeout_seconds", DefaultBundleTimeoutSeconds)
	viperCfg.SetDefault("git.wiki_timeout_seconds", DefaultWikiTimeoutSeconds)
}
