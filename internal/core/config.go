// Package core contains the business logic of workpulse: evidence
// retrieval, deliverable matching, the analyzer branches, the daily run
// orchestrator, plan ingestion and period reports.
package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/workpulse/pkg/models"
)

// ConfigFileName is the name of the configuration file in the base directory.
const ConfigFileName = ".workpulse.yaml"

// HomeEnv overrides base directory discovery.
const HomeEnv = "WORKPULSE_HOME"

// ConfigurationManager loads and validates the workpulse configuration.
type ConfigurationManager interface {
	LoadConfig() (*models.Config, error)
	ValidateConfig(cfg *models.Config) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading the YAML configuration file and WORKPULSE_* overrides.
type viperConfigManager struct {
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// .workpulse.yaml from basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// ResolveBaseDir returns WORKPULSE_HOME when set, otherwise the nearest
// ancestor of start containing .workpulse.yaml, otherwise start itself.
func ResolveBaseDir(start string) string {
	if home := os.Getenv(HomeEnv); home != "" {
		return home
	}
	dir, err := filepath.Abs(start)
	if err != nil {
		return start
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ConfigFileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

// setDefaults registers every key with its default so that environment
// overrides apply to keys missing from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.path", ".workpulse/store.db")
	v.SetDefault("store.page_size", 50)

	v.SetDefault("embedding.provider", "hash")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.model", "blake3-hash")
	v.SetDefault("embedding.dimension", 256)
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.timeout", 30*time.Second)

	v.SetDefault("llm.base_url", "http://localhost:11434/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("llm.max_failures", 3)
	v.SetDefault("llm.cooldown", time.Minute)

	sources := map[string]models.SourceConfig{
		"documents": {Collection: "Documents", IdentityKey: "author", DateField: "last_modified", ContentField: "page_content"},
		"emails":    {Collection: "Emails", IdentityKey: "sender", DateField: "date", ContentField: "page_content"},
		"code":      {Collection: "Git", IdentityKey: "author", DateField: "date", ContentField: "page_content"},
		"readmes":   {Collection: "Git README", IdentityKey: "repo_name", ContentField: "page_content"},
		"chat":      {Collection: "Teams", IdentityKey: "author", DateField: "date", ContentField: "page_content"},
		"plans":     {Collection: "WBS", IdentityKey: "assignee", ContentField: "page_content"},
		"reports":   {Collection: "Reports", IdentityKey: "subject_id", DateField: "period_start", ContentField: "page_content"},
	}
	for name, s := range sources {
		v.SetDefault("sources."+name+".collection", s.Collection)
		v.SetDefault("sources."+name+".identity_key", s.IdentityKey)
		v.SetDefault("sources."+name+".date_field", s.DateField)
		v.SetDefault("sources."+name+".content_field", s.ContentField)
	}

	v.SetDefault("matcher.threshold", DefaultMatchThreshold)
	v.SetDefault("matcher.max_representatives", DefaultMaxRepresentatives)
	v.SetDefault("matcher.content_preview", DefaultContentPreview)
	v.SetDefault("matcher.hybrid_top_k", 5)

	v.SetDefault("orchestrator.branch_timeout", DefaultBranchTimeout)
	v.SetDefault("orchestrator.page_cap", 500)
	v.SetDefault("orchestrator.digest_items", DefaultDigestItems)
	v.SetDefault("orchestrator.digest_chars", DefaultDigestChars)

	v.SetDefault("prompts_dir", "")

	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.slack_webhook_url", "")
	v.SetDefault("notifications.source_failure_streak", 3)
	v.SetDefault("notifications.report_failures", 3)
	v.SetDefault("notifications.report_failure_window", 24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig reads .workpulse.yaml from the base path. A missing file yields
// the defaults. WORKPULSE_<SECTION>_<KEY> environment variables override
// both, e.g. WORKPULSE_LLM_API_KEY.
func (cm *viperConfigManager) LoadConfig() (*models.Config, error) {
	v := viper.New()
	v.SetConfigName(strings.TrimSuffix(ConfigFileName, ".yaml"))
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix("WORKPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", ConfigFileName, err)
	}
	if cfg.Store.Path != "" && cfg.Store.Path != ":memory:" && !filepath.IsAbs(cfg.Store.Path) {
		cfg.Store.Path = filepath.Join(cm.basePath, cfg.Store.Path)
	}
	if cfg.PromptsDir != "" && !filepath.IsAbs(cfg.PromptsDir) {
		cfg.PromptsDir = filepath.Join(cm.basePath, cfg.PromptsDir)
	}
	return &cfg, nil
}

var (
	validBackends   = map[string]bool{"sqlite": true, "memory": true}
	validProviders  = map[string]bool{"hash": true, "http": true}
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"text": true, "json": true}
)

// dateScopedSources must carry an identity key and a date field.
var dateScopedSources = []string{"documents", "emails", "code", "chat", "reports"}

// ValidateConfig checks cfg for invalid values and reports all of them in
// one error.
func (cm *viperConfigManager) ValidateConfig(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if !validBackends[cfg.Store.Backend] {
		errs = append(errs, fmt.Sprintf("store.backend %q is invalid, must be one of: sqlite, memory", cfg.Store.Backend))
	}
	if cfg.Store.Backend == "sqlite" && cfg.Store.Path == "" {
		errs = append(errs, "store.path must not be empty for the sqlite backend")
	}

	if !validProviders[cfg.Embedding.Provider] {
		errs = append(errs, fmt.Sprintf("embedding.provider %q is invalid, must be one of: hash, http", cfg.Embedding.Provider))
	}
	if cfg.Embedding.Provider == "http" && cfg.Embedding.BaseURL == "" {
		errs = append(errs, "embedding.base_url is required for the http provider")
	}
	if cfg.Embedding.Dimension <= 0 {
		errs = append(errs, fmt.Sprintf("embedding.dimension must be positive, got %d", cfg.Embedding.Dimension))
	}

	if cfg.LLM.BaseURL == "" {
		errs = append(errs, "llm.base_url must not be empty")
	}
	if cfg.LLM.Model == "" {
		errs = append(errs, "llm.model must not be empty")
	}
	if cfg.LLM.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("llm.timeout must be positive, got %s", cfg.LLM.Timeout))
	}

	all := cfg.Sources.All()
	for _, name := range []string{"documents", "emails", "code", "readmes", "chat", "plans", "reports"} {
		if all[name].Collection == "" {
			errs = append(errs, fmt.Sprintf("sources.%s.collection must not be empty", name))
		}
	}
	for _, name := range dateScopedSources {
		s := all[name]
		if s.IdentityKey == "" {
			errs = append(errs, fmt.Sprintf("sources.%s.identity_key must not be empty", name))
		}
		if s.DateField == "" {
			errs = append(errs, fmt.Sprintf("sources.%s.date_field must not be empty", name))
		}
	}

	if cfg.Matcher.Threshold <= 0 || cfg.Matcher.Threshold > 1 {
		errs = append(errs, fmt.Sprintf("matcher.threshold %v is invalid, must be in (0, 1]", cfg.Matcher.Threshold))
	}
	if cfg.Matcher.MaxRepresentatives < 1 {
		errs = append(errs, fmt.Sprintf("matcher.max_representatives must be at least 1, got %d", cfg.Matcher.MaxRepresentatives))
	}

	if cfg.Orchestrator.BranchTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("orchestrator.branch_timeout must be positive, got %s", cfg.Orchestrator.BranchTimeout))
	}

	if cfg.Notifications.Enabled && cfg.Notifications.SlackWebhookURL == "" {
		errs = append(errs, "notifications.slack_webhook_url is required when notifications are enabled")
	}

	if !validLogLevels[strings.ToLower(cfg.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid, must be one of: debug, info, warn, error", cfg.Log.Level))
	}
	if !validLogFormats[strings.ToLower(cfg.Log.Format)] {
		errs = append(errs, fmt.Sprintf("log.format %q is invalid, must be one of: text, json", cfg.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
