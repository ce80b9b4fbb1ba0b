package models

import "time"

// StoreConfig locates the embedded vector store.
type StoreConfig struct {
	Backend  string `yaml:"backend" mapstructure:"backend"`
	Path     string `yaml:"path" mapstructure:"path"`
	PageSize int    `yaml:"page_size" mapstructure:"page_size"`
}

// EmbeddingConfig selects and configures the embedding collaborator.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider" mapstructure:"provider"`
	BaseURL   string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Model     string        `yaml:"model" mapstructure:"model"`
	Dimension int           `yaml:"dimension" mapstructure:"dimension"`
	APIKey    string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// LLMConfig configures the OpenAI-compatible judgment endpoint.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	APIKey      string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxFailures int           `yaml:"max_failures" mapstructure:"max_failures"`
	Cooldown    time.Duration `yaml:"cooldown" mapstructure:"cooldown"`
}

// SourceConfig describes how one evidence source is laid out in the store.
type SourceConfig struct {
	Collection   string `yaml:"collection" mapstructure:"collection"`
	IdentityKey  string `yaml:"identity_key" mapstructure:"identity_key"`
	DateField    string `yaml:"date_field" mapstructure:"date_field"`
	ContentField string `yaml:"content_field" mapstructure:"content_field"`
}

// SourcesConfig holds the layout of every source collection.
type SourcesConfig struct {
	Documents SourceConfig `yaml:"documents" mapstructure:"documents"`
	Emails    SourceConfig `yaml:"emails" mapstructure:"emails"`
	Code      SourceConfig `yaml:"code" mapstructure:"code"`
	Readmes   SourceConfig `yaml:"readmes" mapstructure:"readmes"`
	Chat      SourceConfig `yaml:"chat" mapstructure:"chat"`
	Plans     SourceConfig `yaml:"plans" mapstructure:"plans"`
	Reports   SourceConfig `yaml:"reports" mapstructure:"reports"`
}

// All returns every configured source keyed by its config name.
func (s SourcesConfig) All() map[string]SourceConfig {
	return map[string]SourceConfig{
		"documents": s.Documents,
		"emails":    s.Emails,
		"code":      s.Code,
		"readmes":   s.Readmes,
		"chat":      s.Chat,
		"plans":     s.Plans,
		"reports":   s.Reports,
	}
}

// MatcherConfig tunes deliverable matching.
type MatcherConfig struct {
	Threshold          float64 `yaml:"threshold" mapstructure:"threshold"`
	MaxRepresentatives int     `yaml:"max_representatives" mapstructure:"max_representatives"`
	ContentPreview     int     `yaml:"content_preview" mapstructure:"content_preview"`
	HybridTopK         int     `yaml:"hybrid_top_k" mapstructure:"hybrid_top_k"`
}

// OrchestratorConfig bounds a run.
type OrchestratorConfig struct {
	BranchTimeout time.Duration `yaml:"branch_timeout" mapstructure:"branch_timeout"`
	PageCap       int           `yaml:"page_cap" mapstructure:"page_cap"`
	DigestItems   int           `yaml:"digest_items" mapstructure:"digest_items"`
	DigestChars   int           `yaml:"digest_chars" mapstructure:"digest_chars"`
}

// NotificationConfig configures alert delivery and thresholds.
type NotificationConfig struct {
	Enabled             bool          `yaml:"enabled" mapstructure:"enabled"`
	SlackWebhookURL     string        `yaml:"slack_webhook_url,omitempty" mapstructure:"slack_webhook_url"`
	SourceFailureStreak int           `yaml:"source_failure_streak" mapstructure:"source_failure_streak"`
	ReportFailures      int           `yaml:"report_failures" mapstructure:"report_failures"`
	ReportFailureWindow time.Duration `yaml:"report_failure_window" mapstructure:"report_failure_window"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Config is the complete runtime configuration, read from .workpulse.yaml
// via Viper and passed explicitly to every component constructor.
type Config struct {
	Store         StoreConfig        `yaml:"store" mapstructure:"store"`
	Embedding     EmbeddingConfig    `yaml:"embedding" mapstructure:"embedding"`
	LLM           LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Sources       SourcesConfig      `yaml:"sources" mapstructure:"sources"`
	Matcher       MatcherConfig      `yaml:"matcher" mapstructure:"matcher"`
	Orchestrator  OrchestratorConfig `yaml:"orchestrator" mapstructure:"orchestrator"`
	PromptsDir    string             `yaml:"prompts_dir,omitempty" mapstructure:"prompts_dir"`
	Notifications NotificationConfig `yaml:"notifications" mapstructure:"notifications"`
	Log           LogConfig          `yaml:"log" mapstructure:"log"`
}
