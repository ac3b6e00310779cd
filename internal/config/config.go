package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Trello   TrelloConfig   `mapstructure:"trello"   validate:"required"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// LLMConfig contains the extraction service settings.
type LLMConfig struct {
	GeminiAPIKey      string  `mapstructure:"gemini_api_key" validate:"required"`
	ModelName         string  `mapstructure:"model_name"     validate:"required"`
	MaxTokens         int     `mapstructure:"max_tokens"     validate:"gt=0"`
	Temperature       float64 `mapstructure:"temperature"    validate:"gte=0,lte=2"`
	MaxRetries        int     `mapstructure:"max_retries"    validate:"gte=0"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}

// TrelloConfig contains the board integration settings. Two destination
// lists are required: one for meeting summary cards and one for action item
// cards.
type TrelloConfig struct {
	APIKey             string `mapstructure:"api_key"               validate:"required"`
	Token              string `mapstructure:"token"                 validate:"required"`
	BoardID            string `mapstructure:"board_id"              validate:"required"`
	SummaryListID      string `mapstructure:"summary_list_id"       validate:"required"`
	ActionItemsListID  string `mapstructure:"action_items_list_id"  validate:"required"`
	RequestTimeoutSecs int    `mapstructure:"request_timeout_seconds" validate:"gt=0"`
}

// TaskConfig contains the background task runner settings.
type TaskConfig struct {
	WorkerCount          int `mapstructure:"worker_count"            validate:"gt=0"`
	QueueSize            int `mapstructure:"queue_size"              validate:"gt=0"`
	StuckEmailAgeMinutes int `mapstructure:"stuck_email_age_minutes" validate:"gt=0"`
	SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes"  validate:"gt=0"`
}
