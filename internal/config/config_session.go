package config

// SessionConfig configures the session event log's retention sweep
// (internal/sessions.RetentionPolicy/Sweeper).
type SessionConfig struct {
	// DefaultAgentID is the agent a session is created against when a chat's
	// first turn doesn't name one explicitly.
	DefaultAgentID string `yaml:"default_agent_id"`

	// RetentionSchedule is a standard 5-field cron expression for how often
	// the retention sweep runs. Default: "0 * * * *" (hourly).
	RetentionSchedule string `yaml:"retention_schedule"`

	// MaxEventsPerSession caps how many trailing events a session's log
	// keeps after a sweep; 0 disables truncation.
	MaxEventsPerSession int `yaml:"max_events_per_session"`
}

func applySessionDefaults(cfg *SessionConfig) {
	if cfg.RetentionSchedule == "" {
		cfg.RetentionSchedule = "0 * * * *"
	}
	if cfg.DefaultAgentID == "" {
		cfg.DefaultAgentID = "orchestrator"
	}
}
