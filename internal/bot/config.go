package bot

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// Default number of new words introduced per session
	DefaultDailyGoal int
	// Longest update polling wait in seconds
	UpdateTimeout int
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		DefaultDailyGoal: 10,
		UpdateTimeout:    30,
	}
}
