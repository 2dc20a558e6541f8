package basic

import (
	"github.com/seantiz/mori/internal/config"
	"github.com/seantiz/mori/internal/store"
)

// Settings keys read by the basic engine, besides config.KeyScheduler.
const (
	KeyEventsDSN = "events.dsn"
)

// Config holds configuration for the basic engine.
type Config struct {
	// Scheduler names the memory scheduler to consult.
	Scheduler string

	// EventsDSN is where submitted memory events are recorded.
	EventsDSN string
}

// LoadConfig reads the engine configuration from settings, applying defaults
// for values not set.
func LoadConfig(s *config.Settings) Config {
	return Config{
		Scheduler: s.GetDefault(config.KeyScheduler, config.DefaultScheduler),
		EventsDSN: s.GetDefault(KeyEventsDSN, store.DefaultDSN),
	}
}
