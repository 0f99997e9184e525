package config

import "sync"

var (
	processConfig *Config
	processErr    error
	processMu     sync.RWMutex
	processOnce   sync.Once
)

// Initialize loads the keeper configuration at path, applying KEEPER_*
// environment overrides, and keeps it for the lifetime of the process.
// Only the first call loads; later calls return the first call's error.
func Initialize(path string) error {
	processOnce.Do(func() {
		cfg, err := LoadConfigWithEnvOverrides(path)

		processMu.Lock()
		defer processMu.Unlock()
		processConfig, processErr = cfg, err
	})

	processMu.RLock()
	defer processMu.RUnlock()
	return processErr
}

// GetConfig returns the process configuration, or nil before a successful
// Initialize.
func GetConfig() *Config {
	processMu.RLock()
	defer processMu.RUnlock()
	if processErr != nil {
		return nil
	}
	return processConfig
}
