// Package conf loads and exposes the application settings through viper.
package conf

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// ProviderSettings holds per-provider client configuration.
type ProviderSettings struct {
	Enabled     bool
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	RateLimitMS int
	CacheTTL    time.Duration

	// FailureThreshold consecutive transient failures open the provider's
	// circuit for the Cooldown window. Zero disables the breaker.
	FailureThreshold int
	Cooldown         time.Duration
}

// CacheSettings bounds one of the resolver's key-value caches.
type CacheSettings struct {
	Capacity int
	TTL      time.Duration
}

// ResolverSettings configures the cover resolution pipeline.
type ResolverSettings struct {
	// Preference order for providers, first match wins.
	ProviderOrder []string
	// Number of background resolution workers.
	Workers int
	// PathByURL maps image URL -> stored path.
	PathByURL CacheSettings
	// ProvisionalURL maps identifier -> best-known URL.
	ProvisionalURL CacheSettings
	// FinalDetails maps identifier -> resolved image details.
	FinalDetails CacheSettings
	// BadURLs remembers URLs that failed validation or download.
	BadURLs CacheSettings
	// BadIdentifiers remembers identifiers a provider had no image for.
	BadIdentifiers CacheSettings
}

// StorageSettings configures durable image storage.
type StorageSettings struct {
	// Root directory or bucket prefix for stored covers.
	Root string
	// Timeout for a single download-and-store operation.
	Timeout time.Duration
	// Minimum plausible cover size in bytes; smaller downloads are rejected.
	MinBytes int64
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Enabled bool
	Listen  string
}

// DatastoreSettings configures the sqlite-backed cover cache persistence.
type DatastoreSettings struct {
	Enabled bool
	Path    string
}

// Settings is the root configuration object.
type Settings struct {
	Debug bool

	Main struct {
		Name    string
		LogPath string
	}

	Resolver  ResolverSettings
	Storage   StorageSettings
	Datastore DatastoreSettings
	WebServer WebServerSettings

	GoogleBooks ProviderSettings
	OpenLibrary ProviderSettings
	Longitood   ProviderSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	loadErr          error
	settingsMutex    sync.RWMutex
)

// Load reads configuration from file and environment, applying defaults for
// anything unset. The work happens once; a failed load is remembered and
// every subsequent call returns the same error instead of silently handing
// out defaults.
func Load() (*Settings, error) {
	once.Do(func() {
		loadErr = loadSettings()
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return Setting(), nil
}

func loadSettings() error {
	setDefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/coverd")
	viper.SetEnvPrefix("coverd")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !asConfigFileNotFound(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return nil
}

func asConfigFileNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}

// Setting returns the current settings, loading defaults if Load was never called.
func Setting() *Settings {
	settingsMutex.RLock()
	s := settingsInstance
	settingsMutex.RUnlock()
	if s != nil {
		return s
	}

	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	if settingsInstance == nil {
		setDefaultConfig()
		settingsInstance = &Settings{}
		if err := viper.Unmarshal(settingsInstance); err != nil {
			// Defaults always unmarshal cleanly; an error here means a
			// programming mistake in setDefaultConfig.
			panic(fmt.Sprintf("conf: default settings failed to unmarshal: %v", err))
		}
	}
	return settingsInstance
}

// SetTestSettings replaces the global settings, for tests only.
func SetTestSettings(s *Settings) {
	settingsMutex.Lock()
	settingsInstance = s
	settingsMutex.Unlock()
}
