// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "coverd")
	viper.SetDefault("main.logpath", "logs")

	viper.SetDefault("resolver.providerorder", []string{"googlebooks", "openlibrary", "longitood"})
	viper.SetDefault("resolver.workers", 4)

	viper.SetDefault("resolver.pathbyurl.capacity", 1000)
	viper.SetDefault("resolver.pathbyurl.ttl", 24*time.Hour)
	viper.SetDefault("resolver.provisionalurl.capacity", 1000)
	viper.SetDefault("resolver.provisionalurl.ttl", 6*time.Hour)
	viper.SetDefault("resolver.finaldetails.capacity", 1000)
	viper.SetDefault("resolver.finaldetails.ttl", 7*24*time.Hour)
	viper.SetDefault("resolver.badurls.capacity", 5000)
	viper.SetDefault("resolver.badurls.ttl", 24*time.Hour)
	viper.SetDefault("resolver.badidentifiers.capacity", 2000)
	viper.SetDefault("resolver.badidentifiers.ttl", 24*time.Hour)

	viper.SetDefault("storage.root", "covers/")
	viper.SetDefault("storage.timeout", 30*time.Second)
	viper.SetDefault("storage.minbytes", 1024)

	viper.SetDefault("datastore.enabled", true)
	viper.SetDefault("datastore.path", "coverd.db")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.listen", "0.0.0.0:8080")

	viper.SetDefault("googlebooks.enabled", true)
	viper.SetDefault("googlebooks.baseurl", "https://www.googleapis.com/books/v1")
	viper.SetDefault("googlebooks.apikey", "")
	viper.SetDefault("googlebooks.timeout", 10*time.Second)
	viper.SetDefault("googlebooks.ratelimitms", 250)
	viper.SetDefault("googlebooks.cachettl", 1*time.Hour)
	viper.SetDefault("googlebooks.failurethreshold", 5)
	viper.SetDefault("googlebooks.cooldown", 2*time.Minute)

	viper.SetDefault("openlibrary.enabled", true)
	viper.SetDefault("openlibrary.baseurl", "https://openlibrary.org")
	viper.SetDefault("openlibrary.timeout", 10*time.Second)
	viper.SetDefault("openlibrary.ratelimitms", 250)
	viper.SetDefault("openlibrary.cachettl", 1*time.Hour)
	viper.SetDefault("openlibrary.failurethreshold", 5)
	viper.SetDefault("openlibrary.cooldown", 2*time.Minute)

	viper.SetDefault("longitood.enabled", true)
	viper.SetDefault("longitood.baseurl", "https://bookcover.longitood.com")
	viper.SetDefault("longitood.timeout", 10*time.Second)
	viper.SetDefault("longitood.ratelimitms", 250)
	viper.SetDefault("longitood.cachettl", 1*time.Hour)
	viper.SetDefault("longitood.failurethreshold", 5)
	viper.SetDefault("longitood.cooldown", 2*time.Minute)
}
