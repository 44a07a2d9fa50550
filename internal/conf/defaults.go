package conf

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Default values shared with other packages.
const (
	DefaultWeatherBaseURL    = "https://api.weatherapi.com/v1"
	DefaultWeatherTimeout    = 30 * time.Second
	DefaultWeatherCacheTTL   = 15 * time.Minute
	DefaultRequestsPerMinute = 60
	DefaultLocationTimeout   = 10 * time.Second
	DefaultLocationName      = "Default Location (Great Lakes)"
	DefaultLatitude          = 41.2033
	DefaultLongitude         = -81.5188
	DefaultGpsdAddress       = "localhost:2947"
	DefaultDatabaseName      = "trolltrack.db"
	DefaultAPIListen         = "127.0.0.1:8089"
	DefaultMQTTTopic         = "trolltrack/catches"
)

// DefaultFixtures are real fishing spots around Lake Erie and northeast Ohio
// used by the fixture location source.
var DefaultFixtures = []NamedLocation{
	{Name: "Lake Erie - Western Basin Reefs", Latitude: 41.7008, Longitude: -83.0453},
	{Name: "Lake Erie - Port Clinton", Latitude: 41.5120, Longitude: -82.9377},
	{Name: "Lake Erie - Fairport Harbor", Latitude: 41.7598, Longitude: -81.2779},
	{Name: "Mosquito Creek Lake", Latitude: 41.2967, Longitude: -80.7631},
	{Name: "Berlin Lake", Latitude: 41.0420, Longitude: -81.0040},
	{Name: "Portage Lakes", Latitude: 40.9830, Longitude: -81.5470},
}

// setDefaultConfig registers a default for every key so Unmarshal always
// produces a complete Settings value.
func setDefaultConfig(v *viper.Viper) {
	dataDir := GetDataDir()

	v.SetDefault("debug", false)

	v.SetDefault("main.name", "Angler")
	v.SetDefault("main.units", UnitsImperial)

	v.SetDefault("weather.api_key", "")
	v.SetDefault("weather.base_url", DefaultWeatherBaseURL)
	v.SetDefault("weather.timeout", DefaultWeatherTimeout)
	v.SetDefault("weather.cache_ttl", DefaultWeatherCacheTTL)
	v.SetDefault("weather.requests_per_minute", DefaultRequestsPerMinute)

	v.SetDefault("location.source", LocationSourceStatic)
	v.SetDefault("location.timeout", DefaultLocationTimeout)
	v.SetDefault("location.gpsd_address", DefaultGpsdAddress)
	v.SetDefault("location.permission", PermissionPrompt)
	v.SetDefault("location.default.name", DefaultLocationName)
	v.SetDefault("location.default.latitude", DefaultLatitude)
	v.SetDefault("location.default.longitude", DefaultLongitude)
	v.SetDefault("location.fixtures", fixturesAsMaps(DefaultFixtures))

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", filepath.Join(dataDir, DefaultDatabaseName))
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.database", "trolltrack")

	v.SetDefault("lures.catalog", "")

	v.SetDefault("backup.dir", filepath.Join(dataDir, "backups"))
	v.SetDefault("backup.targets", []map[string]any{})

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", DefaultMQTTTopic)
	v.SetDefault("mqtt.client_id", "trolltrack")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")

	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.urls", []string{})

	v.SetDefault("telemetry.sentry_dsn", "")

	v.SetDefault("api.listen", DefaultAPIListen)

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", filepath.Join(dataDir, "logs", "trolltrack.log"))
	v.SetDefault("logging.file_output.level", "info")
	v.SetDefault("logging.module_levels", map[string]string{})
}

// fixturesAsMaps converts fixtures to the generic form viper stores defaults in.
func fixturesAsMaps(fixtures []NamedLocation) []map[string]any {
	out := make([]map[string]any, 0, len(fixtures))
	for _, f := range fixtures {
		out = append(out, map[string]any{
			"name":      f.Name,
			"latitude":  f.Latitude,
			"longitude": f.Longitude,
		})
	}
	return out
}
