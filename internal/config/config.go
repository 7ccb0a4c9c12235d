package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileName is the config file searched for in the config directory.
const ConfigFileName = "view_start_positions.cfg.json"

// ServerConfig holds simulation endpoint settings
type ServerConfig struct {
	Host            string
	Port            int
	ConnectAttempts int
	Timeout         time.Duration
}

// ViewerConfig holds orchestration settings
type ViewerConfig struct {
	Positions string
	Backoff   time.Duration
}

// MapConfig holds map asset and conversion settings
type MapConfig struct {
	AssetsDir    string
	PixelDensity float64
	NodeDensity  float64
}

// DisplayConfig selects how the composed image is shown
type DisplayConfig struct {
	Mode   string // "window" or "file"
	Output string
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// CatalogConfig holds run catalog settings
type CatalogConfig struct {
	Enabled bool
	Driver  string // "sqlite" or "postgres"
	Path    string
}

// InfluxConfig holds run metrics settings
type InfluxConfig struct {
	Enabled    bool
	URL        string
	Token      string
	Org        string
	Bucket     string
	BackupPath string
}

// PublishConfig holds live publisher settings
type PublishConfig struct {
	Enabled bool
	URL     string
	Secret  string
}

// SnapshotConfig holds object store upload settings
type SnapshotConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
}

// PrometheusConfig holds Pushgateway settings
type PrometheusConfig struct {
	Enabled bool
	PushURL string
	Job     string
}

// ExportConfig holds GeoJSON export settings
type ExportConfig struct {
	GeoJSONPath string
	OriginLat   float64
	OriginLon   float64
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "")

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 2000)
	viper.SetDefault("server.connectAttempts", 10)
	viper.SetDefault("server.timeout", "0s")

	viper.SetDefault("viewer.positions", "all")
	viper.SetDefault("viewer.backoff", "1s")

	viper.SetDefault("maps.assetsDir", "carla/planner")
	viper.SetDefault("maps.pixelDensity", 16.53)
	viper.SetDefault("maps.nodeDensity", 50)

	viper.SetDefault("display.mode", "window")
	viper.SetDefault("display.output", "")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "view-start-positions")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("catalog.enabled", false)
	viper.SetDefault("catalog.driver", "sqlite")
	viper.SetDefault("catalog.path", "./start_positions.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "carla")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "carla")
	viper.SetDefault("influx.bucket", "start_positions")
	viper.SetDefault("influx.backupPath", "./start_positions.influx.gz")

	viper.SetDefault("publish.enabled", false)
	viper.SetDefault("publish.url", "ws://localhost:5000/api/live")
	viper.SetDefault("publish.secret", "")

	viper.SetDefault("snapshot.enabled", false)
	viper.SetDefault("snapshot.endpoint", "localhost:9000")
	viper.SetDefault("snapshot.accessKey", "")
	viper.SetDefault("snapshot.secretKey", "")
	viper.SetDefault("snapshot.bucket", "start-positions")
	viper.SetDefault("snapshot.useSSL", false)
	viper.SetDefault("snapshot.prefix", "")

	viper.SetDefault("prometheus.enabled", false)
	viper.SetDefault("prometheus.pushURL", "http://localhost:9091")
	viper.SetDefault("prometheus.job", "view_start_positions")

	viper.SetDefault("export.geojson", "")
	viper.SetDefault("export.originLat", 0.0)
	viper.SetDefault("export.originLon", 0.0)
}

// Load sets default values and reads the JSON config file from configDir.
// A missing file is reported through found=false, not as an error.
func Load(configDir string) (found bool, err error) {
	SetDefaults()

	viper.SetConfigName(ConfigFileName)
	viper.SetConfigType("json")
	viper.AddConfigPath(configDir)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("error reading config file: %w", err)
	}
	if err := ValidateFile(viper.ConfigFileUsed()); err != nil {
		return true, err
	}

	return true, nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetServerConfig returns the simulation endpoint settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Host:            viper.GetString("server.host"),
		Port:            viper.GetInt("server.port"),
		ConnectAttempts: viper.GetInt("server.connectAttempts"),
		Timeout:         viper.GetDuration("server.timeout"),
	}
}

// GetViewerConfig returns the orchestration settings.
func GetViewerConfig() ViewerConfig {
	return ViewerConfig{
		Positions: viper.GetString("viewer.positions"),
		Backoff:   viper.GetDuration("viewer.backoff"),
	}
}

// GetMapConfig returns the map asset settings.
func GetMapConfig() MapConfig {
	return MapConfig{
		AssetsDir:    viper.GetString("maps.assetsDir"),
		PixelDensity: viper.GetFloat64("maps.pixelDensity"),
		NodeDensity:  viper.GetFloat64("maps.nodeDensity"),
	}
}

// GetDisplayConfig returns the display settings. An output path forces file mode.
func GetDisplayConfig() DisplayConfig {
	cfg := DisplayConfig{
		Mode:   viper.GetString("display.mode"),
		Output: viper.GetString("display.output"),
	}
	if cfg.Output != "" {
		cfg.Mode = "file"
	}
	return cfg
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetCatalogConfig returns the run catalog settings.
func GetCatalogConfig() CatalogConfig {
	return CatalogConfig{
		Enabled: viper.GetBool("catalog.enabled"),
		Driver:  viper.GetString("catalog.driver"),
		Path:    viper.GetString("catalog.path"),
	}
}

// GetInfluxConfig returns the run metrics settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		URL:        viper.GetString("influx.url"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetPublishConfig returns the live publisher settings.
func GetPublishConfig() PublishConfig {
	return PublishConfig{
		Enabled: viper.GetBool("publish.enabled"),
		URL:     viper.GetString("publish.url"),
		Secret:  viper.GetString("publish.secret"),
	}
}

// GetSnapshotConfig returns the object store upload settings.
func GetSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		Enabled:   viper.GetBool("snapshot.enabled"),
		Endpoint:  viper.GetString("snapshot.endpoint"),
		AccessKey: viper.GetString("snapshot.accessKey"),
		SecretKey: viper.GetString("snapshot.secretKey"),
		Bucket:    viper.GetString("snapshot.bucket"),
		UseSSL:    viper.GetBool("snapshot.useSSL"),
		Prefix:    viper.GetString("snapshot.prefix"),
	}
}

// GetPrometheusConfig returns the Pushgateway settings.
func GetPrometheusConfig() PrometheusConfig {
	return PrometheusConfig{
		Enabled: viper.GetBool("prometheus.enabled"),
		PushURL: viper.GetString("prometheus.pushURL"),
		Job:     viper.GetString("prometheus.job"),
	}
}

// GetExportConfig returns the GeoJSON export settings.
func GetExportConfig() ExportConfig {
	return ExportConfig{
		GeoJSONPath: viper.GetString("export.geojson"),
		OriginLat:   viper.GetFloat64("export.originLat"),
		OriginLon:   viper.GetFloat64("export.originLon"),
	}
}

// PostgresDSN builds the catalog DSN from the db.* keys.
func PostgresDSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		viper.GetString("db.host"),
		viper.GetString("db.port"),
		viper.GetString("db.username"),
		viper.GetString("db.password"),
		viper.GetString("db.database"),
	)
}
