// Package common configuration loading for Titan-AAS. It supports YAML
// configuration files with environment variable overrides, CORS setup and
// PostgreSQL connections with pooling.
package common

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
)

// PrintSplash displays the Titan-AAS ASCII banner during startup.
func PrintSplash() {
	log.Printf(`
	████████╗██╗████████╗ █████╗ ███╗   ██╗      █████╗  █████╗ ███████╗
	╚══██╔══╝██║╚══██╔══╝██╔══██╗████╗  ██║     ██╔══██╗██╔══██╗██╔════╝
	   ██║   ██║   ██║   ███████║██╔██╗ ██║_____███████║███████║███████╗
	   ██║   ██║   ██║   ██╔══██║██║╚██╗██║     ██╔══██║██╔══██║╚════██║
	   ██║   ██║   ██║   ██║  ██║██║ ╚████║     ██║  ██║██║  ██║███████║
	   ╚═╝   ╚═╝   ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═══╝     ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝
	`)
}

// Config is the complete configuration of a Titan-AAS instance.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" json:"server"`
	Postgres   PostgresConfig   `mapstructure:"postgres" json:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis" json:"redis"`
	Events     EventsConfig     `mapstructure:"events" json:"events"`
	MQTT       MQTTConfig       `mapstructure:"mqtt" json:"mqtt"`
	Federation FederationConfig `mapstructure:"federation" json:"federation"`
	Jobs       JobsConfig       `mapstructure:"jobs" json:"jobs"`
	Fieldbus   FieldbusConfig   `mapstructure:"fieldbus" json:"fieldbus"`
	AASX       AASXConfig       `mapstructure:"aasx" json:"aasx"`
	CorsConfig CorsConfig       `mapstructure:"cors" json:"cors"`
}

// ServerConfig contains the HTTP server settings.
type ServerConfig struct {
	Port        int    `mapstructure:"port" json:"port"`
	ContextPath string `mapstructure:"contextPath" json:"contextPath"`
	ExternalURL string `mapstructure:"externalUrl" json:"externalUrl"` // advertised in descriptors and to peers
}

// PostgresConfig contains the PostgreSQL connection parameters.
type PostgresConfig struct {
	Host                   string `mapstructure:"host" json:"host"`
	Port                   int    `mapstructure:"port" json:"port"`
	User                   string `mapstructure:"user" json:"user"`
	Password               string `mapstructure:"password" json:"password"`
	DBName                 string `mapstructure:"dbname" json:"dbname"`
	MaxOpenConnections     int    `mapstructure:"maxOpenConnections" json:"maxOpenConnections"`
	MaxIdleConnections     int    `mapstructure:"maxIdleConnections" json:"maxIdleConnections"`
	ConnMaxLifetimeMinutes int    `mapstructure:"connMaxLifetimeMinutes" json:"connMaxLifetimeMinutes"`
}

// DSN assembles the lib/pq connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", p.User, p.Password, p.Host, p.Port, p.DBName)
}

// RedisConfig contains the Redis connection and cache settings.
type RedisConfig struct {
	Addr            string `mapstructure:"addr" json:"addr"`
	Password        string `mapstructure:"password" json:"password"`
	DB              int    `mapstructure:"db" json:"db"`
	CacheTTLSeconds int    `mapstructure:"cacheTtlSeconds" json:"cacheTtlSeconds"`
	ElemTTLSeconds  int    `mapstructure:"elemTtlSeconds" json:"elemTtlSeconds"`
}

// EventsConfig selects and parameterizes the event bus.
type EventsConfig struct {
	Bus           string `mapstructure:"bus" json:"bus"` // "memory" or "redisStreams"
	ConsumerGroup string `mapstructure:"consumerGroup" json:"consumerGroup"`
	ConsumerID    string `mapstructure:"consumerId" json:"consumerId"`
}

// MQTTReconnectConfig parameterizes the publisher backoff.
type MQTTReconnectConfig struct {
	InitialMs   int     `mapstructure:"initialMs" json:"initialMs"`
	MaxMs       int     `mapstructure:"maxMs" json:"maxMs"`
	Multiplier  float64 `mapstructure:"multiplier" json:"multiplier"`
	MaxAttempts int     `mapstructure:"maxAttempts" json:"maxAttempts"`
}

// MQTTConfig contains the broker bridge settings.
type MQTTConfig struct {
	Enabled          bool                `mapstructure:"enabled" json:"enabled"`
	Broker           string              `mapstructure:"broker" json:"broker"`
	Port             int                 `mapstructure:"port" json:"port"`
	UseTLS           bool                `mapstructure:"useTls" json:"useTls"`
	Username         string              `mapstructure:"username" json:"username"`
	Password         string              `mapstructure:"password" json:"password"`
	ClientIDPrefix   string              `mapstructure:"clientIdPrefix" json:"clientIdPrefix"`
	DefaultQoS       int                 `mapstructure:"defaultQos" json:"defaultQos"`
	RetainEvents     bool                `mapstructure:"retainEvents" json:"retainEvents"`
	Reconnect        MQTTReconnectConfig `mapstructure:"reconnect" json:"reconnect"`
	SubscribeEnabled bool                `mapstructure:"subscribeEnabled" json:"subscribeEnabled"`
	SubscribeTopics  []string            `mapstructure:"subscribeTopics" json:"subscribeTopics"`
}

// FederationConfig parameterizes the peer sync loop.
type FederationConfig struct {
	Enabled             bool   `mapstructure:"enabled" json:"enabled"`
	Mode                string `mapstructure:"mode" json:"mode"`         // pull, push, bidirectional
	Topology            string `mapstructure:"topology" json:"topology"` // mesh, hubSpoke
	HubPeerID           string `mapstructure:"hubPeerId" json:"hubPeerId"`
	DeltaSyncEnabled    bool   `mapstructure:"deltaSyncEnabled" json:"deltaSyncEnabled"`
	SyncIntervalSeconds int    `mapstructure:"syncIntervalSeconds" json:"syncIntervalSeconds"`
}

// JobsConfig parameterizes the Redis job queue.
type JobsConfig struct {
	JobTTLSeconds    int `mapstructure:"jobTtlSeconds" json:"jobTtlSeconds"`
	ResultTTLSeconds int `mapstructure:"resultTtlSeconds" json:"resultTtlSeconds"`
	MaxRetries       int `mapstructure:"maxRetries" json:"maxRetries"`
	ClaimTimeoutMs   int `mapstructure:"claimTimeoutMs" json:"claimTimeoutMs"`
}

// FieldbusMapping binds one field node or register to one element value.
type FieldbusMapping struct {
	SubmodelID     string  `mapstructure:"submodelId" json:"submodelId"`
	IDShortPath    string  `mapstructure:"idShortPath" json:"idShortPath"`
	NodeOrRegister string  `mapstructure:"nodeOrRegister" json:"nodeOrRegister"`
	DataType       string  `mapstructure:"dataType" json:"dataType"`
	ScaleFactor    float64 `mapstructure:"scaleFactor" json:"scaleFactor"`
	Offset         float64 `mapstructure:"offset" json:"offset"`
	Direction      string  `mapstructure:"direction" json:"direction"` // read, write, both
	IntervalMs     int     `mapstructure:"intervalMs" json:"intervalMs"`
	DebounceCount  int     `mapstructure:"debounceCount" json:"debounceCount"`
}

// FieldbusConfig holds the field-protocol poller mappings.
type FieldbusConfig struct {
	Enabled  bool              `mapstructure:"enabled" json:"enabled"`
	Mappings []FieldbusMapping `mapstructure:"mappings" json:"mappings"`
}

// AASXConfig selects the blob backend for package files and externalized
// Blob/File values.
type AASXConfig struct {
	BlobBackend string `mapstructure:"blobBackend" json:"blobBackend"` // "local" or "s3"
	LocalDir    string `mapstructure:"localDir" json:"localDir"`
	S3Bucket    string `mapstructure:"s3Bucket" json:"s3Bucket"`
	S3Region    string `mapstructure:"s3Region" json:"s3Region"`
}

// CorsConfig contains the CORS policy.
type CorsConfig struct {
	AllowedOrigins   []string `mapstructure:"allowedOrigins" json:"allowedOrigins"`
	AllowedMethods   []string `mapstructure:"allowedMethods" json:"allowedMethods"`
	AllowedHeaders   []string `mapstructure:"allowedHeaders" json:"allowedHeaders"`
	AllowCredentials bool     `mapstructure:"allowCredentials" json:"allowCredentials"`
}

// LoadConfig loads the configuration from an optional YAML file and the
// environment. Precedence: environment variables, then file, then defaults.
// Environment keys use underscore notation (SERVER_PORT for server.port).
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		log.Printf("📁 Loading config from file: %s", configPath)
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		log.Println("📁 No config file provided — loading from environment variables only")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	log.Println("✅ Configuration loaded successfully")
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5004)
	v.SetDefault("server.contextPath", "")
	v.SetDefault("server.externalUrl", "http://localhost:5004")

	v.SetDefault("postgres.host", "db")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "admin")
	v.SetDefault("postgres.password", "admin123")
	v.SetDefault("postgres.dbname", "titanTestDB")
	v.SetDefault("postgres.maxOpenConnections", 50)
	v.SetDefault("postgres.maxIdleConnections", 50)
	v.SetDefault("postgres.connMaxLifetimeMinutes", 5)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cacheTtlSeconds", 300)
	v.SetDefault("redis.elemTtlSeconds", 60)

	v.SetDefault("events.bus", "memory")
	v.SetDefault("events.consumerGroup", "titan-workers")
	v.SetDefault("events.consumerId", "")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.useTls", false)
	v.SetDefault("mqtt.clientIdPrefix", "titan-aas")
	v.SetDefault("mqtt.defaultQos", 0)
	v.SetDefault("mqtt.retainEvents", false)
	v.SetDefault("mqtt.reconnect.initialMs", 500)
	v.SetDefault("mqtt.reconnect.maxMs", 30000)
	v.SetDefault("mqtt.reconnect.multiplier", 2.0)
	v.SetDefault("mqtt.reconnect.maxAttempts", 10)
	v.SetDefault("mqtt.subscribeEnabled", false)
	v.SetDefault("mqtt.subscribeTopics", []string{"titan/element/+/+/value"})

	v.SetDefault("federation.enabled", false)
	v.SetDefault("federation.mode", "bidirectional")
	v.SetDefault("federation.topology", "mesh")
	v.SetDefault("federation.hubPeerId", "")
	v.SetDefault("federation.deltaSyncEnabled", true)
	v.SetDefault("federation.syncIntervalSeconds", 60)

	v.SetDefault("jobs.jobTtlSeconds", 86400)
	v.SetDefault("jobs.resultTtlSeconds", 3600)
	v.SetDefault("jobs.maxRetries", 3)
	v.SetDefault("jobs.claimTimeoutMs", 5000)

	v.SetDefault("fieldbus.enabled", false)

	v.SetDefault("aasx.blobBackend", "local")
	v.SetDefault("aasx.localDir", "data/packages")

	v.SetDefault("cors.allowedOrigins", []string{"*"})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"*"})
	v.SetDefault("cors.allowCredentials", true)
}

// PrintConfiguration prints the configuration with credentials redacted.
func PrintConfiguration(cfg *Config) {
	cfgCopy := *cfg

	if cfg.Postgres.Host != "" {
		cfgCopy.Postgres.Host = "****"
		cfgCopy.Postgres.User = "****"
		cfgCopy.Postgres.Password = "****"
	}
	if cfg.Redis.Password != "" {
		cfgCopy.Redis.Password = "****"
	}
	if cfg.MQTT.Password != "" {
		cfgCopy.MQTT.Password = "****"
	}

	configJSON, err := json.MarshalIndent(cfgCopy, "", "  ")
	if err != nil {
		log.Printf("Unable to marshal configuration to JSON: %v", err)
		return
	}

	log.Printf("📜 Loaded configuration:\n%s", string(configJSON))
}

// AddCors installs the CORS middleware on the router.
func AddCors(r *chi.Mux, config *Config) {
	c := cors.New(cors.Options{
		AllowedOrigins:   config.CorsConfig.AllowedOrigins,
		AllowedMethods:   config.CorsConfig.AllowedMethods,
		AllowedHeaders:   config.CorsConfig.AllowedHeaders,
		AllowCredentials: config.CorsConfig.AllowCredentials,
	})
	r.Use(c.Handler)
}
