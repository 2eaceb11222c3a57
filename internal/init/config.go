package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Run modes selected by MODE.
const (
	ModeServer  = "server"
	ModeWorker  = "worker"
	ModeSeed    = "seed"
	ModeMigrate = "migrate"
)

type Config struct {
	// App mode & server
	Mode       string
	LogLevel   string
	ServerAddr string
	TLSCert    string
	TLSKey     string
	MediaRoot  string
	SeedFile   string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Database
	DBDriver string
	DBDSN    string

	// Home page cache
	CacheBackend string
	CacheTTL     time.Duration

	// Kafka
	KafkaEnabled   bool
	KafkaBroker    string
	KafkaTopic     string
	KafkaGroupID   string
	KafkaPartition int
	KafkaReadTO    time.Duration
	KafkaWriteTO   time.Duration

	// Cassandra (cache backend)
	CassandraHost     string
	CassandraKeyspace string
	CassandraUsername string
	CassandraPassword string
	CassandraTimeout  time.Duration
	CassandraDC       string
}

var cfg *Config

// Init loads the config using Viper and returns it
func Init() *Config {
	// .env is optional, real environment wins
	_ = godotenv.Load()

	viper.SetDefault("MODE", ModeServer)
	viper.SetDefault("LOG_LEVEL", "INFO")
	viper.SetDefault("SERVER_ADDR", ":8080")
	viper.SetDefault("MEDIA_ROOT", "media")
	viper.SetDefault("SEED_FILE", "groups.yaml")

	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("TOKEN_TTL", "24h")

	viper.SetDefault("DB_DRIVER", "sqlite3")
	viper.SetDefault("DB_DSN", "postfeed.sqlite3")

	viper.SetDefault("CACHE_BACKEND", "memory")
	viper.SetDefault("CACHE_TTL", "20s")

	viper.SetDefault("KAFKA_ENABLED", false)
	viper.SetDefault("KAFKA_BROKER", "localhost:29092")
	viper.SetDefault("KAFKA_TOPIC", "postfeed-events")
	viper.SetDefault("KAFKA_GROUP_ID", "activity-worker")
	viper.SetDefault("KAFKA_PARTITION", 0)
	viper.SetDefault("KAFKA_READ_TIMEOUT", "10s")
	viper.SetDefault("KAFKA_WRITE_TIMEOUT", "10s")

	viper.SetDefault("CASSANDRA_HOST", "localhost")
	viper.SetDefault("CASSANDRA_KEYSPACE", "postfeed")
	viper.SetDefault("CASSANDRA_TIMEOUT", "10s")
	// Optional: Cassandra username/password/DC can be empty

	// Load env variables
	viper.AutomaticEnv()

	// Optional config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	_ = viper.ReadInConfig() // ignore error if no file

	cfg = &Config{
		Mode:              viper.GetString("MODE"),
		LogLevel:          viper.GetString("LOG_LEVEL"),
		ServerAddr:        viper.GetString("SERVER_ADDR"),
		TLSCert:           viper.GetString("TLS_CERT"),
		TLSKey:            viper.GetString("TLS_KEY"),
		MediaRoot:         viper.GetString("MEDIA_ROOT"),
		SeedFile:          viper.GetString("SEED_FILE"),
		JWTSecret:         viper.GetString("JWT_SECRET"),
		TokenTTL:          parseDuration(viper.GetString("TOKEN_TTL"), 24*time.Hour),
		DBDriver:          viper.GetString("DB_DRIVER"),
		DBDSN:             viper.GetString("DB_DSN"),
		CacheBackend:      viper.GetString("CACHE_BACKEND"),
		CacheTTL:          parseDuration(viper.GetString("CACHE_TTL"), 20*time.Second),
		KafkaEnabled:      viper.GetBool("KAFKA_ENABLED"),
		KafkaBroker:       viper.GetString("KAFKA_BROKER"),
		KafkaTopic:        viper.GetString("KAFKA_TOPIC"),
		KafkaGroupID:      viper.GetString("KAFKA_GROUP_ID"),
		KafkaPartition:    viper.GetInt("KAFKA_PARTITION"),
		KafkaReadTO:       parseDuration(viper.GetString("KAFKA_READ_TIMEOUT"), 10*time.Second),
		KafkaWriteTO:      parseDuration(viper.GetString("KAFKA_WRITE_TIMEOUT"), 10*time.Second),
		CassandraHost:     viper.GetString("CASSANDRA_HOST"),
		CassandraKeyspace: viper.GetString("CASSANDRA_KEYSPACE"),
		CassandraUsername: viper.GetString("CASSANDRA_USERNAME"),
		CassandraPassword: viper.GetString("CASSANDRA_PASSWORD"),
		CassandraTimeout:  parseDuration(viper.GetString("CASSANDRA_TIMEOUT"), 10*time.Second),
		CassandraDC:       viper.GetString("CASSANDRA_DC"),
	}

	return cfg
}

// Validate reports settings the selected mode cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains([]string{ModeServer, ModeWorker, ModeSeed, ModeMigrate}, c.Mode) {
		errs = append(errs, fmt.Errorf("unknown MODE %q", c.Mode))
	}
	if !slices.Contains([]string{"sqlite3", "pgx"}, c.DBDriver) {
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.DBDSN == "" {
		errs = append(errs, errors.New("DB_DSN is empty"))
	}

	switch c.Mode {
	case ModeServer:
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET must be set in server mode"))
		}
		if (c.TLSCert == "") != (c.TLSKey == "") {
			errs = append(errs, errors.New("TLS_CERT and TLS_KEY must be set together"))
		}
		if !slices.Contains([]string{"memory", "cassandra"}, c.CacheBackend) {
			errs = append(errs, fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend))
		}
	case ModeWorker:
		if c.KafkaTopic == "" || c.KafkaGroupID == "" {
			errs = append(errs, errors.New("KAFKA_TOPIC and KAFKA_GROUP_ID are required in worker mode"))
		}
	case ModeSeed:
		if c.SeedFile == "" {
			errs = append(errs, errors.New("SEED_FILE is empty"))
		}
	}
	return errors.Join(errs...)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

// Get returns the loaded config instance
func Get() *Config {
	return cfg
}
