package cache

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"math"
	"time"

	config "example.com/postfeed/internal/init"
	"github.com/gocql/gocql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/cassandra"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/cassandra/*.cql
var migrationsFS embed.FS

// SessionInterface is the part of *gocql.Session the cache needs.
type SessionInterface interface {
	Query(stmt string, values ...interface{}) *gocql.Query
	Close()
}

// Cassandra keeps entries in the page_cache table and lets row TTLs expire them.
type Cassandra struct {
	Session SessionInterface
}

var _ Cache = (*Cassandra)(nil)

// NewCassandra ensures the keyspace and schema exist and opens a session.
func NewCassandra(cfg *config.Config) (*Cassandra, error) {
	if err := ensureKeyspace(cfg); err != nil {
		return nil, fmt.Errorf("failed to ensure keyspace: %w", err)
	}

	if err := runMigrations(cfg); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cluster := gocql.NewCluster(cfg.CassandraHost)
	cluster.Keyspace = cfg.CassandraKeyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = cfg.CassandraTimeout
	cluster.ConnectTimeout = cfg.CassandraTimeout

	if cfg.CassandraUsername != "" && cfg.CassandraPassword != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.CassandraUsername,
			Password: cfg.CassandraPassword,
		}
	}

	if cfg.CassandraDC != "" {
		cluster.HostFilter = gocql.DataCentreHostFilter(cfg.CassandraDC)
	}

	sess, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create Cassandra session: %w", err)
	}

	logg.Info("cache", "Connected to Cassandra page cache (host anonymized)")
	return &Cassandra{Session: sess}, nil
}

func ensureKeyspace(cfg *config.Config) error {
	cluster := gocql.NewCluster(cfg.CassandraHost)
	cluster.Keyspace = "system"
	cluster.Timeout = cfg.CassandraTimeout
	sess, err := cluster.CreateSession()
	if err != nil {
		return fmt.Errorf("failed to connect to Cassandra system keyspace: %w", err)
	}
	defer sess.Close()

	query := fmt.Sprintf(`
        CREATE KEYSPACE IF NOT EXISTS %s
        WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 1};
    `, cfg.CassandraKeyspace)

	if err := sess.Query(query).Exec(); err != nil {
		return fmt.Errorf("failed to create keyspace: %w", err)
	}

	logg.Info("cache", "Ensured Cassandra keyspace exists (keyspace name anonymized)")
	return nil
}

func runMigrations(cfg *config.Config) error {
	src, err := iofs.New(migrationsFS, "migrations/cassandra")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	dbURL := fmt.Sprintf(
		"cassandra://%s/%s?x-migrations-table=schema_migrations&x-multi-statement=true",
		cfg.CassandraHost, cfg.CassandraKeyspace,
	)

	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logg.Info("cache", "No new migrations to apply")
	} else {
		logg.Info("cache", "Migrations applied successfully")
	}
	return nil
}

func (c *Cassandra) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := c.Session.Query(`SELECT value FROM page_cache WHERE key = ?`, key).
		WithContext(ctx).
		Scan(&value)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		logg.Error("cache", "Failed to read cache entry", err)
		return nil, false, err
	}
	return value, true, nil
}

// Set writes the entry with a row TTL rounded up to whole seconds.
func (c *Cassandra) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	seconds := ttlSeconds(ttl)
	if seconds == 0 {
		return nil
	}
	err := c.Session.Query(`INSERT INTO page_cache (key, value) VALUES (?, ?) USING TTL ?`, key, value, seconds).
		WithContext(ctx).
		Exec()
	if err != nil {
		logg.Error("cache", "Failed to write cache entry", err)
	}
	return err
}

func (c *Cassandra) Clear(ctx context.Context) error {
	return c.Session.Query(`TRUNCATE page_cache`).WithContext(ctx).Exec()
}

// Close gracefully closes Cassandra session.
func (c *Cassandra) Close() {
	if c.Session != nil {
		c.Session.Close()
		logg.Info("cache", "Cassandra session closed")
	}
}

func ttlSeconds(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	return int(math.Ceil(ttl.Seconds()))
}
