package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	config "example.com/postfeed/internal/init"
	"example.com/postfeed/internal/logger"
	"example.com/postfeed/internal/models"
	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

var logg = logger.New()

//go:embed migrations
var migrationsFS embed.FS

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"

	instrumentationName = "example.com/postfeed/internal/store"
)

// --- Interfaces ---

type UserRepository interface {
	CreateUser(ctx context.Context, username, password string) (models.User, error)
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	Authenticate(ctx context.Context, username, password string) (models.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

type GroupRepository interface {
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroupByID(ctx context.Context, id int64) (models.Group, error)
	GetGroupBySlug(ctx context.Context, slug string) (models.Group, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	DeleteGroup(ctx context.Context, id int64) error
}

// PostFilter narrows a post listing. Zero fields are ignored.
type PostFilter struct {
	AuthorID   int64
	GroupID    int64
	FollowerID int64 // posts by authors this user follows
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	UpdatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, authorUsername string, id int64) (models.Post, error)
	CountPosts(ctx context.Context, filter PostFilter) (int, error)
	ListPosts(ctx context.Context, filter PostFilter, limit, offset int) ([]models.Post, error)
	DeletePost(ctx context.Context, id int64) error
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, postID int64) ([]models.Comment, error)
}

type FollowRepository interface {
	CreateFollow(ctx context.Context, userID, authorID int64) error
	FollowExists(ctx context.Context, userID, authorID int64) (bool, error)
	DeleteFollow(ctx context.Context, userID, authorID int64) error
	CountFollowers(ctx context.Context, authorID int64) (int, error)
	CountFollowing(ctx context.Context, userID int64) (int, error)
}

type AvatarRepository interface {
	GetAvatar(ctx context.Context, profileID int64) (models.Avatar, error)
	SaveAvatar(ctx context.Context, profileID int64, image string) (models.Avatar, error)
}

type ActivityRepository interface {
	RecordActivity(ctx context.Context, activity models.Activity) error
	ListActivity(ctx context.Context, limit int) ([]models.Activity, error)
}

type StoreInterface interface {
	UserRepository
	GroupRepository
	PostRepository
	CommentRepository
	FollowRepository
	AvatarRepository
	ActivityRepository
	Close()
}

// --- Store Implementation ---

type Store struct {
	db     *sqlx.DB
	driver string
	sb     sq.StatementBuilderType
	now    func() time.Time
	cost   int

	tracer        trace.Tracer
	queryCount    metric.Int64Counter
	queryDuration metric.Float64Histogram
	queryErrors   metric.Int64Counter
}

var _ StoreInterface = (*Store)(nil)

type Option func(*Store)

// WithTracer replaces the global tracer used for query spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Store) { s.tracer = t }
}

// WithMeter replaces the global meter used for query metrics.
func WithMeter(m metric.Meter) Option {
	return func(s *Store) { s.initMetrics(m) }
}

// WithClock overrides the timestamp source for pub_date/created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithPasswordCost sets the bcrypt cost for new password hashes.
func WithPasswordCost(cost int) Option {
	return func(s *Store) { s.cost = cost }
}

// New opens the database configured via the config package and applies migrations.
func New(opts ...Option) (StoreInterface, error) {
	cfg := config.Get()
	return Open(cfg.DBDriver, cfg.DBDSN, opts...)
}

// Open connects to the database, applies pending migrations and returns a ready Store.
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// one writer at a time, avoids "database is locked"
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{
		db:     db,
		driver: driver,
		sb:     statementBuilder(driver),
		now:    func() time.Time { return time.Now().UTC() },
		cost:   bcrypt.DefaultCost,
		tracer: otel.Tracer(instrumentationName),
	}
	s.initMetrics(otel.Meter(instrumentationName))
	for _, opt := range opts {
		opt(s)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logg.Info("store", "Connected to "+driver+" database")
	return s, nil
}

// statementBuilder picks the bind parameter style of the driver: $N for
// Postgres, ? otherwise.
func statementBuilder(driver string) sq.StatementBuilderType {
	var placeholder sq.PlaceholderFormat = sq.Question
	if driver == DriverPostgres {
		placeholder = sq.Dollar
	}
	return sq.StatementBuilder.PlaceholderFormat(placeholder)
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

// --- Migration runner ---

func (s *Store) runMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations/"+s.migrationsDir())
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	var drv database.Driver
	switch s.driver {
	case DriverSQLite:
		drv, err = migratesqlite.WithInstance(s.db.DB, &migratesqlite.Config{})
	case DriverPostgres:
		drv, err = migratepgx.WithInstance(s.db.DB, &migratepgx.Config{})
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// m.Close would close the shared *sql.DB, so the instance is left to the GC.
	m, err := migrate.NewWithInstance("iofs", src, s.driver, drv)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logg.Info("store", "No new migrations to apply")
	} else {
		logg.Info("store", "Migrations applied successfully")
	}
	return nil
}

func (s *Store) migrationsDir() string {
	if s.driver == DriverPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// transaction runs fn inside a database transaction, rolling back on error or panic.
func (s *Store) transaction(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Close gracefully closes the database handle.
func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
		logg.Info("store", "Database connection closed")
	}
}
