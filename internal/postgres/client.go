package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/nutriplan/nutriplan/internal/config"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DialectPostgres is the gorm dialector name of a Postgres connection
const DialectPostgres = "postgres"

// Client owns the database handle shared by the repositories
type Client struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	logger *logger.Logger
}

// NewClient opens a lib/pq connection pool and wraps it in gorm
func NewClient(cfg *config.Configuration, log *logger.Logger) (*Client, error) {
	pg := cfg.Postgres
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		pg.Host, pg.Port, pg.User, pg.Password, pg.DBName, pg.SSLMode)

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to open database connection").
			Mark(ierr.ErrDatabase)
	}
	sqlDB.SetMaxOpenConns(pg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(pg.ConnMaxLifetimeMinutes) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, ierr.WithError(err).
			WithHint("Database is not reachable").
			WithReportableDetails(map[string]interface{}{"host": pg.Host, "dbname": pg.DBName}).
			Mark(ierr.ErrDatabase)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.New(log.GetGormLogger(), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, ierr.WithError(err).
			WithHint("Failed to initialise gorm").
			Mark(ierr.ErrDatabase)
	}

	log.Infow("connected to postgres", "host", pg.Host, "dbname", pg.DBName)

	return &Client{db: db, sqlDB: sqlDB, logger: log}, nil
}

// NewFromGorm wraps an already opened gorm handle, e.g. an in-memory sqlite database
func NewFromGorm(db *gorm.DB, log *logger.Logger) (*Client, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to access the underlying database handle").
			Mark(ierr.ErrDatabase)
	}
	return &Client{db: db, sqlDB: sqlDB, logger: log}, nil
}

// DB returns a session bound to ctx
func (c *Client) DB(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx)
}

// SQL returns the underlying connection pool
func (c *Client) SQL() *sql.DB {
	return c.sqlDB
}

// Dialect reports the gorm dialector name (postgres, sqlite)
func (c *Client) Dialect() string {
	return c.db.Dialector.Name()
}

func (c *Client) Close() error {
	return c.sqlDB.Close()
}
