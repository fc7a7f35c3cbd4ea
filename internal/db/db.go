package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/reedfamily/chatlog/internal/config"
)

type Dialect string

const (
	SQLite Dialect = "sqlite"
	MySQL  Dialect = "mysql"
)

// sqliteDriver is go-sqlite3 with fold(), a lowercase function using Go's
// Unicode case tables. The built-in LOWER only folds ASCII.
const sqliteDriver = "sqlite3_chatlog"

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", strings.ToLower, true)
		},
	})
}

// Lower wraps a column expression so that it compares like strings.ToLower
// of the bound argument.
func (d Dialect) Lower(expr string) string {
	if d == SQLite {
		return "fold(" + expr + ")"
	}
	return "LOWER(" + expr + ")"
}

// DialectOf maps the configured database type to the SQL dialect it speaks.
// MariaDB uses the MySQL driver and DDL.
func DialectOf(dbType string) Dialect {
	switch dbType {
	case "mysql", "mariadb":
		return MySQL
	default:
		return SQLite
	}
}

// Open connects to the configured store and sizes its connection pool.
func Open(cfg config.Database) (*sql.DB, Dialect, error) {
	dialect := DialectOf(cfg.Type)
	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case MySQL:
		db, err = openMySQL(cfg)
	default:
		db, err = openSQLite(cfg.Path)
	}
	if err != nil {
		return nil, dialect, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout(cfg.Pool))
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, dialect, fmt.Errorf("ping db: %w", err)
	}
	return db, dialect, nil
}

func connectTimeout(p config.Pool) time.Duration {
	if p.ConnectionTimeout <= 0 {
		return 30 * time.Second
	}
	return p.ConnectionTimeout
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriver, path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func mysqlConfig(cfg config.Database, withDB bool) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	if withDB {
		mc.DBName = cfg.Name
	}
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Timeout = cfg.Pool.ConnectionTimeout
	mc.Params = map[string]string{"charset": "utf8mb4"}
	if cfg.SSL {
		mc.TLSConfig = "true"
	} else {
		mc.TLSConfig = "false"
	}
	return mc
}

func openMySQL(cfg config.Database) (*sql.DB, error) {
	if err := ensureDatabase(cfg); err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", mysqlConfig(cfg, true).FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(cfg.Pool.MaximumPoolSize)
	db.SetMaxIdleConns(max(cfg.Pool.MinimumIdle, 1))
	db.SetConnMaxIdleTime(cfg.Pool.IdleTimeout)
	db.SetConnMaxLifetime(cfg.Pool.MaxLifetime)
	return db, nil
}

// ensureDatabase creates the schema on the server if it does not exist yet.
func ensureDatabase(cfg config.Database) error {
	db, err := sql.Open("mysql", mysqlConfig(cfg, false).FormatDSN())
	if err != nil {
		return fmt.Errorf("open server: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout(cfg.Pool))
	defer cancel()
	q := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", cfg.Name)
	if _, err := db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create database %s: %w", cfg.Name, err)
	}
	return nil
}

// Schema reports which optional parts of the schema are usable.
type Schema struct {
	EnrichedView bool
}

// Migrate creates the required tables and the optional session view.
// Failing to create a table is fatal. Failing to create the view only
// disables the queries that read from it.
func Migrate(db *sql.DB, dialect Dialect, log *slog.Logger) (Schema, error) {
	tables, view := sqliteTables, sqliteView
	if dialect == MySQL {
		tables, view = mysqlTables, mysqlView
	}
	for _, m := range tables {
		if _, err := db.Exec(m); err != nil {
			return Schema{}, fmt.Errorf("migration error: %w\nSQL: %s", err, m)
		}
	}
	for _, m := range view {
		if _, err := db.Exec(m); err != nil {
			log.Warn("could not create enriched chat view", "error", err)
			return Schema{}, nil
		}
	}
	return Schema{EnrichedView: true}, nil
}
