package sql

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqliteMigrations SQLite 使用内嵌 DDL，按版本顺序执行
var sqliteMigrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
			CREATE TABLE IF NOT EXISTS mailbox_sessions (
				id                 TEXT PRIMARY KEY,
				address            TEXT NOT NULL UNIQUE,
				provider           TEXT NOT NULL,
				alias              TEXT NOT NULL DEFAULT '',
				token              TEXT NOT NULL,
				provider_timestamp INTEGER NOT NULL DEFAULT 0,
				created_at         INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_mailbox_sessions_created_at ON mailbox_sessions (created_at);
			INSERT INTO schema_version (version) VALUES (1);
		`,
	},
}

// Migrate 建立表结构与 created_at 索引
//
// PostgreSQL 与 MySQL 使用 GORM AutoMigrate，SQLite 使用内嵌 DDL。
func (s *Store) Migrate() error {
	switch s.driverName {
	case "sqlite":
		return s.migrateSQLite()
	case "postgres", "mysql":
		return s.migrateGORM()
	}
	return fmt.Errorf("unsupported database driver: %s", s.driverName)
}

func (s *Store) migrateSQLite() error {
	current := 0

	var tableCount int
	err := s.db.Get(&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		if err := s.db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range sqliteMigrations {
		if m.version <= current {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

func (s *Store) migrateGORM() error {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var dialector gorm.Dialector
	if s.driverName == "mysql" {
		dialector = gormmysql.New(gormmysql.Config{Conn: s.db.DB})
	} else {
		dialector = gormpostgres.New(gormpostgres.Config{Conn: s.db.DB})
	}

	gormDB, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize GORM: %w", err)
	}

	return gormDB.AutoMigrate(&sessionRecord{})
}

// isUniqueViolation 识别各驱动的唯一约束冲突
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	return false
}
