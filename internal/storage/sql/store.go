package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver (pgx)
	_ "github.com/lib/pq"              // PostgreSQL driver
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mailvault/exporter/internal/domain"
	"mailvault/exporter/internal/storage"
)

// 支持的驱动
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverMySQL    = "mysql"
)

var _ storage.Archive = (*Store)(nil)

// Options 归档连接参数
type Options struct {
	Driver          string
	DSN             string
	Key             string // SQLite 加密密钥（需要 SQLCipher 构建）
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Logger          *zap.Logger
}

// Store SQL 归档只读实现（支持 SQLite、PostgreSQL 和 MySQL 5.7+）
type Store struct {
	db     *sql.DB
	gormDB *gorm.DB
	driver string
	logger *zap.Logger
}

// NewStore 按驱动打开归档
func NewStore(opts Options) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))

	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(opts.DSN)
	case DriverPostgres, DriverPgx, DriverMySQL:
		db, err := sql.Open(driver, opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if driver == DriverMySQL {
			dialector = mysql.New(mysql.Config{Conn: db})
		} else {
			dialector = postgres.New(postgres.Config{Conn: db})
		}
	default:
		return nil, fmt.Errorf("%w: %s (supported: sqlite, postgres, pgx, mysql)", storage.ErrUnsupportedDriver, opts.Driver)
	}

	opts.Driver = driver
	return NewStoreWithDialector(dialector, opts)
}

// NewStoreWithDialector 使用指定的 GORM dialector 创建归档
func NewStoreWithDialector(dialector gorm.Dialector, opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	configurePool(db, opts)

	store := &Store{
		db:     db,
		gormDB: gormDB,
		driver: opts.Driver,
		logger: log,
	}

	if opts.Key != "" {
		if err := store.applyKey(opts.Key); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("archive opened", zap.String("driver", opts.Driver))
	return store, nil
}

// configurePool 设置连接池参数；SQLite 内存库和加密库只能使用单个连接
func configurePool(db *sql.DB, opts Options) {
	maxOpen := opts.MaxOpenConns
	if opts.Driver == DriverSQLite && (opts.Key != "" || isMemoryDSN(opts.DSN)) {
		maxOpen = 1
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
}

func isMemoryDSN(dsn string) bool {
	return dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// applyKey 对 SQLCipher 数据库设置密钥
func (s *Store) applyKey(key string) error {
	if s.driver != DriverSQLite {
		return fmt.Errorf("database key is only supported for sqlite, got %s", s.driver)
	}
	escaped := strings.ReplaceAll(key, "'", "''")
	if err := s.gormDB.Exec("PRAGMA key = '" + escaped + "'").Error; err != nil {
		return fmt.Errorf("failed to apply database key: %w", err)
	}
	return nil
}

// DB 返回底层连接，用于健康检查
func (s *Store) DB() *sql.DB { return s.db }

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	if s.db == nil {
		return errors.New("database connection is nil")
	}
	return s.db.Ping()
}

// ListMailboxes 返回所有邮箱
func (s *Store) ListMailboxes(ctx context.Context) ([]domain.Mailbox, error) {
	var mailboxes []domain.Mailbox
	if err := s.gormDB.WithContext(ctx).Order("id ASC").Find(&mailboxes).Error; err != nil {
		return nil, fmt.Errorf("failed to list mailboxes: %w", err)
	}
	return mailboxes, nil
}

// ListAttachments 返回所有附件记录
func (s *Store) ListAttachments(ctx context.Context) ([]domain.AttachmentRecord, error) {
	var records []domain.AttachmentRecord
	if err := s.gormDB.WithContext(ctx).Order("id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return records, nil
}

// EachMessage 按 seq 升序逐行读取邮件，避免一次性加载全部邮件树
func (s *Store) EachMessage(ctx context.Context, fn storage.MessageFunc) error {
	rows, err := s.gormDB.WithContext(ctx).
		Model(&domain.Message{}).
		Order("seq ASC").
		Order("id ASC").
		Rows()
	if err != nil {
		return fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg domain.Message
		if err := s.gormDB.ScanRows(rows, &msg); err != nil {
			return fmt.Errorf("failed to scan message: %w", err)
		}
		if err := fn(msg); err != nil {
			if errors.Is(err, storage.ErrStopIteration) {
				return nil
			}
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate messages: %w", err)
	}
	return nil
}
