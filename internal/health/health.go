package health

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"mailvault/exporter/internal/storage"
)

const pingTimeout = 5 * time.Second

var errNotReady = errors.New("export not started")

// HealthChecker 导出运行期间的健康检查
type HealthChecker struct {
	health healthcheck.Handler
	logger *zap.Logger
	ready  atomic.Bool
}

// NewHealthChecker 创建健康检查器；db 为 nil 时使用归档自身的 Health
func NewHealthChecker(archive storage.Archive, db *sql.DB, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}

	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		logger: logger,
	}

	// 归档连接检查
	if db != nil {
		hc.health.AddReadinessCheck("archive", DatabaseHealthCheck(db))
	} else {
		hc.health.AddReadinessCheck("archive", func() error {
			return archive.Health()
		})
	}

	hc.health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(10000))
	hc.health.AddReadinessCheck("export", func() error {
		if !hc.ready.Load() {
			return errNotReady
		}
		return nil
	})

	return hc
}

// SetReady 标记导出已开始处理
func (hc *HealthChecker) SetReady(ready bool) {
	hc.ready.Store(ready)
	hc.logger.Debug("readiness changed", zap.Bool("ready", ready))
}

// Handler 返回健康检查处理器（/live 与 /ready）
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// DatabaseHealthCheck 数据库健康检查
func DatabaseHealthCheck(db *sql.DB) healthcheck.Check {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()

		return db.PingContext(ctx)
	}
}
