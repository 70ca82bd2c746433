package health

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"tempmail/disposable/internal/storage"
)

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	store  storage.SessionRepository
	logger *zap.Logger
}

// Options 额外的就绪检查
type Options struct {
	// ProviderURL 提供商接口地址，非空时检查其主机名能否解析
	ProviderURL string
	// MaxGoroutines 存活检查的协程数上限，默认 1000
	MaxGoroutines int
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(store storage.SessionRepository, logger *zap.Logger, opts Options) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		store:  store,
		logger: logger,
	}

	hc.addChecks(opts)

	return hc
}

// addChecks 注册存活与就绪检查
func (hc *HealthChecker) addChecks(opts Options) {
	maxGoroutines := opts.MaxGoroutines
	if maxGoroutines <= 0 {
		maxGoroutines = 1000
	}
	hc.health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(maxGoroutines))

	hc.health.AddReadinessCheck("store", healthcheck.Timeout(func() error {
		if err := hc.store.Health(); err != nil {
			hc.logger.Warn("store health check failed", zap.Error(err))
			return err
		}
		return nil
	}, 3*time.Second))

	if host := providerHost(opts.ProviderURL); host != "" {
		hc.health.AddReadinessCheck("provider-dns", healthcheck.DNSResolveCheck(host, 2*time.Second))
	}
}

// Handler 返回健康检查处理器（/live 与 /ready）
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// LiveEndpoint 存活检查
func (hc *HealthChecker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪检查
func (hc *HealthChecker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.ReadyEndpoint(w, r)
}

// CheckHealth 执行一次检查并返回各项结果
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string)

	if err := hc.store.Health(); err != nil {
		results["store"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["store"] = "OK"
	}

	results["timestamp"] = time.Now().Format(time.RFC3339)
	return results
}

func providerHost(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
