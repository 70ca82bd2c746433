package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tempmail/disposable/internal/cache"
	"tempmail/disposable/internal/health"
	"tempmail/disposable/internal/provider"
	"tempmail/disposable/internal/storage"
	httptransport "tempmail/disposable/internal/transport/http"
)

const (
	cleanupInterval  = 5 * time.Minute
	sessionCacheSize = 1024
	sessionCacheTTL  = time.Minute
)

// expiredSweeper 由可以主动清理过期会话的存储实现
type expiredSweeper interface {
	DeleteExpiredSessions(ctx context.Context) (int, error)
}

// memorySweeper 内存存储的清理接口
type memorySweeper interface {
	DeleteExpiredSessions() int
}

func (a *App) runServe(ctx context.Context, args []string) error {
	fs := a.flagSet("serve")
	host := fs.String("host", a.cfg.Server.Host, "Listen host")
	port := fs.Int("port", a.cfg.Server.Port, "Listen port")
	if err := a.parse(fs, args); err != nil {
		return err
	}

	store, err := a.session(ctx)
	if err != nil {
		return err
	}
	// 服务模式下会话解析走本地缓存，清理与健康检查仍直接访问底层存储
	a.store = cache.NewSessionCache(store, sessionCacheSize, sessionCacheTTL, a.cfg.Session.TTL)
	mailboxes, poller, err := a.services(ctx)
	if err != nil {
		return err
	}
	catalog, err := provider.LoadCatalog(a.cfg.Catalog.Path)
	if err != nil {
		return err
	}

	if a.cfg.Log.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         a.cfg,
		MailboxService: mailboxes,
		Poller:         poller,
		Providers:      a.providers,
		Catalog:        catalog,
		Health: health.NewHealthChecker(store, a.log, health.Options{
			ProviderURL: a.cfg.Provider.BaseURL,
		}),
		Metrics: a.metrics,
		Logger:  a.log,
	})

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// check 请求会阻塞到轮询结束
		WriteTimeout: poller.Config().Timeout() + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		a.log.Info("starting HTTP server", zap.String("address", addr))
		fmt.Fprintf(a.stderr, "listening on http://%s\n", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		a.cleanupLoop(groupCtx, store)
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		a.log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.log.Error("HTTP server shutdown error", zap.Error(err))
		}
		a.log.Info("server stopped")
		return nil
	})

	return group.Wait()
}

// cleanupLoop 定期清理过期会话，Redis 依赖键过期无需清理
func (a *App) cleanupLoop(ctx context.Context, store storage.SessionRepository) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := sweepExpired(ctx, store)
			if err != nil {
				a.log.Error("failed to cleanup expired sessions", zap.Error(err))
				continue
			}
			if count > 0 {
				a.metrics.RecordSessionsExpired(count)
				a.log.Info("expired sessions cleaned up", zap.Int("count", count))
			}
		}
	}
}

func sweepExpired(ctx context.Context, store storage.SessionRepository) (int, error) {
	switch s := store.(type) {
	case expiredSweeper:
		return s.DeleteExpiredSessions(ctx)
	case memorySweeper:
		return s.DeleteExpiredSessions(), nil
	}
	return 0, nil
}
