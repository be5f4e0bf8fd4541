package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketplace-api/internal/core/auth"
	"marketplace-api/internal/core/cache"
	"marketplace-api/internal/core/config"
	"marketplace-api/internal/core/database"
	"marketplace-api/internal/core/logger"
	"marketplace-api/internal/core/storage"
	"marketplace-api/internal/domain"
	"marketplace-api/internal/repo"
	"marketplace-api/internal/service"
	"marketplace-api/internal/transport/http/handler"
	"marketplace-api/internal/transport/http/router"
)

// App 两个进程共用的装配结果
type App struct {
	Users    *service.UserService
	Stores   *service.StoreService
	Products *service.ProductService
	Orders   *service.OrderService
	Registry *router.Registry
	Deps     router.Deps

	closers []func()
}

type repos struct {
	users    domain.UserRepository
	stores   domain.StoreRepository
	products domain.ProductRepository
	orders   domain.OrderRepository
}

// NewLogger 按配置决定是否写文件切割
func NewLogger(service string, c config.Log) (*zap.Logger, func()) {
	return logger.New(logger.Options{
		Service: service,
		Level:   c.Level,
		JSON:    c.JSON,
		Rotate: logger.FileRotate{
			Enable:     c.File.Enable,
			Filename:   c.File.Path,
			MaxSizeMB:  c.File.MaxSizeMB,
			MaxBackups: c.File.MaxBackups,
			MaxAgeDays: c.File.MaxAgeDays,
			Compress:   c.File.Compress,
		},
	})
}

// Build 按配置装配 repo / 会话 / 缓存 / 存储 / 服务 / 路由模块。
// ctx 控制后台任务（内存会话清理）的生命周期。
func Build(ctx context.Context, cfg *config.Config, l *zap.Logger) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	rs, err := a.openRepos(cfg, l)
	if err != nil {
		return nil, err
	}

	// redis：会话或缓存任一需要时才连接
	var rdb *redis.Client
	if cfg.Session.Driver == "redis" || cfg.DB.Driver != "memory" {
		cli := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.closers = append(a.closers, func() { _ = cli.Close() })
		rdb = cli
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		perr := rdb.Ping(pctx).Err()
		cancel()
		if perr != nil {
			if cfg.Session.Driver == "redis" {
				return nil, fmt.Errorf("redis ping: %w", perr)
			}
			l.Warn("redis unavailable, cache disabled", zap.Error(perr))
			rdb = nil
		}
	}

	sessionTTL := time.Duration(cfg.Session.TTLHours) * time.Hour
	var sessions auth.SessionStore
	if cfg.Session.Driver == "redis" {
		sessions = auth.NewRedisSessionStore(rdb, sessionTTL)
	} else {
		ms := auth.NewMemorySessionStore(sessionTTL)
		go ms.RunSweeper(ctx, time.Duration(cfg.Session.SweepMin)*time.Minute)
		sessions = ms
	}

	var c *cache.Cache
	if rdb != nil {
		c = cache.NewWithClient(rdb)
	}

	files, uploadsDir, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	jwter := auth.NewJWTer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL())
	jwter.Leeway = time.Duration(cfg.JWT.LeewaySec) * time.Second

	listTTL := time.Duration(cfg.Cache.StoreListTTLSec) * time.Second
	a.Users = service.NewUserService(rs.users, l)
	a.Stores = service.NewStoreService(rs.stores, rs.products, files, c, listTTL, l)
	a.Products = service.NewProductService(rs.products, a.Stores, l)
	a.Orders = service.NewOrderService(rs.orders, rs.products, rs.stores, rs.users, l)

	a.Deps = router.Deps{
		Log:        l,
		Mode:       ginMode(cfg.App),
		Sessions:   sessions,
		JWT:        jwter,
		Users:      rs.users,
		CookieName: cfg.Session.Cookie,
		Limits:     cfg.Limits,
		CORS:       cfg.CORS.Origins,
	}
	if uploadsDir != "" {
		a.Deps.UploadsDir, a.Deps.UploadsPath = uploadsDir, cfg.Storage.PublicBase
	}

	cookie := handler.SessionCookie{Name: cfg.Session.Cookie, TTL: sessionTTL, Secure: cfg.App.Production()}
	a.Registry = router.NewRegistry(
		handler.NewAuthHandler(a.Users, sessions, jwter, cookie, a.Deps.AuthLimiter(), l),
		handler.NewStoreHandler(a.Stores, l),
		handler.NewProductHandler(a.Products, l),
		handler.NewOrderHandler(a.Orders, l),
		handler.NewAdminHandler(a.Users, a.Stores, a.Orders, l),
	)
	ok = true
	return a, nil
}

func (a *App) openRepos(cfg *config.Config, l *zap.Logger) (repos, error) {
	if cfg.DB.Driver == "memory" {
		m := repo.NewMemory()
		l.Warn("using in-memory repositories, data is not persisted")
		return repos{users: m.Users(), stores: m.Stores(), products: m.Products(), orders: m.Orders()}, nil
	}

	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Log:                l,
	})
	if err != nil {
		return repos{}, fmt.Errorf("db open: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, func() { _ = sqlDB.Close() })
	}
	l.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := repo.AutoMigrate(db); err != nil {
			return repos{}, fmt.Errorf("automigrate: %w", err)
		}
		l.Info("automigrate done")
	}
	return repos{
		users:    repo.NewUserRepo(db),
		stores:   repo.NewStoreRepo(db),
		products: repo.NewProductRepo(db),
		orders:   repo.NewOrderRepo(db),
	}, nil
}

// openStorage 返回对象存储；本地存储时同时返回需要静态暴露的目录
func openStorage(ctx context.Context, c config.Storage) (storage.ObjectStore, string, error) {
	if c.Driver == "minio" {
		ms, err := storage.NewMinioStore(ctx, storage.MinioOpts{
			Endpoint:  c.Minio.Endpoint,
			AccessKey: c.Minio.AccessKey,
			SecretKey: c.Minio.SecretKey,
			Bucket:    c.Minio.Bucket,
			UseSSL:    c.Minio.UseSSL,
			PublicURL: c.Minio.PublicURL,
		})
		if err != nil {
			return nil, "", err
		}
		return ms, "", nil
	}
	fs, err := storage.NewFileStore(c.LocalDir, c.PublicBase)
	if err != nil {
		return nil, "", err
	}
	return fs, c.LocalDir, nil
}

func ginMode(a config.App) string {
	if a.Production() {
		return gin.ReleaseMode
	}
	return gin.DebugMode
}

// Close 逆序释放资源
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
