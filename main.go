package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"IMS-backend/docs"
	"IMS-backend/internal/accomplishment"
	"IMS-backend/internal/attendance"
	"IMS-backend/internal/callrelay"
	"IMS-backend/internal/chat"
	"IMS-backend/internal/dailylog"
	"IMS-backend/internal/endorsement"
	"IMS-backend/internal/export"
	"IMS-backend/internal/jobs"
	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/platform/config"
	"IMS-backend/internal/platform/db"
	"IMS-backend/internal/platform/files"
	"IMS-backend/internal/platform/logging"
	"IMS-backend/internal/platform/metrics"
	"IMS-backend/internal/platform/observability"
	"IMS-backend/internal/platform/session"
	"IMS-backend/internal/users"
	"IMS-backend/internal/web"
)

func main() {
	// 設定読み込み
	path := config.DefaultPath
	if v := os.Getenv("IMS_CONFIG"); v != "" {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(err)
	}

	lg, err := logging.Init(cfg.Log.Level, cfg.Mode)
	if err != nil {
		panic(err)
	}
	defer lg.Closer()
	log := lg.Base
	log.Info("starting", zap.String("mode", cfg.Mode), zap.String("version", cfg.Version))

	flush, err := observability.InitSentry(cfg.Sentry.DSN, cfg.Mode, cfg.App.Release)
	if err != nil {
		log.Warn("sentry disabled", zap.Error(err))
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		log.Fatal("connect db", zap.Error(err))
	}
	defer conn.Close()
	log.Info("connected to DB", zap.String("db", cfg.DB.DBName))

	if err := db.Migrate(conn); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	if err := auth.RegisterValidators(); err != nil {
		log.Fatal("register validators", zap.Error(err))
	}

	loc := cfg.Location()
	store, err := files.NewStore(cfg.Uploads.Dir, cfg.Uploads.MaxCapturePx)
	if err != nil {
		log.Fatal("uploads dir", zap.Error(err))
	}
	tokens := auth.NewTokens(cfg.JWT.Secret, cfg.JWT.TTL)

	// サービス
	userSvc := users.NewService(conn, log.Named("users"))
	if cfg.Seed.Enabled {
		n, err := userSvc.Seed(ctx)
		if err != nil {
			log.Fatal("seed users", zap.Error(err))
		}
		if n > 0 {
			log.Info("seeded default users", zap.Int("count", n))
		}
	}
	logSvc := dailylog.NewService(conn, loc, log.Named("dailylog"))
	attSvc := attendance.NewService(conn, logSvc, userSvc, store, loc, log.Named("attendance"))
	darSvc := accomplishment.NewService(conn, store, userSvc, loc, log.Named("dar"))
	endSvc := endorsement.NewService(conn, store, userSvc, log.Named("endorsement"))
	chatSvc := chat.NewService(conn, userSvc, loc, log.Named("chat"))
	exportSvc := export.NewService(userSvc, logSvc, loc, log.Named("export"))
	hub := callrelay.NewHub(log.Named("callrelay"))

	pages, err := web.New(web.Deps{
		Users:        userSvc,
		Attendance:   attSvc,
		DailyLogs:    logSvc,
		Reports:      darSvc,
		Endorsements: endSvc,
		Chat:         chatSvc,
		Files:        store,
	}, loc, log.Named("web"))
	if err != nil {
		log.Fatal("templates", zap.Error(err))
	}

	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(observability.Recovery(log), logging.Middleware(log), metrics.Middleware())
	_ = r.SetTrustedProxies(nil)
	r.MaxMultipartMemory = cfg.Uploads.MaxBodyMB << 20

	if cfg.Mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.HTTP.CORSOrigins,
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
		docs.SwaggerInfo.Version = cfg.Version
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	r.Use(session.Middleware(session.Options{
		Secret: cfg.Session.Secret,
		MaxAge: cfg.Session.MaxAge,
		Secure: cfg.Mode == "release",
	}))

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) {
		pctx, cancel := context.WithTimeout(c.Request.Context(), 800*time.Millisecond)
		defer cancel()
		start := time.Now()
		if err := conn.PingContext(pctx); err != nil {
			c.String(http.StatusServiceUnavailable, "db unavailable")
			return
		}
		metrics.ObserveDBPing(time.Since(start))
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	users.RegisterAuthRoutes(r, userSvc, tokens)
	web.RegisterRoutes(r, pages, tokens)
	callrelay.RegisterRoutes(r, hub, tokens, callrelay.Options{AllowedOrigins: cfg.HTTP.CORSOrigins})

	// /api/v1
	api := r.Group("/api/v1", auth.RequireAuth(tokens))
	users.RegisterRoutes(api, userSvc)
	attendance.RegisterRoutes(api, attSvc)
	dailylog.RegisterRoutes(api, logSvc)
	accomplishment.RegisterRoutes(api, darSvc)
	endorsement.RegisterRoutes(api, endSvc)
	chat.RegisterRoutes(api, chatSvc)
	export.RegisterRoutes(api, exportSvc)

	// バックグラウンドジョブ
	runner := jobs.New(ctx, log.Named("jobs"))
	runner.Every(cfg.Jobs.HoursResyncInterval, "hours-resync", jobs.HoursResync(logSvc, log.Named("jobs")))

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("shutting down...")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	runner.Wait()
}
