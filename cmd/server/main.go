package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tvloc02/EventVer1-sub000/internal/attendance"
	"github.com/tvloc02/EventVer1-sub000/internal/cache"
	"github.com/tvloc02/EventVer1-sub000/internal/config"
	"github.com/tvloc02/EventVer1-sub000/internal/db"
	"github.com/tvloc02/EventVer1-sub000/internal/email"
	"github.com/tvloc02/EventVer1-sub000/internal/handlers"
	"github.com/tvloc02/EventVer1-sub000/internal/logger"
	"github.com/tvloc02/EventVer1-sub000/internal/qrcode"
	"github.com/tvloc02/EventVer1-sub000/internal/realtime"
	"github.com/tvloc02/EventVer1-sub000/internal/routes"
	"github.com/tvloc02/EventVer1-sub000/internal/store/gormstore"
	"github.com/tvloc02/EventVer1-sub000/internal/store/memstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	host, _ := os.Hostname()
	lg := logger.NewRollbarLogger(log.New(os.Stderr, "", log.LstdFlags), logger.Options{
		Token:       cfg.RollbarToken,
		Environment: cfg.AppEnv,
		Host:        host,
	})
	defer lg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := stores(cfg)
	if err != nil {
		lg.Fatal("db error", err)
	}

	memCache := cache.NewMemory()
	go memCache.Run(ctx, cfg.CacheSweepInterval)

	hub := realtime.NewHub(lg)
	go hub.Run(ctx)

	loc := time.Local
	mailNotifier := email.NewCheckOutNotifier(mailer(cfg), lg, loc)
	defer mailNotifier.Wait()

	deps.Cache = memCache
	deps.QRCodes = qrcode.NewSigner(cfg.QrSecret, cfg.QrTTL)
	deps.Notifier = attendance.Notifiers{hub, mailNotifier}
	deps.Log = lg
	deps.Window = &attendance.Window{OpensBefore: cfg.CheckInOpensBefore, ClosesAfter: cfg.CheckInClosesAfter}
	deps.TTL = attendance.TTLs{
		Summary:   cfg.SummaryCacheTTL,
		Report:    cfg.ReportCacheTTL,
		Analytics: cfg.AnalyticsCacheTTL,
		User:      cfg.UserCacheTTL,
	}
	deps.Bulk = attendance.BulkOptions{Concurrency: cfg.BulkConcurrency, Throttle: cfg.BulkThrottle}
	deps.Location = loc
	tracker := attendance.New(deps)

	if cfg.AppEnv != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	routes.Register(router, handlers.NewAttendanceHandler(tracker, hub, cfg.AllowedOrigins(), lg, loc), cfg)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("listening on " + cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatal("server error", err)
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown error", err)
	}
}

func stores(cfg config.Config) (attendance.Deps, error) {
	if cfg.DbDriver == "memory" {
		s := memstore.New()
		return attendance.Deps{Registrations: s.Registrations(), Events: s.Events(), Audit: s.Audit()}, nil
	}

	database, err := db.Open(cfg.DbDriver, cfg.DbDsn, cfg.DbLogMode)
	if err != nil {
		return attendance.Deps{}, err
	}
	return attendance.Deps{
		Registrations: gormstore.NewRegistrations(database),
		Events:        gormstore.NewEvents(database),
		Audit:         gormstore.NewAudit(database),
	}, nil
}

func mailer(cfg config.Config) email.Mailer {
	switch cfg.MailDriver {
	case "smtp":
		return email.NewSMTPMailer(email.Config{
			Host:     cfg.SmtpHost,
			Port:     cfg.SmtpPort,
			Username: cfg.SmtpUser,
			Password: cfg.SmtpPass,
			From:     cfg.MailFrom,
		})
	case "sendgrid":
		return email.NewSendgridMailer(cfg.SendgridAPIKey, cfg.MailFrom)
	}
	return email.NewConsoleMailer(os.Stdout, cfg.MailFrom)
}
