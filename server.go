package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dukaflow/retailer_backend/billing"
	"github.com/dukaflow/retailer_backend/config"
	"github.com/dukaflow/retailer_backend/handlers"
	"github.com/dukaflow/retailer_backend/inbox"
	"github.com/dukaflow/retailer_backend/messaging"
	"github.com/dukaflow/retailer_backend/middlewares"
	"github.com/dukaflow/retailer_backend/models"
	"github.com/dukaflow/retailer_backend/repository"
	"github.com/dukaflow/retailer_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// store is everything the handlers need from persistence.
type store interface {
	inbox.Store
	inbox.CustomerDirectory
	inbox.RetailerDirectory
	workflow.SaleStore
	workflow.CustomerStore
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "route not found"})
}

func newSender(logger *logrus.Logger) messaging.Sender {
	client, err := messaging.NewTwilioClient(messaging.TwilioConfigFromEnv())
	if err == nil {
		return client
	}
	if config.IsProduction() {
		logger.WithFields(logrus.Fields{"field": "twilio"}).Fatal(err.Error())
	}
	logger.WithFields(logrus.Fields{"field": "twilio"}).Warn("whatsapp sends disabled: " + err.Error())
	return messaging.UnconfiguredSender{}
}

// wire fills app with the services backed by st.
func wire(app *handlers.Handler, st store, sender messaging.Sender) {
	region := config.DefaultPhoneRegion()
	syncer := inbox.NewSynchronizer(st, st, st, inbox.WithRegion(region))
	gateway := messaging.NewGateway(sender, syncer, region)

	app.Inbox = syncer
	app.Gateway = gateway
	app.Sales = workflow.NewSaleProcessor(st, st, st, gateway)
	app.SaleStore = st
	app.Customers = st
	app.Bundles = billing.RatesFromEnv()
	app.Webhook = handlers.WebhookConfigFromEnv()
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Listen first; app endpoints return 503 until dependencies are wired.
	var ready atomic.Bool
	r := gin.New()
	r.Use(middlewares.CorrelationId())
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if !ready.Load() {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production requires an explicit allowlist; elsewhere allow all.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if config.IsProduction() {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.SessionMiddleware())
	// Optional rate limiting (RATE_LIMIT_ENABLED, RATE_LIMIT_MAX_REQUESTS, RATE_LIMIT_WINDOW_SECONDS).
	if config.BoolFromEnv("RATE_LIMIT_ENABLED", false) {
		r.Use(middlewares.RateLimiterFromEnv().Middleware())
	}
	r.Use(middlewares.ErrorLogger(logger))
	r.Use(gin.Recovery())

	app := &handlers.Handler{Logger: logger, Region: config.DefaultPhoneRegion()}
	app.Register(r)
	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Redis backs the retailer cache, locks and rate limiter; all degrade when it is down.
	redisCtx, cancelRedis := context.WithTimeout(sigCtx, 2*time.Minute)
	config.ConnectRedisWithRetry(redisCtx)
	cancelRedis()

	var st store
	switch config.StorageDriver() {
	case "memory":
		logger.WithFields(logrus.Fields{"field": "storage"}).Warn("STORAGE_DRIVER=memory; data is lost on restart")
		st = repository.NewMemoryStore()
	default:
		config.ConnectDatabaseWithRetry()
		db := config.GetDB()
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		// AutoMigrate can lock tables; run it as a separate job when SKIP_MIGRATIONS=true.
		if !config.BoolFromEnv("SKIP_MIGRATIONS", false) {
			if err := models.MigrateTable(db); err != nil {
				logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err.Error())
			}
		} else {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
		}
		st = repository.NewGormStore(db)
	}

	wire(app, st, newSender(logger))
	ready.Store(true)

	logger.WithFields(logrus.Fields{
		"info":    "Connection Established",
		"storage": config.StorageDriver(),
	}).Info("listening on port ", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
