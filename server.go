package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/stockbot_backend/appctx"
	"bitbucket.org/mmdatafocus/stockbot_backend/config"
	"bitbucket.org/mmdatafocus/stockbot_backend/flows"
	"bitbucket.org/mmdatafocus/stockbot_backend/line"
	"bitbucket.org/mmdatafocus/stockbot_backend/models"
	"bitbucket.org/mmdatafocus/stockbot_backend/session"
	"bitbucket.org/mmdatafocus/stockbot_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// webhookHandler validates, parses and dispatches inbound platform events.
// The webhook always acks 200 once the signature checks out; each user's
// events are then processed in arrival order under the user's session lock,
// with different users proceeding concurrently.
func webhookHandler(engine *flows.Engine, client *line.Client, sessions *session.Store, settings *config.Settings) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "webhookHandler", "reading webhook body", nil, err)
			c.Status(http.StatusBadRequest)
			return
		}
		if !line.ValidateSignature(settings.LineChannelSecret, body, c.GetHeader("x-line-signature")) {
			logger.WithFields(logrus.Fields{"module": "server"}).Warn("webhook signature mismatch; dropping")
			c.Status(http.StatusForbidden)
			return
		}

		events, err := line.ParseWebhook(body)
		if err != nil {
			config.LogError(logger, "server.go", "webhookHandler", "parsing webhook payload", nil, err)
			// Malformed payload: ack to avoid platform retries.
			c.Status(http.StatusOK)
			return
		}

		ctx := c.Request.Context()
		correlationID, _ := appctx.GetString(ctx, appctx.ContextKeyCorrelationId)
		// One goroutine per user, consuming that user's events sequentially:
		// a user's events must be handled in arrival order, and the session
		// mutex is not FIFO, so fan-out has to happen per user, not per event.
		for _, group := range line.GroupByUser(events) {
			batch := make([]line.Event, 0, len(group))
			for _, ev := range group {
				if ev.UserID == "" || ev.ReplyToken == "" {
					continue
				}
				batch = append(batch, ev)
			}
			if len(batch) == 0 {
				continue
			}
			go func(batch []line.Event) {
				for _, ev := range batch {
					// The reply token outlives the request; give each event
					// its own deadline instead of the webhook request's.
					evCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
					evCtx = appctx.Set(evCtx, appctx.ContextKeyCorrelationId, correlationID)
					evCtx = appctx.Set(evCtx, appctx.ContextKeyUserId, ev.UserID)

					sessions.Serialize(ev.UserID, func() {
						messages := engine.Handle(evCtx, ev)
						if len(messages) > 0 {
							if err := client.Reply(evCtx, ev.ReplyToken, messages); err != nil {
								config.LogError(logger, "server.go", "webhookHandler", "sending reply", ev.UserID, err)
							}
						}
					})
					cancel()
				}
			}(batch)
		}

		c.Status(http.StatusOK)
	}
}

// exportInventoryHandler streams the current inventory and ledger as an .xlsx
// workbook.
func exportInventoryHandler(ledger *models.LedgerStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := ledger.GetInventoryView()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read inventory"})
			return
		}
		items := make([]models.InventoryItem, 0, len(view))
		for _, item := range view {
			items = append(items, item)
		}

		var rows []models.LedgerRecord
		if err := config.GetDB().Order("id ASC").Find(&rows).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read ledger"})
			return
		}

		f, err := utils.InventoryWorkbook(items, rows)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build workbook"})
			return
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=inventory.xlsx")
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "server.go", "exportInventoryHandler", "writing workbook", nil, err)
		}
	}
}

func main() {
	logger := config.GetLogger()

	settings, err := config.LoadSettings()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "settings"}).Fatal("invalid configuration: " + err.Error())
	}

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	sessions := session.NewStore()
	client := line.NewClient(settings.LineChannelToken, logger)

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB is ready, app endpoints return 503.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(appctx.Set(c.Request.Context(), appctx.ContextKeyCorrelationId, cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-line-signature")
	corsConfig.AddExposeHeaders("Content-Length")
	r.Use(cors.New(corsConfig))
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	// Stores and the workflow engine are wired against the package-level DB
	// handle; the readiness gate above keeps traffic out until it is set.
	ledger := models.NewLedgerStore(nil, logger)
	directory := models.NewUserDirectory(nil, logger)
	profiles := flows.NewProfileService(directory, client, logger)
	photos := flows.NewPhotoService(client, logger)
	engine := flows.NewEngine(ledger, sessions, profiles, photos, settings, logger)

	r.POST("/webhook", webhookHandler(engine, client, sessions, settings))
	r.GET("/export/inventory", exportInventoryHandler(ledger))

	srv := &http.Server{
		Addr:    ":" + settings.Port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	ledger.DB = db
	directory.DB = db
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running it as a
	// separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.AutoMigrate(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal("migration failed: " + err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	jobCtx, cancelJob := context.WithCancel(context.Background())
	defer cancelJob()
	go flows.NewArchivalJob(db, logger, settings).Run(jobCtx)

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on port ", settings.Port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop the archival job before draining so it cannot start a close while
	// the process is going away.
	cancelJob()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger logs only requests that accumulated gin errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
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
