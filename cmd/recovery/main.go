package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sapliy/cart-recovery/internal/composer"
	"github.com/sapliy/cart-recovery/internal/config"
	"github.com/sapliy/cart-recovery/internal/events"
	"github.com/sapliy/cart-recovery/internal/reminder"
	"github.com/sapliy/cart-recovery/internal/scanner"
	"github.com/sapliy/cart-recovery/internal/tracking"
	"github.com/sapliy/cart-recovery/pkg/database"
	"github.com/sapliy/cart-recovery/pkg/jsonutil"
	"github.com/sapliy/cart-recovery/pkg/messaging"
	"github.com/sapliy/cart-recovery/pkg/monitoring"
	"github.com/sapliy/cart-recovery/pkg/observability"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger("cart-recovery")

	db, err := database.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()

	if err := runMigrations(db); err != nil {
		log.Fatalf("Migrations failed: %v", err)
	}

	// Redis is optional: without it the scanner falls back to the database
	// for every cooldown check.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Printf("Warning: Redis connection failed, continuing without dedupe fast-path: %v", err)
			rdb = nil
		}
	}

	var producer *messaging.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		producer = messaging.NewKafkaProducer(cfg.KafkaBrokers, "cart-recovery")
		defer producer.Close()
	}

	shutdown, err := observability.InitTracer(context.Background(), observability.TracerConfig{
		ServiceName:    "cart-recovery",
		ServiceVersion: "0.1.0",
		Endpoint:       cfg.OTLPEndpoint,
		Environment:    "production",
	})
	if err != nil {
		log.Printf("Failed to init tracer: %v", err)
	} else {
		defer shutdown(context.Background())
	}

	monitoring.StartMetricsServer(cfg.MetricsAddr)

	trackingRepo := tracking.NewRepository(db)
	reminderRepo := reminder.NewRepository(db)

	var comp composer.Composer
	if cfg.OpenAIAPIKey != "" {
		comp = composer.NewOpenAIComposer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	} else {
		log.Println("OPENAI_API_KEY not set, using template composer")
		comp = composer.NewTemplateComposer()
	}

	registry := reminder.NewDriverRegistry()
	registry.Register(reminder.NewTwilioSMSDriver(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber))
	if cfg.ResendAPIKey != "" {
		registry.Register(reminder.NewResendEmailDriver(cfg.ResendAPIKey, cfg.FromEmail))
	}
	if cfg.DryRun {
		// In dry run the sms slot holds a log-only driver.
		registry.Register(reminder.NewDryRunDriver(reminder.SMS))
	}
	driver, err := registry.Get(reminder.SMS)
	if err != nil {
		log.Fatalf("No SMS driver available: %v", err)
	}

	scan := scanner.New(trackingRepo, reminderRepo, comp, driver, logger.Component("scanner"), scanner.Config{
		DetectionWindow: cfg.DetectionWindow,
		CooldownWindow:  cfg.CooldownWindow,
		PacingDelay:     cfg.PacingDelay,
		CheckoutBaseURL: cfg.CheckoutBaseURL,
		DryRun:          cfg.DryRun,
	})
	if rdb != nil {
		scan = scan.WithRedis(rdb)
	}
	if producer != nil {
		scan = scan.WithPublisher(producer)
	}

	scheduler := scanner.NewScheduler(scan, cfg.ScanInterval, logger.Component("scheduler"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Start(ctx)

	// Assign conditionally so a missing producer stays a nil interface
	// rather than a typed nil.
	var publisher events.Publisher
	if producer != nil {
		publisher = producer
	}
	handler := tracking.NewHandler(trackingRepo, publisher, logger.Component("tracking"))

	router := mux.NewRouter()
	router.HandleFunc("/healthz", healthHandler(db, rdb)).Methods(http.MethodGet)
	router.HandleFunc("/track/view", handler.RecordView)
	router.HandleFunc("/track/views", handler.ListViews).Methods(http.MethodGet)
	router.HandleFunc("/scanner/run", runTickHandler(scan)).Methods(http.MethodPost)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: otelhttp.NewHandler(router, "cart-recovery-request"),
	}

	go func() {
		log.Printf("Cart recovery service starting on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
}

// runMigrations applies the SQL migrations in ./migrations.
func runMigrations(db *sql.DB) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	log.Println("Migrations applied")
	return nil
}

func healthHandler(db *sql.DB, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{
			"status":  "active",
			"service": "cart-recovery",
		}
		if err := db.PingContext(r.Context()); err != nil {
			status["db"] = "down"
		} else {
			status["db"] = "up"
		}
		if rdb != nil {
			if err := rdb.Ping(r.Context()).Err(); err != nil {
				status["redis"] = "down"
			} else {
				status["redis"] = "up"
			}
		}
		jsonutil.WriteJSON(w, http.StatusOK, status)
	}
}

// runTickHandler runs one scan synchronously and returns its summary, the
// manual trigger used by operators and the CLI.
func runTickHandler(scan *scanner.Scanner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := scan.RunOnce(r.Context())
		if err != nil {
			if errors.Is(err, scanner.ErrTickInProgress) {
				jsonutil.WriteError(w, http.StatusConflict, err.Error())
				return
			}
			jsonutil.WriteErrorDetails(w, http.StatusInternalServerError, "tick failed", err.Error())
			return
		}
		jsonutil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    summary,
		})
	}
}
