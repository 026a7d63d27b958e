package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/config"
	"github.com/carelink/carelink/internal/domain/admin"
	"github.com/carelink/carelink/internal/domain/documents"
	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/domain/relationships"
	"github.com/carelink/carelink/internal/domain/verification"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/blobstore"
	"github.com/carelink/carelink/internal/platform/db"
	"github.com/carelink/carelink/internal/platform/middleware"
	"github.com/carelink/carelink/internal/platform/notify"
)

const (
	defaultBodyLimit = 1 << 20
	requestTimeout   = 30 * time.Second
	shutdownTimeout  = 10 * time.Second
)

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// application holds the wired services shared by the server and the
// one-shot commands.
type application struct {
	logger        zerolog.Logger
	tokens        *auth.TokenService
	revoked       auth.RevocationStore
	keys          *verification.KeyService
	identity      *identity.Service
	documents     *documents.Service
	relationships *relationships.Service
	admin         *admin.Service
}

func newApplication(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*application, error) {
	revoked, err := revocationStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := blobstore.NewDiskStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	tx := db.NewTransactor(pool)
	tokens := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.TokenTTL())
	keySvc := verification.NewKeyService(verification.NewKeyRepoPG(pool))

	identitySvc := identity.NewService(
		identity.NewUserRepoPG(pool),
		identity.NewPatientRepoPG(pool),
		identity.NewDoctorRepoPG(pool),
		tx, tokens, revoked, aadhaarVerifier(cfg), keySvc,
	)

	documentsSvc := documents.NewService(
		documents.NewDocumentRepoPG(pool),
		documents.NewShareRepoPG(pool),
		documents.NewAccessLogRepoPG(pool),
		identitySvc, store, tx, shareNotifier(cfg, logger), logger, cfg.MaxUploadSize,
	)

	return &application{
		logger:        logger,
		tokens:        tokens,
		revoked:       revoked,
		keys:          keySvc,
		identity:      identitySvc,
		documents:     documentsSvc,
		relationships: relationships.NewService(relationships.NewRepoPG(pool), identitySvc),
		admin:         admin.NewService(identitySvc, documentsSvc, keySvc, logger),
	}, nil
}

func (a *application) Close() {
	if c, ok := a.revoked.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("closing revocation store")
		}
	}
}

// revocationStore uses Redis when REDIS_URL is set so logouts survive a
// restart and hold across replicas.
func revocationStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (auth.RevocationStore, error) {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set; revoked tokens are kept in memory")
		return auth.NewMemoryRevocationStore(), nil
	}
	return auth.NewRedisRevocationStore(ctx, cfg.RedisURL)
}

func aadhaarVerifier(cfg *config.Config) verification.AadhaarVerifier {
	if cfg.AadhaarVerifyURL == "" {
		return verification.FormatVerifier{}
	}
	return verification.NewRemoteVerifier(cfg.AadhaarVerifyURL, cfg.AadhaarVerifyTimeout)
}

func shareNotifier(cfg *config.Config, logger zerolog.Logger) notify.Notifier {
	if !cfg.MailEnabled() {
		return notify.NewLogNotifier(logger)
	}
	return notify.NewMailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
}

// newEcho builds the server with global middleware and health routes.
func newEcho(cfg *config.Config, logger zerolog.Logger, pinger db.Pinger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)
	e.Validator = middleware.NewValidator()

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID", "X-Auth-Token"},
		ExposeHeaders: []string{"Content-Disposition"},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(defaultBodyLimit, cfg.MaxUploadSize))
	e.Use(middleware.RequestTimeout(requestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pinger))

	return e
}

// registerRoutes mounts the API. Everything except register and login sits
// behind the bearer token check.
func registerRoutes(e *echo.Echo, app *application) {
	api := e.Group("/api")
	protected := api.Group("", auth.JWTMiddleware(app.tokens, app.revoked, app.logger))

	identity.NewHandler(app.identity).RegisterRoutes(api, protected)
	documents.NewHandler(app.documents).RegisterRoutes(protected)
	relationships.NewHandler(app.relationships).RegisterRoutes(protected)
	admin.NewHandler(app.admin).RegisterRoutes(protected)
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	app, err := newApplication(ctx, cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise services")
	}
	defer app.Close()

	e := newEcho(cfg, logger, pool)
	registerRoutes(e, app)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
