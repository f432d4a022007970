// Package httpapi exposes the backend over HTTP/JSON: authentication,
// signed recording URLs, transcription jobs and encounter submission.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/encounterscribe/internal/logging"
	"github.com/dmitrijs2005/encounterscribe/internal/server/models"
	"github.com/dmitrijs2005/encounterscribe/internal/server/services"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

type UserService interface {
	Register(ctx context.Context, email string, password []byte) (*models.User, error)
	Login(ctx context.Context, email string, password []byte) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Authenticate(token string) (string, error)
	RefreshTokenValidity() time.Duration
}

type RecordingService interface {
	CreateUploadURL(ctx context.Context, userID, filename string) (services.UploadTarget, error)
	CreateDownloadURL(ctx context.Context, userID, key string) (string, error)
}

type JobService interface {
	Create(ctx context.Context, userID, recordingPath string) (*models.Job, error)
	Get(ctx context.Context, userID, jobID string) (*models.Job, error)
}

type EncounterService interface {
	Complete(ctx context.Context, userID string, in services.EncounterInput) (string, error)
}

type Server struct {
	address    string
	users      UserService
	recordings RecordingService
	jobs       JobService
	encounters EncounterService
	logger     logging.Logger
	// secureCookies marks the refresh cookie Secure; off for plain-HTTP
	// local development.
	secureCookies bool
}

type Option func(*Server)

func WithSecureCookies(on bool) Option { return func(s *Server) { s.secureCookies = on } }

func NewServer(addr string, l logging.Logger, us UserService, rs RecordingService, js JobService, es EncounterService, opts ...Option) *Server {
	s := &Server{
		address:    addr,
		users:      us,
		recordings: rs,
		jobs:       js,
		encounters: es,
		logger:     l.With("module", "http_server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	s.RegisterRoutes(router)
	return router
}

func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", s.health)

	authGroup := router.Group("/auth")
	authGroup.POST("/register", s.register)
	authGroup.POST("/login", s.login)
	authGroup.POST("/refresh", s.refresh)
	authGroup.POST("/logout", s.logout)
	authGroup.POST("", s.accessTokenMiddleware(), s.authAction)

	protected := router.Group("/", s.accessTokenMiddleware())
	protected.POST("/recordings/create-signed-upload-url", s.createSignedUploadURL)
	protected.POST("/recordings/create-signed-url", s.createSignedURL)
	protected.POST("/jobs", s.createJob)
	protected.GET("/jobs/:id", s.getJob)
	protected.POST("/patient-encounters/complete", s.completeEncounter)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-done
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
