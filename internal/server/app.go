// Package server wires the reference backend together: database and
// migrations, object storage, the transcription pool and the HTTP API.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/encounterscribe/internal/logging"
	"github.com/dmitrijs2005/encounterscribe/internal/server/config"
	"github.com/dmitrijs2005/encounterscribe/internal/server/httpapi"
	"github.com/dmitrijs2005/encounterscribe/internal/server/jobs"
	"github.com/dmitrijs2005/encounterscribe/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/encounterscribe/internal/server/services"
	"github.com/dmitrijs2005/encounterscribe/internal/server/storage"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"
)

const purgeInterval = time.Hour

type tokenPurger interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *httpapi.Server
	pool   *jobs.Pool
	users  tokenPurger
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel, true)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	store, err := storage.NewS3Store(ctx, storage.Config{
		Bucket:        c.S3Bucket,
		Region:        c.S3Region,
		BaseEndpoint:  c.S3BaseEndpoint,
		AccessKey:     c.S3RootUser,
		SecretKey:     c.S3RootPassword,
		PresignExpiry: c.PresignExpiry,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	proc := jobs.NewOpenAIProcessor(c.OpenAIKey, c.OpenAIBaseURL, c.TranscriptionModel, c.ChatModel)
	pool := jobs.NewPool(rm.Jobs(db), store, proc, jobs.Config{
		Workers:   c.Workers,
		QueueSize: c.QueueSize,
		MaxSize:   c.MaxUploadSize,
	}, logger.With("module", "jobs"))

	us := services.NewUserService(db, rm, c)
	rs := services.NewRecordingService(store)
	js := services.NewJobService(db, rm, rs, pool, logger)
	es := services.NewEncounterService(db, rm)

	srv := httpapi.NewServer(c.HTTPAddr, logger, us, rs, js, es)

	return &App{config: c, logger: logger, db: db, http: srv, pool: pool, users: us}, nil
}

// Run serves until ctx is cancelled or a component fails, then waits for
// the HTTP server and the workers to stop.
func (app *App) Run(ctx context.Context) error {
	defer app.db.Close()

	app.logger.Info(ctx, "Starting app...")
	if app.config.OpenAIKey == "" {
		app.logger.Warn(ctx, "OPENAI_API_KEY is not set, jobs will fail")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.http.Run(gctx) })
	g.Go(func() error { return app.pool.Run(gctx) })
	g.Go(func() error {
		purgeLoop(gctx, app.users, purgeInterval, app.logger)
		return nil
	})

	err := g.Wait()
	app.logger.Info(ctx, "App stopped")
	return err
}

// purgeLoop deletes expired refresh tokens once per interval.
func purgeLoop(ctx context.Context, p tokenPurger, interval time.Duration, logger logging.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		n, err := p.PurgeExpiredTokens(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Error(ctx, "purge expired refresh tokens", "error", err)
			}
			continue
		}
		if n > 0 {
			logger.Info(ctx, "purged expired refresh tokens", "count", n)
		}
	}
}
