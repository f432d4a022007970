package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/encounterscribe/internal/client/client"
	"github.com/dmitrijs2005/encounterscribe/internal/client/config"
	"github.com/dmitrijs2005/encounterscribe/internal/client/encounters"
	"github.com/dmitrijs2005/encounterscribe/internal/client/jobs"
	"github.com/dmitrijs2005/encounterscribe/internal/client/models"
	"github.com/dmitrijs2005/encounterscribe/internal/client/recording"
	"github.com/dmitrijs2005/encounterscribe/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/encounterscribe/internal/client/services"
	"github.com/dmitrijs2005/encounterscribe/internal/client/upload"
	"github.com/dmitrijs2005/encounterscribe/internal/filex"
	"github.com/dmitrijs2005/encounterscribe/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// EncounterService is the slice of services.EncounterService the commands
// use.
type EncounterService interface {
	Draft() models.Draft
	Set(ctx context.Context, f encounters.Field, value string) error
	Upload(ctx context.Context, path string, cb services.Callbacks) (models.RecordingMetadata, error)
	Process(ctx context.Context, recordingPath string, cb services.Callbacks) (jobs.Result, error)
	Resume(ctx context.Context, jobID string, cb services.Callbacks) (jobs.Result, error)
	LastJob(ctx context.Context) (models.Job, bool, error)
	SaveRecording(rec recording.Recording) (string, error)
	Submit(ctx context.Context) (string, error)
	Discard(ctx context.Context) error
}

// Recorder is the microphone session.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (recording.Recording, error)
	State() recording.State
	Elapsed() time.Duration
}

type App struct {
	config      *config.Config
	authService services.AuthService
	encounters  EncounterService
	recorder    Recorder
	logger      logging.Logger
	reader      *bufio.Reader
	out         io.Writer
	closers     []io.Closer

	mu            sync.Mutex
	signedIn      bool
	Mode          Mode
	lastRecording string
}

// NewApp wires local storage, the API client and the services from c.
// Logs go to a file in the data directory so the prompt stays readable.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	dir, err := filex.EnsureDir(c.DataDir)
	if err != nil {
		return nil, err
	}

	logFile, err := os.OpenFile(filepath.Join(dir, "client.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger := logging.New(logFile, c.LogLevel, false)

	db, err := metadata.OpenDatabase(ctx, filepath.Join(dir, "encounterscribe.db"))
	if err != nil {
		logFile.Close()
		return nil, err
	}

	a, err := wire(ctx, c, db, dir, logger)
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, err
	}
	a.closers = append(a.closers, db, logFile)
	return a, nil
}

func wire(ctx context.Context, c *config.Config, db *sql.DB, dir string, logger logging.Logger) (*App, error) {
	repo := metadata.NewSQLiteRepository(db)

	tokens, err := client.NewPersistentTokenStore(ctx, repo, logger)
	if err != nil {
		return nil, err
	}
	gw, err := client.NewGateway(c.ServerURL, tokens, client.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	api := client.NewAPIClient(gw)

	uploader := upload.New(api,
		upload.WithLogger(logger),
		upload.WithMaxSize(c.MaxUploadSize),
		upload.WithDurationDetector(recording.NewDurationDetector(c.FFprobePath, logger)),
	)
	poller := jobs.NewPoller(api,
		jobs.WithConfig(c.Jobs()),
		jobs.WithRefresher(gw),
		jobs.WithRepository(repo),
		jobs.WithLogger(logger),
	)

	drafts, err := encounters.NewDraftStore(ctx, repo, db, logger)
	if err != nil {
		return nil, err
	}
	submitter := encounters.NewSubmitter(api, drafts, repo, logger)

	a := &App{
		config:      c,
		authService: services.NewAuthService(gw, api, db, logger),
		encounters:  services.NewEncounterService(uploader, poller, drafts, submitter, repo, filepath.Join(dir, "recordings"), logger),
		logger:      logger,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
	}
	_, a.signedIn = tokens.Get()

	a.recorder = recording.NewSession(recording.NewFFmpegCapture(c.FFmpegPath), c.Recording(),
		recording.WithLogger(logger),
		recording.WithKeepAlive(recording.NewInhibitKeepAlive()),
		recording.WithRefresher(gw),
		recording.OnAutoStop(a.onAutoStop),
	)
	return a, nil
}

func (a *App) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.signedIn
}

func (a *App) setLoggedIn(v bool) {
	a.mu.Lock()
	a.signedIn = v
	a.mu.Unlock()
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.Mode != mode
	a.Mode = mode
	a.mu.Unlock()
	if changed {
		a.logger.Info(context.Background(), "connectivity changed", "mode", mode)
	}
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// StartOnlineStatusWatcher pings the backend every interval and flips Mode.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.authService.Ping(pctx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
