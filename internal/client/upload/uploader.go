// Package upload moves recordings into backend storage in two phases: ask
// the backend for a signed destination, then stream the bytes to it.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/encounterscribe/internal/client/client"
	"github.com/dmitrijs2005/encounterscribe/internal/client/models"
	"github.com/dmitrijs2005/encounterscribe/internal/logging"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultMaxSize       = 100 << 20
	DefaultChunkSize     = 64 << 10
	DefaultProbeInterval = 500 * time.Millisecond
	DefaultProbeTimeout  = 5 * time.Second
)

// API is the slice of the backend the uploader needs.
type API interface {
	CreateSignedUploadURL(ctx context.Context, filename string) (models.UploadTarget, error)
	CreateSignedURL(ctx context.Context, path string) (string, error)
}

// Result of a successful transfer. Confirmed is false when the
// availability probe timed out; the upload itself still succeeded.
type Result struct {
	Path        string
	PlayableURL string
	Confirmed   bool
}

type Uploader struct {
	api           API
	http          *http.Client
	logger        logging.Logger
	maxSize       int64
	chunkSize     int
	probeInterval time.Duration
	probeTimeout  time.Duration
	durations     DurationDetector
}

type Option func(*Uploader)

// WithHTTPClient sets the client used to talk to storage. Storage URLs are
// pre-signed, so this client never carries the bearer token.
func WithHTTPClient(c *http.Client) Option {
	return func(u *Uploader) { u.http = c }
}

func WithLogger(l logging.Logger) Option {
	return func(u *Uploader) { u.logger = l }
}

// WithMaxSize sets the pre-flight size limit; 0 disables it.
func WithMaxSize(n int64) Option {
	return func(u *Uploader) { u.maxSize = n }
}

func WithChunkSize(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.chunkSize = n
		}
	}
}

// WithProbe sets the availability probe cadence; a zero timeout disables
// the probe.
func WithProbe(interval, timeout time.Duration) Option {
	return func(u *Uploader) {
		u.probeInterval = interval
		u.probeTimeout = timeout
	}
}

func WithDurationDetector(d DurationDetector) Option {
	return func(u *Uploader) { u.durations = d }
}

func New(api API, opts ...Option) *Uploader {
	u := &Uploader{
		api:           api,
		http:          &http.Client{},
		logger:        logging.NewNop(),
		maxSize:       DefaultMaxSize,
		chunkSize:     DefaultChunkSize,
		probeInterval: DefaultProbeInterval,
		probeTimeout:  DefaultProbeTimeout,
		durations:     sizeEstimate{},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload stores body under a destination derived from filePath's base name.
// size may be -1 when unknown; the pre-flight check is then skipped.
func (u *Uploader) Upload(ctx context.Context, filePath string, body io.Reader, size int64, onProgress func(Progress)) (Result, error) {
	if u.maxSize > 0 && size > u.maxSize {
		return Result{}, &TransferError{
			FileTooLarge: true,
			Size:         size,
			Err:          fmt.Errorf("limit is %d bytes", u.maxSize),
		}
	}

	filename := filepath.Base(filePath)
	target, err := u.api.CreateSignedUploadURL(ctx, filename)
	if err != nil {
		return Result{}, &DestinationError{Err: err}
	}

	pr := &progressReader{r: body, chunk: u.chunkSize, total: size, fn: onProgress}
	if err := u.put(ctx, target.DestinationURL, filename, pr, size); err != nil {
		return Result{}, err
	}
	u.logger.Info(ctx, "upload complete", "path", target.Path, "bytes", pr.sent)

	res := Result{Path: target.Path}
	res.PlayableURL, res.Confirmed = u.confirm(ctx, target.Path)
	return res, nil
}

func (u *Uploader) put(ctx context.Context, dest, filename string, pr *progressReader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, dest, pr)
	if err != nil {
		return &TransferError{Size: size, Err: err}
	}
	if size >= 0 {
		req.ContentLength = size
	}
	req.Header.Set("Content-Type", contentType(filename))

	resp, err := u.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &TransferError{Size: sizeOrSent(size, pr), Err: &client.NetworkError{Err: err}}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	b, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
	msg := string(b)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &TransferError{
		FileTooLarge: resp.StatusCode == http.StatusRequestEntityTooLarge || looksOversize(msg),
		Size:         sizeOrSent(size, pr),
		StatusCode:   resp.StatusCode,
		Err:          errors.New(msg),
	}
}

// confirm waits briefly for the object to become readable. It never fails
// the upload: a timeout or error only leaves the result unconfirmed.
func (u *Uploader) confirm(ctx context.Context, path string) (string, bool) {
	if u.probeTimeout <= 0 {
		return "", false
	}

	playURL, err := u.api.CreateSignedURL(ctx, path)
	if err != nil || playURL == "" {
		u.logger.Debug(ctx, "playback url unavailable", "path", path, "error", err)
		return "", false
	}

	b := retry.WithMaxDuration(u.probeTimeout, retry.NewConstant(u.probeInterval))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		return retry.RetryableError(u.probe(ctx, playURL))
	})
	if err != nil {
		u.logger.Debug(ctx, "upload not confirmed readable", "path", path, "error", err)
		return playURL, false
	}
	return playURL, true
}

// probe fetches the first byte of the object; a signed GET URL does not
// authorize HEAD on every storage backend.
func (u *Uploader) probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := u.http.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("object not readable yet: status %d", resp.StatusCode)
	}
	return nil
}

func sizeOrSent(size int64, pr *progressReader) int64 {
	if size > 0 {
		return size
	}
	return pr.sent
}

func contentType(filename string) string {
	if t := mime.TypeByExtension(filepath.Ext(filename)); t != "" {
		return t
	}
	return "application/octet-stream"
}
