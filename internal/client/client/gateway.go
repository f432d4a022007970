package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/encounterscribe/internal/common"
	"github.com/dmitrijs2005/encounterscribe/internal/logging"
	"golang.org/x/sync/singleflight"
)

const (
	refreshPath  = "/auth/refresh"
	validityPath = "/auth"
	loginPath    = "/auth/login"
	logoutPath   = "/auth/logout"

	defaultRefreshTimeout = 30 * time.Second
)

// Validity is the outcome of CheckValidityWithRefresh.
type Validity struct {
	Valid     bool
	Refreshed bool
}

// Gateway wraps every backend call with the credential protocol:
// attach the current token, and on a 401 refresh once and retry once.
// Concurrent 401s share a single refresh.
type Gateway struct {
	baseURL        *url.URL
	http           *http.Client
	tokens         TokenStore
	logger         logging.Logger
	refreshGroup   singleflight.Group
	refreshTimeout time.Duration
}

type GatewayOption func(*Gateway)

// WithHTTPClient replaces the transport client. A cookie jar is added when
// the client has none, since the refresh endpoint is cookie-credentialed.
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *Gateway) {
		cp := *c
		g.http = &cp
	}
}

func WithLogger(l logging.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

func WithRefreshTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.refreshTimeout = d }
}

func NewGateway(baseURL string, tokens TokenStore, opts ...GatewayOption) (*Gateway, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: scheme and host required", baseURL)
	}

	g := &Gateway{
		baseURL:        u,
		http:           &http.Client{Timeout: 60 * time.Second},
		tokens:         tokens,
		logger:         logging.NewNop(),
		refreshTimeout: defaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		g.http.Jar = jar
	}
	return g, nil
}

// URL resolves an API path against the server base URL.
func (g *Gateway) URL(path string) string {
	u := *g.baseURL
	p, q, _ := strings.Cut(path, "?")
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(p, "/")
	u.RawQuery = q
	return u.String()
}

// NewRequest builds a request for an API path, JSON-encoding body when it
// is not nil.
func (g *Gateway) NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.URL(path), r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Do is the authenticated fetch used by every higher component.
//
//  1. no credential: ErrUnauthenticated, nothing is sent
//  2. send with the current credential
//  3. 401: refresh once; on success retry once with the new credential,
//     on failure clear the store and return ErrSessionExpired
//  4. any other status is returned untouched
//
// The refresh is never looped: whatever the retry returns goes back to the
// caller, including a second 401.
func (g *Gateway) Do(req *http.Request) (*http.Response, error) {
	token, ok := g.tokens.Get()
	if !ok {
		return nil, ErrUnauthenticated
	}

	if err := bufferBody(req); err != nil {
		return nil, err
	}

	resp, err := g.send(req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	original := drainStatus(resp)

	g.logger.Debug(req.Context(), "access token rejected, refreshing", "path", req.URL.Path)

	fresh, err := g.refreshFrom(req.Context(), token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionExpired, errors.Join(original, err))
	}

	retry, err := rewind(req)
	if err != nil {
		return nil, err
	}
	return g.send(retry, fresh)
}

// Refresh forces a credential refresh, sharing an in-flight one if any.
func (g *Gateway) Refresh(ctx context.Context) (string, error) {
	token, err := g.refreshFrom(ctx, "")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	return token, nil
}

// CheckValidityWithRefresh asks the backend whether the stored credential
// is still good, refreshing once if it is not.
func (g *Gateway) CheckValidityWithRefresh(ctx context.Context) (Validity, error) {
	token, ok := g.tokens.Get()
	if !ok {
		return Validity{}, ErrUnauthenticated
	}

	req, err := g.NewRequest(ctx, http.MethodPost, validityPath, map[string]string{"action": "check-validity"})
	if err != nil {
		return Validity{}, err
	}
	resp, err := g.send(req, token)
	if err != nil {
		return Validity{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var body struct {
			Valid bool `json:"valid"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return Validity{}, fmt.Errorf("decode validity: %w", err)
		}
		if body.Valid {
			return Validity{Valid: true}, nil
		}
	case resp.StatusCode == http.StatusUnauthorized:
	default:
		return Validity{}, statusError(resp)
	}

	if _, err := g.refreshFrom(ctx, token); err != nil {
		g.logger.Info(ctx, "session could not be refreshed", "error", err)
		return Validity{}, nil
	}
	return Validity{Valid: true, Refreshed: true}, nil
}

// Login exchanges credentials for an access token. The refresh cookie set
// by the response lands in the gateway's cookie jar.
func (g *Gateway) Login(ctx context.Context, email, password string) error {
	req, err := g.NewRequest(ctx, http.MethodPost, loginPath, map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}
	resp, err := g.transport(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	token, err := decodeAccessToken(resp.Body)
	if err != nil {
		return err
	}
	g.tokens.Set(token)
	return nil
}

// Logout drops the local credential. Telling the server is best-effort.
func (g *Gateway) Logout(ctx context.Context) {
	defer g.tokens.Clear()

	token, ok := g.tokens.Get()
	if !ok {
		return
	}
	req, err := g.NewRequest(ctx, http.MethodPost, logoutPath, nil)
	if err != nil {
		return
	}
	resp, err := g.send(req, token)
	if err != nil {
		g.logger.Warn(ctx, "logout request failed", "error", err)
		return
	}
	_ = drainStatus(resp)
}

// Invalidate clears the credential after an unrecoverable auth failure.
func (g *Gateway) Invalidate() {
	g.tokens.Clear()
}

// refreshFrom refreshes the credential that produced a 401. When another
// caller already replaced stale, the newer token is returned without a
// second round trip. An empty stale forces a refresh.
func (g *Gateway) refreshFrom(ctx context.Context, stale string) (string, error) {
	ch := g.refreshGroup.DoChan("refresh", func() (any, error) {
		if current, ok := g.tokens.Get(); ok && stale != "" && current != stale {
			return current, nil
		}

		// the shared call must not die with whichever caller started it
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.refreshTimeout)
		defer cancel()

		token, err := g.doRefresh(rctx)
		if err != nil {
			g.tokens.Clear()
			return "", err
		}
		g.tokens.Set(token)
		return token, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			g.logger.Debug(ctx, "joined in-flight token refresh")
		}
		return res.Val.(string), nil
	}
}

func (g *Gateway) doRefresh(ctx context.Context) (string, error) {
	req, err := g.NewRequest(ctx, http.MethodPost, refreshPath, nil)
	if err != nil {
		return "", err
	}
	resp, err := g.transport(req)
	if err != nil {
		return "", fmt.Errorf("refresh: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("refresh: %w", statusError(resp))
	}
	return decodeAccessToken(resp.Body)
}

func (g *Gateway) send(req *http.Request, token string) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Header.Set(common.AuthorizationHeader, common.BearerPrefix+token)
	return g.transport(out)
}

func (g *Gateway) transport(req *http.Request) (*http.Response, error) {
	resp, err := g.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &NetworkError{Err: err}
	}
	return resp, nil
}

// bufferBody makes sure the request body can be replayed for the retry.
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	b, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(b))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
	return nil
}

func rewind(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		out.Body = body
	}
	return out, nil
}

func decodeAccessToken(r io.Reader) (string, error) {
	var body struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", errors.New("token response without accessToken")
	}
	return body.AccessToken, nil
}

// drainStatus consumes and closes resp, returning it as a StatusError.
func drainStatus(resp *http.Response) error {
	defer resp.Body.Close()
	return statusError(resp)
}

// statusError reads the error body of a non-2xx response.
func statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(b, &body); err == nil {
		msg = body.Message
		if msg == "" {
			msg = body.Error
		}
	} else {
		msg = strings.TrimSpace(string(b))
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}
