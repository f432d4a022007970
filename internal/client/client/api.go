package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/encounterscribe/internal/client/models"
)

// APIClient implements Client over the REST contract. Every call except
// Ping goes through the Gateway's credential protocol.
type APIClient struct {
	gw *Gateway
}

var _ Client = (*APIClient)(nil)

func NewAPIClient(gw *Gateway) *APIClient {
	return &APIClient{gw: gw}
}

func (c *APIClient) Gateway() *Gateway { return c.gw }

func (c *APIClient) Ping(ctx context.Context) error {
	req, err := c.gw.NewRequest(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.gw.transport(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

func (c *APIClient) CheckValidity(ctx context.Context) (Validity, error) {
	return c.gw.CheckValidityWithRefresh(ctx)
}

func (c *APIClient) Refresh(ctx context.Context) (string, error) {
	return c.gw.Refresh(ctx)
}

func (c *APIClient) CreateSignedUploadURL(ctx context.Context, filename string) (models.UploadTarget, error) {
	var out models.UploadTarget
	err := c.doJSON(ctx, http.MethodPost, "/recordings/create-signed-upload-url", map[string]string{"filename": filename}, &out)
	if err != nil {
		return models.UploadTarget{}, err
	}
	if out.DestinationURL == "" || out.Path == "" {
		return models.UploadTarget{}, errors.New("upload target response is incomplete")
	}
	return out, nil
}

func (c *APIClient) CreateSignedURL(ctx context.Context, path string) (string, error) {
	var out struct {
		SignedURL string `json:"signedUrl"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/recordings/create-signed-url", map[string]string{"path": path}, &out); err != nil {
		return "", err
	}
	return out.SignedURL, nil
}

func (c *APIClient) CreateJob(ctx context.Context, recordingPath string) (models.Job, error) {
	var out models.Job
	if err := c.doJSON(ctx, http.MethodPost, "/jobs", map[string]string{"recordingPath": recordingPath}, &out); err != nil {
		return models.Job{}, err
	}
	return out, nil
}

func (c *APIClient) GetJob(ctx context.Context, id string) (models.Job, error) {
	var out models.Job
	if err := c.doJSON(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, &out); err != nil {
		return models.Job{}, err
	}
	if out.ID == "" {
		out.ID = id
	}
	return out, nil
}

func (c *APIClient) GetJobResult(ctx context.Context, id string) (models.RawResult, error) {
	var out models.RawResult
	if err := c.doJSON(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id)+"?includeResult=true", nil, &out); err != nil {
		return models.RawResult{}, err
	}
	return out, nil
}

func (c *APIClient) CompleteEncounter(ctx context.Context, s models.EncounterSubmission) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/patient-encounters/complete", s, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *APIClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	req, err := c.gw.NewRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	resp, err := c.gw.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.mapStatus(statusError(resp))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// mapStatus turns a 401 that survived the gateway's single refresh into a
// dead session. Everything else is passed through as *StatusError.
func (c *APIClient) mapStatus(err error) error {
	if errors.Is(err, ErrUnauthorized) {
		c.gw.Invalidate()
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	return err
}
