package nylas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"mailbridge-backend/internal/mail/domain"

	"golang.org/x/oauth2"
)

// Client is the capability handle over one mailbox grant. A concrete
// instance is constructed per account and injected; nothing in the
// codebase reaches for a shared process-wide client.
type Client interface {
	StartSync(ctx context.Context, daysWithin int, bodyType string) (*SyncResponse, error)
	GetChanges(ctx context.Context, deltaToken, pageToken string) (*SyncUpdatedResponse, error)
	CreateWebhook(ctx context.Context, callbackURL string, triggers []string) (*Webhook, error)
	ListWebhooks(ctx context.Context) (*WebhookList, error)
	DeleteWebhook(ctx context.Context, webhookID string) error
	SendEmail(ctx context.Context, req *SendEmailRequest) (map[string]interface{}, error)
}

// ClientFactory builds a Client for a bearer token. The sync usecase uses
// it to scope one client per sync run.
type ClientFactory func(token string) Client

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a bearer-scoped client for the given grant token. The
// oauth2 transport attaches the Authorization header on every request;
// the timeout bounds each remote call so a hung provider cannot hold an
// account's sync lock indefinitely.
func NewClient(baseURL, token string, timeout time.Duration) Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	hc := oauth2.NewClient(context.Background(), src)
	hc.Timeout = timeout

	return &httpClient{
		baseURL: baseURL,
		http:    hc,
	}
}

// NewClientFactory returns a factory bound to one provider endpoint.
func NewClientFactory(baseURL string, timeout time.Duration) ClientFactory {
	return func(token string) Client {
		return NewClient(baseURL, token, timeout)
	}
}

func (c *httpClient) StartSync(ctx context.Context, daysWithin int, bodyType string) (*SyncResponse, error) {
	q := url.Values{}
	q.Set("daysWithin", strconv.Itoa(daysWithin))
	q.Set("bodyType", bodyType)

	var out SyncResponse
	if err := c.do(ctx, http.MethodPost, "/delta/sync?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) GetChanges(ctx context.Context, deltaToken, pageToken string) (*SyncUpdatedResponse, error) {
	q := url.Values{}
	if deltaToken != "" {
		q.Set("cursor", deltaToken)
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	var out SyncUpdatedResponse
	if err := c.do(ctx, http.MethodGet, "/delta/sync?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) CreateWebhook(ctx context.Context, callbackURL string, triggers []string) (*Webhook, error) {
	body := map[string]interface{}{
		"callbackUrl": callbackURL,
		"triggers":    triggers,
	}

	var out Webhook
	if err := c.do(ctx, http.MethodPost, "/webhooks", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) ListWebhooks(ctx context.Context) (*WebhookList, error) {
	var out WebhookList
	if err := c.do(ctx, http.MethodGet, "/webhooks", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) DeleteWebhook(ctx context.Context, webhookID string) error {
	return c.do(ctx, http.MethodDelete, "/webhooks/"+url.PathEscape(webhookID), nil, nil)
}

func (c *httpClient) SendEmail(ctx context.Context, req *SendEmailRequest) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := c.do(ctx, http.MethodPost, "/emails/send", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", domain.ErrRemoteUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w (%d): %s", domain.ErrRemoteAuth, resp.StatusCode, truncate(respBody))
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w (%d): %s", domain.ErrRemoteUnavailable, resp.StatusCode, truncate(respBody))
	case resp.StatusCode >= 400:
		return fmt.Errorf("provider API error (%d): %s", resp.StatusCode, truncate(respBody))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func truncate(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
