package feishu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gdtech/hackathon/internal/contracts"
	"github.com/gdtech/hackathon/pkg/config"
	"github.com/gdtech/hackathon/pkg/httputil"
	"github.com/gdtech/hackathon/pkg/logger"
)

const (
	pageSize = 500

	// tokenMargin refreshes the tenant token this long before it expires
	tokenMargin = 5 * time.Minute
)

// codes returned when the tenant token was revoked or expired early
var tokenInvalidCodes = map[int]bool{
	99991661: true,
	99991663: true,
	99991668: true,
}

// APIError is a non-zero code in a Feishu response envelope
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("feishu api error %d: %s", e.Code, e.Msg)
}

// Client is a contracts.RecordStore over Feishu bitable tables
// ⭐ SSOT: Feishu API 调用只在这个客户端
type Client struct {
	httpClient *httputil.Client
	cfg        config.FeishuConfig
	logger     *logger.Logger
	now        func() time.Time

	tokenMu   sync.Mutex
	token     string
	expiresAt time.Time
}

// NewClient creates a new Feishu bitable client
func NewClient(cfg config.FeishuConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		logger:     log.Component("feishu"),
		now:        time.Now,
	}
}

var _ contracts.RecordStore = (*Client)(nil)

type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e envelope) err() error {
	if e.Code == 0 {
		return nil
	}
	return &APIError{Code: e.Code, Msg: e.Msg}
}

type tokenResponse struct {
	envelope
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"` // seconds
}

// tenantToken returns the cached tenant token, fetching a new one when
// it is missing or about to expire
func (c *Client) tenantToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, nil
	}

	body := map[string]string{
		"app_id":     c.cfg.AppID,
		"app_secret": c.cfg.AppSecret,
	}
	var resp tokenResponse
	if err := c.httpClient.DoJSON(ctx, "POST", c.cfg.BaseURL+"/auth/v3/tenant_access_token/internal", nil, body, &resp); err != nil {
		return "", fmt.Errorf("fetch tenant token: %w", err)
	}
	if err := resp.err(); err != nil {
		return "", fmt.Errorf("fetch tenant token: %w", err)
	}

	ttl := time.Duration(resp.Expire)*time.Second - tokenMargin
	if ttl <= 0 {
		ttl = time.Minute
	}
	c.token = resp.TenantAccessToken
	c.expiresAt = c.now().Add(ttl)

	c.logger.WithField("expires_at", c.expiresAt).Debug("Tenant token refreshed")
	return c.token, nil
}

func (c *Client) dropToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenMu.Unlock()
}

// call sends an authorized request and decodes the envelope into out.
// A rejected token is refreshed once.
func (c *Client) call(ctx context.Context, method, path string, in interface{}, out interface{ err() error }) error {
	for attempt := 0; ; attempt++ {
		token, err := c.tenantToken(ctx)
		if err != nil {
			return err
		}

		headers := map[string]string{"Authorization": "Bearer " + token}
		if err := c.httpClient.DoJSON(ctx, method, c.cfg.BaseURL+path, headers, in, out); err != nil {
			return err
		}

		err = out.err()
		var apiErr *APIError
		if attempt == 0 && errors.As(err, &apiErr) && tokenInvalidCodes[apiErr.Code] {
			c.logger.WithField("code", apiErr.Code).Warn("Tenant token rejected, refreshing")
			c.dropToken()
			continue
		}
		return err
	}
}

// table maps a collection to its bitable table id
func (c *Client) table(collection contracts.Collection) (string, error) {
	var id string
	switch collection {
	case contracts.CollectionProjects:
		id = c.cfg.Tables.Projects
	case contracts.CollectionInvestors:
		id = c.cfg.Tables.Investors
	case contracts.CollectionInvestments:
		id = c.cfg.Tables.Investments
	case contracts.CollectionConfig:
		id = c.cfg.Tables.Config
	}
	if id == "" {
		return "", fmt.Errorf("no feishu table configured for %s", collection)
	}
	return id, nil
}

func (c *Client) recordsPath(tableID string) string {
	return fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/records", c.cfg.AppToken, tableID)
}
