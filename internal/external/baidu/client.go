package baidu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/gdtech/hackathon/internal/contracts"
	"github.com/gdtech/hackathon/pkg/config"
	"github.com/gdtech/hackathon/pkg/httputil"
	"github.com/gdtech/hackathon/pkg/logger"
)

const dateLayout = "20060102"

// ErrUnknownAccount is returned for an analytics account with no credentials
var ErrUnknownAccount = errors.New("baidu tongji account not configured")

// APIError is a non-zero header status in a report response
type APIError struct {
	Status int
	Desc   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("baidu tongji error %d: %s", e.Status, e.Desc)
}

// tokenRejected reports whether the status means the access token is invalid
func (e *APIError) tokenRejected() bool {
	return e.Status == 200106 || e.Status == 2
}

type credential struct {
	config.BaiduAccount
	expiresAt time.Time // zero when unknown

	refreshFailures   int
	lastRefreshFailed time.Time
}

// Client reads visitor counts from Baidu Tongji for several accounts
// ⭐ SSOT: 百度统计 API 调用只在这个客户端
type Client struct {
	httpClient *httputil.Client
	tokenURL   string
	apiURL     string
	logger     *logger.Logger
	now        func() time.Time

	mu       sync.Mutex
	accounts map[string]*credential
}

// NewClient creates a client over the configured accounts
func NewClient(cfg config.BaiduConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	accounts := make(map[string]*credential, len(cfg.Accounts))
	for name, acc := range cfg.Accounts {
		accounts[name] = &credential{BaiduAccount: acc}
	}
	return &Client{
		httpClient: httpClient,
		tokenURL:   cfg.TokenURL,
		apiURL:     cfg.APIURL,
		logger:     log.Component("baidu"),
		now:        time.Now,
		accounts:   accounts,
	}
}

var _ contracts.AnalyticsProvider = (*Client)(nil)

// HasAccount reports whether account has credentials
func (c *Client) HasAccount(account string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.accounts[account]
	return ok
}

// Accounts returns the configured account names, sorted
func (c *Client) Accounts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.accounts))
	for name := range c.accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CumulativeVisitorCount sums daily unique visitors of siteID between from
// and to (inclusive dates). A rejected token is refreshed and the call retried once.
func (c *Client) CumulativeVisitorCount(ctx context.Context, account, siteID string, from, to time.Time) (int64, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.accessToken(ctx, account)
		if err != nil {
			return 0, err
		}

		q := url.Values{}
		q.Set("access_token", token)
		q.Set("site_id", siteID)
		q.Set("start_date", from.Format(dateLayout))
		q.Set("end_date", to.Format(dateLayout))
		q.Set("metrics", "visitor_count")
		q.Set("method", "overview/getTimeTrendRpt")
		q.Set("gran", "day")
		q.Set("max_results", "0")

		var resp reportResponse
		if err := c.httpClient.DoJSON(ctx, http.MethodGet, c.apiURL+"?"+q.Encode(), nil, nil, &resp); err != nil {
			return 0, fmt.Errorf("report for site %s: %w", siteID, err)
		}

		uv, err := resp.visitors()
		var apiErr *APIError
		if attempt == 0 && errors.As(err, &apiErr) && apiErr.tokenRejected() {
			c.logger.WithField("account", account).Warn("Access token rejected, refreshing")
			if err := c.refresh(ctx, account); err != nil {
				return 0, err
			}
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("report for site %s: %w", siteID, err)
		}

		c.logger.WithFields(map[string]interface{}{
			"account": account,
			"site_id": siteID,
			"uv":      uv,
		}).Debug("Visitor count fetched")
		return uv, nil
	}
}

// accessToken returns a usable token, obtaining or refreshing one first when needed
func (c *Client) accessToken(ctx context.Context, account string) (string, error) {
	c.mu.Lock()
	cred, ok := c.accounts[account]
	if !ok {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownAccount, account)
	}
	token := cred.AccessToken
	expired := !cred.expiresAt.IsZero() && !c.now().Before(cred.expiresAt)
	c.mu.Unlock()

	if token != "" && !expired {
		return token, nil
	}
	if err := c.refresh(ctx, account); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accounts[account].AccessToken, nil
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// refresh exchanges the refresh token, or the client credentials when
// there is no refresh token, for a new access token
func (c *Client) refresh(ctx context.Context, account string) error {
	c.mu.Lock()
	cred, ok := c.accounts[account]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAccount, account)
	}
	if c.skipRefresh(cred) {
		failures := cred.refreshFailures
		c.mu.Unlock()
		return fmt.Errorf("%w: %s after %d failures", ErrRefreshSuspended, account, failures)
	}
	form := url.Values{}
	form.Set("client_id", cred.ClientID)
	form.Set("client_secret", cred.ClientSecret)
	if cred.RefreshToken != "" {
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", cred.RefreshToken)
	} else {
		form.Set("grant_type", "client_credentials")
	}
	c.mu.Unlock()

	tr, err := c.requestToken(ctx, form)
	if err != nil {
		failures := c.markRefreshFailed(cred)
		c.logger.WithError(err).WithFields(map[string]interface{}{
			"account":  account,
			"failures": failures,
		}).Error("Access token refresh failed")
		return fmt.Errorf("refresh token for %s: %w", account, err)
	}

	c.mu.Lock()
	cred.refreshFailures = 0
	cred.lastRefreshFailed = time.Time{}
	cred.AccessToken = tr.AccessToken
	if tr.RefreshToken != "" {
		cred.RefreshToken = tr.RefreshToken
	}
	if tr.ExpiresIn > 0 {
		cred.expiresAt = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	c.mu.Unlock()

	c.logger.WithFields(map[string]interface{}{
		"account":    account,
		"grant_type": form.Get("grant_type"),
	}).Info("Access token refreshed")
	return nil
}

func (c *Client) requestToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	resp, err := c.httpClient.PostForm(ctx, c.tokenURL, form)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%s %s", tr.Error, tr.ErrorDescription)
	}
	return &tr, nil
}
