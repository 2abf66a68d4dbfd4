package baidu

import (
	"errors"
	"fmt"
	"time"
)

const (
	// maxRefreshFailures consecutive failures suspend automatic refresh
	maxRefreshFailures = 3
	// refreshCooldown is how long refresh stays suspended after the last failure
	refreshCooldown = 30 * time.Minute
	// defaultTokenLifetime applies to injected tokens with no expiry
	defaultTokenLifetime = 30 * 24 * time.Hour
)

// ErrRefreshSuspended is returned while automatic refresh is backing off
var ErrRefreshSuspended = errors.New("baidu tongji token refresh suspended")

// TokenStatus describes the credentials of one account
type TokenStatus struct {
	Account            string     `json:"accountName"`
	HasAccessToken     bool       `json:"hasAccessToken"`
	HasRefreshToken    bool       `json:"hasRefreshToken"`
	RefreshFailedCount int        `json:"refreshFailedCount"`
	LastRefreshFailed  *time.Time `json:"lastRefreshFailedTime,omitempty"`
	SkipRefresh        bool       `json:"shouldSkipRefresh"`
	ExpiresAt          *time.Time `json:"tokenExpires,omitempty"`
	Expired            bool       `json:"isExpired"`
	RemainingSeconds   int64      `json:"remainingSeconds"`
}

// UpdateToken installs an operator-supplied token and clears the refresh
// backoff. An empty refreshToken keeps the current one; expiresIn <= 0
// means thirty days.
func (c *Client) UpdateToken(account, accessToken, refreshToken string, expiresIn time.Duration) error {
	if accessToken == "" {
		return fmt.Errorf("access token is required")
	}
	if expiresIn <= 0 {
		expiresIn = defaultTokenLifetime
	}

	c.mu.Lock()
	cred, ok := c.accounts[account]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAccount, account)
	}
	cred.AccessToken = accessToken
	if refreshToken != "" {
		cred.RefreshToken = refreshToken
	}
	cred.expiresAt = c.now().Add(expiresIn)
	cred.refreshFailures = 0
	cred.lastRefreshFailed = time.Time{}
	c.mu.Unlock()

	c.logger.WithFields(map[string]interface{}{
		"account":    account,
		"expires_in": expiresIn,
	}).Info("Access token updated manually")
	return nil
}

// Status reports the token state of account
func (c *Client) Status(account string) (TokenStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cred, ok := c.accounts[account]
	if !ok {
		return TokenStatus{}, fmt.Errorf("%w: %s", ErrUnknownAccount, account)
	}

	st := TokenStatus{
		Account:            account,
		HasAccessToken:     cred.AccessToken != "",
		HasRefreshToken:    cred.RefreshToken != "",
		RefreshFailedCount: cred.refreshFailures,
		SkipRefresh:        c.skipRefresh(cred),
	}
	if !cred.lastRefreshFailed.IsZero() {
		t := cred.lastRefreshFailed
		st.LastRefreshFailed = &t
	}
	if !cred.expiresAt.IsZero() {
		t := cred.expiresAt
		remaining := t.Sub(c.now())
		st.ExpiresAt = &t
		st.Expired = remaining <= 0
		st.RemainingSeconds = int64(remaining / time.Second)
	}
	return st, nil
}

// skipRefresh reports whether refresh is backing off. c.mu must be held.
func (c *Client) skipRefresh(cred *credential) bool {
	if cred.refreshFailures < maxRefreshFailures {
		return false
	}
	return c.now().Sub(cred.lastRefreshFailed) < refreshCooldown
}

func (c *Client) markRefreshFailed(cred *credential) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cred.refreshFailures++
	cred.lastRefreshFailed = c.now()
	return cred.refreshFailures
}
