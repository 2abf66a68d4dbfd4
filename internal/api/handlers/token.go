package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gdtech/hackathon/internal/external/baidu"
	"github.com/gdtech/hackathon/pkg/logger"
)

// TokenManager holds the analytics account tokens
type TokenManager interface {
	UpdateToken(account, accessToken, refreshToken string, expiresIn time.Duration) error
	Status(account string) (baidu.TokenStatus, error)
}

// TokenHandler lets operators inspect and replace Baidu Tongji tokens
// when automatic refresh keeps failing
type TokenHandler struct {
	tokens TokenManager
	logger *logger.Logger
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(tokens TokenManager, log *logger.Logger) *TokenHandler {
	return &TokenHandler{tokens: tokens, logger: log}
}

// TokenUpdateRequest is the token update body; expiresIn is in seconds
type TokenUpdateRequest struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    *int64 `json:"expiresIn" validate:"omitempty,gt=0"`
}

// UpdateToken installs a token obtained by hand
// POST /hackathon/token/update/{account}
func (h *TokenHandler) UpdateToken(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]

	var req TokenUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}
	if msg := validateRequest(req); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	var expiresIn time.Duration
	if req.ExpiresIn != nil {
		expiresIn = time.Duration(*req.ExpiresIn) * time.Second
	}

	if err := h.tokens.UpdateToken(account, req.AccessToken, req.RefreshToken, expiresIn); err != nil {
		h.respondTokenErr(w, r, account, err)
		return
	}

	h.logger.WithContext(r.Context()).WithField("account", account).Info("Analytics token updated via API")
	respondOK(w, "Token更新成功", map[string]string{"accountName": account})
}

// GetStatus reports the token state of one account
// GET /hackathon/token/status/{account}
func (h *TokenHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]

	st, err := h.tokens.Status(account)
	if err != nil {
		h.respondTokenErr(w, r, account, err)
		return
	}
	respondOK(w, "", st)
}

func (h *TokenHandler) respondTokenErr(w http.ResponseWriter, r *http.Request, account string, err error) {
	if errors.Is(err, baidu.ErrUnknownAccount) {
		respondError(w, http.StatusNotFound, "账号 "+account+" 不存在")
		return
	}
	h.logger.WithContext(r.Context()).WithError(err).WithField("account", account).Error("Token operation failed")
	respondError(w, http.StatusInternalServerError, "服务器内部错误")
}
