package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gdtech/hackathon/internal/contracts"
)

// Response is the envelope every endpoint answers with
// ⭐ SSOT: 接口返回格式只在这里定义
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// errorStatus maps a sentinel to its HTTP status and user-facing message
type errorStatus struct {
	target  error
	status  int
	message string
}

var errorStatuses = []errorStatus{
	{contracts.ErrInvalidAmount, http.StatusBadRequest, ""},
	{contracts.ErrStageNotInvestable, http.StatusBadRequest, ""},
	{contracts.ErrInvestorNotFound, http.StatusBadRequest, ""},
	{contracts.ErrProjectNotQualified, http.StatusBadRequest, ""},
	{contracts.ErrInsufficientBudget, http.StatusBadRequest, ""},
	{contracts.ErrInvalidCredentials, http.StatusUnauthorized, ""},
	{contracts.ErrProjectNotFound, http.StatusNotFound, ""},
	{contracts.ErrExternalRead, http.StatusBadGateway, "数据读取失败，请稍后重试"},
	{contracts.ErrLedgerWrite, http.StatusBadGateway, "投资记录写入失败，请稍后重试"},
	{contracts.ErrLockBusy, http.StatusServiceUnavailable, "系统繁忙，请稍后重试"},
}

// statusFor returns the HTTP status and message for err. Business errors
// carry their own text; infrastructure details are never shown.
func statusFor(err error) (int, string) {
	for _, s := range errorStatuses {
		if errors.Is(err, s.target) {
			if s.message == "" {
				return s.status, s.target.Error()
			}
			return s.status, s.message
		}
	}
	return http.StatusInternalServerError, "服务器内部错误"
}

func respondJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondOK(w http.ResponseWriter, message string, data interface{}) {
	if message == "" {
		message = "success"
	}
	respondJSON(w, http.StatusOK, Response{Code: http.StatusOK, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, Response{Code: status, Message: message})
}

// respondErr answers with the status statusFor assigns to err
func respondErr(w http.ResponseWriter, err error) {
	status, message := statusFor(err)
	respondError(w, status, message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	return dec.Decode(dest)
}
