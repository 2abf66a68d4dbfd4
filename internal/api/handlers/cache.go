package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/gdtech/hackathon/internal/realtime"
	"github.com/gdtech/hackathon/pkg/logger"
)

// CacheAdmin drops cached reads
type CacheAdmin interface {
	Flush(ctx context.Context) (int, error)
	InvalidateInvestor(ctx context.Context, username string)
	InvalidateProject(ctx context.Context, id int64)
	InvalidateProjects(ctx context.Context)
}

// CacheHandler handles the manual cache endpoints, used after operators
// edit records directly in the base
type CacheHandler struct {
	cache     CacheAdmin
	publisher realtime.Publisher
	logger    *logger.Logger
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(c CacheAdmin, publisher realtime.Publisher, log *logger.Logger) *CacheHandler {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &CacheHandler{
		cache:     c,
		publisher: publisher,
		logger:    log,
	}
}

// ClearAll flushes every cache entry
// POST /hackathon/cache/clear
func (h *CacheHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.cache.Flush(r.Context())
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("Failed to flush cache")
		respondError(w, http.StatusInternalServerError, "清除缓存失败")
		return
	}

	h.publisher.Publish(realtime.Event{Type: realtime.EventCacheFlushed, Timestamp: time.Now()})
	h.logger.WithContext(r.Context()).WithField("count", n).Info("Cache cleared manually")
	respondOK(w, "缓存已清除,数据将从数据源重新加载", map[string]int{"cleared": n})
}

// ClearInvestor drops one investor profile
// POST /hackathon/cache/clear/investor/{username}
func (h *CacheHandler) ClearInvestor(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	h.cache.InvalidateInvestor(r.Context(), username)

	h.logger.WithContext(r.Context()).WithField("username", username).Info("Investor cache cleared")
	respondOK(w, fmt.Sprintf("投资人 %s 的缓存已清除", username), nil)
}

// ClearProject drops one project entry and the ranked list it was cut from
// POST /hackathon/cache/clear/project/{id}
func (h *CacheHandler) ClearProject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "项目ID格式错误")
		return
	}

	h.cache.InvalidateProject(r.Context(), id)
	h.cache.InvalidateProjects(r.Context())

	h.logger.WithContext(r.Context()).WithField("project", id).Info("Project cache cleared")
	respondOK(w, fmt.Sprintf("项目 %d 的缓存已清除", id), nil)
}
