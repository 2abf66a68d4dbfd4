package realtime

import "time"

// EventType names a realtime event
type EventType string

const (
	// EventRankingUpdated is published after an investment changes the ranking
	EventRankingUpdated EventType = "ranking.updated"
	// EventUVSynced is published after a visitor sync run wrote new counts
	EventUVSynced EventType = "uv.synced"
	// EventCacheFlushed is published after an operator cleared the caches
	EventCacheFlushed EventType = "cache.flushed"
)

// Event is one message pushed to websocket subscribers
// ⭐ SSOT: 实时推送消息结构
type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// RankingChange is the payload of EventRankingUpdated
type RankingChange struct {
	ProjectID        int64  `json:"projectId"`
	InvestorUsername string `json:"investorUsername"`
	Amount           int64  `json:"amount"`
}

// SyncResult is the payload of EventUVSynced
type SyncResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Publisher accepts events for broadcast
type Publisher interface {
	Publish(evt Event)
}

// NopPublisher drops every event
type NopPublisher struct{}

// Publish implements Publisher
func (NopPublisher) Publish(Event) {}
