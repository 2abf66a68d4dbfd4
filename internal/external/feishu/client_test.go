package feishu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdtech/hackathon/internal/contracts"
	"github.com/gdtech/hackathon/pkg/config"
	"github.com/gdtech/hackathon/pkg/httputil"
	"github.com/gdtech/hackathon/pkg/logger"
)

type fakeBitable struct {
	tokens   atomic.Int32
	lists    atomic.Int32
	rejectAt atomic.Int32 // list call number that answers with an invalid-token code
	created  map[string]any
	updated  map[string]any
	lastAuth atomic.Value
}

func (f *fakeBitable) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/v3/tenant_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cli_app", body["app_id"])
		n := f.tokens.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"code":                0,
			"tenant_access_token": "t-" + string(rune('0'+n)),
			"expire":              7200,
		})
	})

	mux.HandleFunc("/bitable/v1/apps/app1/tables/tblProjects/records", func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth.Store(r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodGet:
			n := f.lists.Add(1)
			if n == f.rejectAt.Load() {
				json.NewEncoder(w).Encode(map[string]any{"code": 99991663, "msg": "invalid access token"})
				return
			}
			assert.Equal(t, "500", r.URL.Query().Get("page_size"))
			if r.URL.Query().Get("page_token") == "" {
				json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": map[string]any{
					"has_more": true, "page_token": "p2",
					"items": []any{map[string]any{"record_id": "rec1", "fields": map[string]any{"项目ID": 1, "项目名称": "Alpha"}}},
				}})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": map[string]any{
				"has_more": false,
				"items":    []any{map[string]any{"record_id": "rec2", "fields": map[string]any{"项目ID": 2}}},
			}})
		case http.MethodPost:
			var body fieldsBody
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.created = body.Fields
			json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": map[string]any{"record": map[string]any{"record_id": "recNew"}}})
		}
	})

	mux.HandleFunc("/bitable/v1/apps/app1/tables/tblProjects/records/rec1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var body fieldsBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.updated = body.Fields
		json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": map[string]any{"record": map[string]any{"record_id": "rec1"}}})
	})

	mux.HandleFunc("/bitable/v1/apps/app1/tables/tblConfig/records", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 1254005, "msg": "table not found"})
	})

	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeBitable) {
	t.Helper()
	fake := &fakeBitable{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	cfg := config.FeishuConfig{
		AppID:     "cli_app",
		AppSecret: "secret",
		BaseURL:   srv.URL,
		AppToken:  "app1",
		Tables:    config.FeishuTables{Projects: "tblProjects", Config: "tblConfig"},
	}
	return NewClient(cfg, httputil.New(logger.Nop()).DisableRetry(), logger.Nop()), fake
}

func TestListRecordsFollowsPages(t *testing.T) {
	c, fake := newTestClient(t)

	rows, err := c.ListRecords(context.Background(), contracts.CollectionProjects)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "rec1", rows[0].ID)
	assert.Equal(t, int64(1), contracts.FieldInt64(rows[0].Fields, contracts.FieldProjectID))
	assert.Equal(t, "Alpha", contracts.FieldString(rows[0].Fields, contracts.FieldProjectName))
	assert.Equal(t, "rec2", rows[1].ID)

	assert.Equal(t, int32(1), fake.tokens.Load(), "token fetched once and reused")
	assert.Equal(t, "Bearer t-1", fake.lastAuth.Load())
}

func TestTokenCachedUntilExpiry(t *testing.T) {
	c, fake := newTestClient(t)
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := c.ListRecords(ctx, contracts.CollectionProjects)
	require.NoError(t, err)
	_, err = c.ListRecords(ctx, contracts.CollectionProjects)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.tokens.Load())

	// 7200s minus the refresh margin
	now = now.Add(116 * time.Minute)
	_, err = c.ListRecords(ctx, contracts.CollectionProjects)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.tokens.Load())
}

func TestRejectedTokenIsRefreshedOnce(t *testing.T) {
	c, fake := newTestClient(t)
	fake.rejectAt.Store(1)

	rows, err := c.ListRecords(context.Background(), contracts.CollectionProjects)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, int32(2), fake.tokens.Load())
	assert.Equal(t, "Bearer t-2", fake.lastAuth.Load())
}

func TestCreateAndUpdateRecord(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	id, err := c.CreateRecord(ctx, contracts.CollectionProjects, map[string]any{"项目名称": "Beta"})
	require.NoError(t, err)
	assert.Equal(t, "recNew", id)
	assert.Equal(t, "Beta", fake.created["项目名称"])

	require.NoError(t, c.UpdateRecord(ctx, contracts.CollectionProjects, "rec1", map[string]any{"累计UV": 42}))
	assert.Equal(t, float64(42), fake.updated["累计UV"])
}

func TestAPIErrorAndMissingTable(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.ListRecords(ctx, contracts.CollectionConfig)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 1254005, apiErr.Code)

	_, err = c.ListRecords(ctx, contracts.CollectionInvestors)
	assert.ErrorContains(t, err, "no feishu table configured")
}
