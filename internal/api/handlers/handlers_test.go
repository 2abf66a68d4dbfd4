package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdtech/hackathon/internal/contracts"
	"github.com/gdtech/hackathon/internal/ledger"
	"github.com/gdtech/hackathon/internal/realtime"
	"github.com/gdtech/hackathon/pkg/logger"
)

type fakeProjects struct {
	stage    contracts.Stage
	projects []*contracts.Project
	err      error
}

func (f *fakeProjects) Stage(context.Context) contracts.Stage { return f.stage }

func (f *fakeProjects) GetAllProjects(context.Context) ([]*contracts.Project, error) {
	return f.projects, f.err
}

func (f *fakeProjects) GetProjectByID(_ context.Context, id int64) (*contracts.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("project %d: %w", id, contracts.ErrProjectNotFound)
}

type fakeInvestors struct {
	investor *contracts.Investor
	err      error
	password string
}

func (f *fakeInvestors) Login(_ context.Context, username, password string) (*contracts.Investor, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.investor == nil || f.investor.Username != username || f.password != password {
		return nil, contracts.ErrInvalidCredentials
	}
	return f.investor, nil
}

func (f *fakeInvestors) GetInvestor(_ context.Context, username string) (*contracts.Investor, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.investor == nil || f.investor.Username != username {
		return nil, contracts.ErrInvestorNotFound
	}
	return f.investor, nil
}

type fakeLedger struct {
	got ledger.InvestRequest
	err error
}

func (f *fakeLedger) Invest(_ context.Context, req ledger.InvestRequest) (*ledger.Receipt, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &ledger.Receipt{InvestorUsername: req.InvestorUsername, ProjectID: req.ProjectID, Amount: req.Amount, RemainingBudget: 40, BudgetSynced: true}, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func serve(t *testing.T, h http.HandlerFunc, method, path, pattern, body string) (int, envelope) {
	t.Helper()
	r := mux.NewRouter()
	r.HandleFunc(pattern, h).Methods(method)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func newHandler(p *fakeProjects, i *fakeInvestors, l *fakeLedger) *HackathonHandler {
	if p == nil {
		p = &fakeProjects{stage: contracts.StageSelection}
	}
	if i == nil {
		i = &fakeInvestors{}
	}
	if l == nil {
		l = &fakeLedger{}
	}
	return NewHackathonHandler(p, i, l, logger.Nop())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{fmt.Errorf("%w (stage lock)", contracts.ErrStageNotInvestable), http.StatusBadRequest, contracts.ErrStageNotInvestable.Error()},
		{fmt.Errorf("%w: requested 60, remaining 40", contracts.ErrInsufficientBudget), http.StatusBadRequest, contracts.ErrInsufficientBudget.Error()},
		{contracts.ErrInvalidAmount, http.StatusBadRequest, contracts.ErrInvalidAmount.Error()},
		{contracts.ErrInvestorNotFound, http.StatusBadRequest, contracts.ErrInvestorNotFound.Error()},
		{contracts.ErrProjectNotQualified, http.StatusBadRequest, contracts.ErrProjectNotQualified.Error()},
		{contracts.ErrInvalidCredentials, http.StatusUnauthorized, contracts.ErrInvalidCredentials.Error()},
		{fmt.Errorf("project 9: %w", contracts.ErrProjectNotFound), http.StatusNotFound, contracts.ErrProjectNotFound.Error()},
		{fmt.Errorf("%w: projects: timeout", contracts.ErrExternalRead), http.StatusBadGateway, "数据读取失败，请稍后重试"},
		{fmt.Errorf("%w: 500", contracts.ErrLedgerWrite), http.StatusBadGateway, "投资记录写入失败，请稍后重试"},
		{fmt.Errorf("%w: redis down", contracts.ErrLockBusy), http.StatusServiceUnavailable, "系统繁忙，请稍后重试"},
		{errors.New("boom"), http.StatusInternalServerError, "服务器内部错误"},
	}

	for _, tt := range tests {
		status, message := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.message, message, tt.err.Error())
	}
}

func TestGetStage(t *testing.T) {
	h := newHandler(&fakeProjects{stage: contracts.StageInvestment}, nil, nil)
	status, env := serve(t, h.GetStage, http.MethodGet, "/hackathon/stage", "/hackathon/stage", "")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 200, env.Code)

	var info StageInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, "investment", info.Code)
	assert.Equal(t, "投资期", info.Name)
	assert.True(t, info.CanInvest)
}

func TestGetProjects(t *testing.T) {
	projects := []*contracts.Project{{ID: 1, Name: "Alpha", Rank: 1}, {ID: 2, Name: "Beta", Rank: 2}}
	h := newHandler(&fakeProjects{projects: projects}, nil, nil)

	status, env := serve(t, h.GetProjects, http.MethodGet, "/hackathon/projects", "/hackathon/projects", "")
	require.Equal(t, http.StatusOK, status)

	var got []contracts.Project
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Alpha", got[0].Name)
}

func TestGetProjectsReadFailure(t *testing.T) {
	h := newHandler(&fakeProjects{err: fmt.Errorf("%w: projects: 503", contracts.ErrExternalRead)}, nil, nil)

	status, env := serve(t, h.GetProjects, http.MethodGet, "/hackathon/projects", "/hackathon/projects", "")
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, http.StatusBadGateway, env.Code)
	assert.NotContains(t, env.Message, "503")
}

func TestGetProject(t *testing.T) {
	h := newHandler(&fakeProjects{projects: []*contracts.Project{{ID: 7, Name: "Seven"}}}, nil, nil)
	pattern := "/hackathon/projects/{id}"

	status, env := serve(t, h.GetProject, http.MethodGet, "/hackathon/projects/7", pattern, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), "Seven")

	status, env = serve(t, h.GetProject, http.MethodGet, "/hackathon/projects/8", pattern, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "项目不存在", env.Message)

	status, _ = serve(t, h.GetProject, http.MethodGet, "/hackathon/projects/abc", pattern, "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLogin(t *testing.T) {
	investors := &fakeInvestors{investor: &contracts.Investor{Username: "1001", Name: "Ann"}, password: "abc123"}
	h := newHandler(nil, investors, nil)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"ok", `{"username":"1001","password":"abc123"}`, http.StatusOK},
		{"wrong password", `{"username":"1001","password":"abc124"}`, http.StatusUnauthorized},
		{"unknown user", `{"username":"1002","password":"abc123"}`, http.StatusUnauthorized},
		{"username format", `{"username":"10a1","password":"abc123"}`, http.StatusBadRequest},
		{"password format", `{"username":"1001","password":"ABC123"}`, http.StatusBadRequest},
		{"missing password", `{"username":"1001"}`, http.StatusBadRequest},
		{"bad json", `{"username":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := serve(t, h.Login, http.MethodPost, "/hackathon/login", "/hackathon/login", tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.status, env.Code)
		})
	}
}

func TestLoginHidesPassword(t *testing.T) {
	investors := &fakeInvestors{investor: &contracts.Investor{Username: "1001", Password: "abc123"}, password: "abc123"}
	h := newHandler(nil, investors, nil)

	_, env := serve(t, h.Login, http.MethodPost, "/hackathon/login", "/hackathon/login", `{"username":"1001","password":"abc123"}`)
	assert.Equal(t, "登录成功", env.Message)
	assert.NotContains(t, string(env.Data), "abc123")
}

func TestGetInvestor(t *testing.T) {
	investors := &fakeInvestors{investor: &contracts.Investor{Username: "1001", Name: "Ann"}}
	h := newHandler(nil, investors, nil)
	pattern := "/hackathon/investor/{username}"

	status, env := serve(t, h.GetInvestor, http.MethodGet, "/hackathon/investor/1001", pattern, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), "Ann")

	status, _ = serve(t, h.GetInvestor, http.MethodGet, "/hackathon/investor/1002", pattern, "")
	assert.Equal(t, http.StatusNotFound, status)

	h = newHandler(nil, &fakeInvestors{err: fmt.Errorf("%w: investors", contracts.ErrExternalRead)}, nil)
	status, _ = serve(t, h.GetInvestor, http.MethodGet, "/hackathon/investor/1001", pattern, "")
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestInvest(t *testing.T) {
	l := &fakeLedger{}
	h := newHandler(nil, nil, l)

	body := `{"projectId":3,"amount":60,"investorUsername":"1001","investorName":"Ann","projectName":"Gamma"}`
	status, env := serve(t, h.Invest, http.MethodPost, "/hackathon/invest", "/hackathon/invest", body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "投资成功", env.Message)
	assert.Equal(t, ledger.InvestRequest{InvestorUsername: "1001", ProjectID: 3, Amount: 60}, l.got)

	var receipt ledger.Receipt
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	assert.Equal(t, int64(40), receipt.RemainingBudget)
}

func TestInvestValidation(t *testing.T) {
	h := newHandler(nil, nil, nil)
	for _, body := range []string{
		`{"amount":60,"investorUsername":"1001"}`,
		`{"projectId":3,"investorUsername":"1001"}`,
		`{"projectId":3,"amount":60}`,
		`not json`,
	} {
		status, _ := serve(t, h.Invest, http.MethodPost, "/hackathon/invest", "/hackathon/invest", body)
		assert.Equal(t, http.StatusBadRequest, status, body)
	}
}

func TestInvestErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{contracts.ErrInvalidAmount, http.StatusBadRequest},
		{fmt.Errorf("%w (stage lock)", contracts.ErrStageNotInvestable), http.StatusBadRequest},
		{contracts.ErrProjectNotQualified, http.StatusBadRequest},
		{fmt.Errorf("%w: bitable 500", contracts.ErrLedgerWrite), http.StatusBadGateway},
		{errors.New("lock backend unavailable"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		h := newHandler(nil, nil, &fakeLedger{err: tt.err})
		status, env := serve(t, h.Invest, http.MethodPost, "/hackathon/invest", "/hackathon/invest", `{"projectId":1,"amount":0,"investorUsername":"1001"}`)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.status, env.Code)
	}
}

type fakeCache struct {
	flushed   int
	investors []string
	projects  []int64
	lists     int
	err       error
}

func (f *fakeCache) Flush(context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.flushed++
	return 5, nil
}

func (f *fakeCache) InvalidateInvestor(_ context.Context, username string) {
	f.investors = append(f.investors, username)
}

func (f *fakeCache) InvalidateProject(_ context.Context, id int64) {
	f.projects = append(f.projects, id)
}
func (f *fakeCache) InvalidateProjects(context.Context) { f.lists++ }

type publishCounter struct{ events []realtime.Event }

func (p *publishCounter) Publish(evt realtime.Event) { p.events = append(p.events, evt) }

func TestCacheHandler(t *testing.T) {
	c := &fakeCache{}
	pub := &publishCounter{}
	h := NewCacheHandler(c, pub, logger.Nop())

	status, env := serve(t, h.ClearAll, http.MethodPost, "/hackathon/cache/clear", "/hackathon/cache/clear", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"cleared":5}`, string(env.Data))
	require.Len(t, pub.events, 1)
	assert.Equal(t, realtime.EventCacheFlushed, pub.events[0].Type)

	status, env = serve(t, h.ClearInvestor, http.MethodPost, "/hackathon/cache/clear/investor/1001", "/hackathon/cache/clear/investor/{username}", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "投资人 1001 的缓存已清除", env.Message)
	assert.Equal(t, []string{"1001"}, c.investors)

	status, _ = serve(t, h.ClearProject, http.MethodPost, "/hackathon/cache/clear/project/3", "/hackathon/cache/clear/project/{id}", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []int64{3}, c.projects)
	assert.Equal(t, 1, c.lists)

	status, _ = serve(t, h.ClearProject, http.MethodPost, "/hackathon/cache/clear/project/x", "/hackathon/cache/clear/project/{id}", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCacheHandlerFlushFailure(t *testing.T) {
	h := NewCacheHandler(&fakeCache{err: errors.New("redis down")}, nil, logger.Nop())
	status, env := serve(t, h.ClearAll, http.MethodPost, "/hackathon/cache/clear", "/hackathon/cache/clear", "")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotContains(t, env.Message, "redis")
}

func TestHealth(t *testing.T) {
	h := NewHealthHandler("hackathon", map[string]Check{
		"store": func(context.Context) error { return nil },
	})
	status, env := serve(t, h.Health, http.MethodGet, "/health", "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok","service":"hackathon","checks":{"store":"ok"}}`, string(env.Data))

	h = NewHealthHandler("hackathon", map[string]Check{
		"store": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	status, env = serve(t, h.Health, http.MethodGet, "/health", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, string(env.Data), `"redis":"connection refused"`)
	assert.Contains(t, string(env.Data), `"degraded"`)
}

func TestRequestValidationMessages(t *testing.T) {
	tests := []struct {
		req  interface{}
		want string
	}{
		{LoginRequest{Username: "1001", Password: "abc123"}, ""},
		{LoginRequest{Password: "abc123"}, "账号不能为空"},
		{LoginRequest{Username: "10a1", Password: "abc123"}, "账号必须是4位数字"},
		{LoginRequest{Username: "10011", Password: "abc123"}, "账号必须是4位数字"},
		{LoginRequest{Username: "1001"}, "密码不能为空"},
		{LoginRequest{Username: "1001", Password: "ABC123"}, "密码必须是6位数字和小写字母"},
		{LoginRequest{Username: "1001", Password: "abc-12"}, "密码必须是6位数字和小写字母"},
		{InvestRequest{Amount: ptr64(1), InvestorUsername: "1001"}, "项目ID不能为空"},
		{InvestRequest{ProjectID: ptr64(1), InvestorUsername: "1001"}, "投资金额不能为空"},
		{InvestRequest{ProjectID: ptr64(1), Amount: ptr64(5)}, "投资人账号不能为空"},
		{InvestRequest{ProjectID: ptr64(1), Amount: ptr64(0), InvestorUsername: "1001"}, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, validateRequest(tt.req), "%+v", tt.req)
	}
}

func ptr64(v int64) *int64 { return &v }
