package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/gdtech/hackathon/internal/contracts"
	"github.com/gdtech/hackathon/internal/ledger"
	"github.com/gdtech/hackathon/pkg/logger"
)

// ProjectService serves ranked project reads
type ProjectService interface {
	Stage(ctx context.Context) contracts.Stage
	GetAllProjects(ctx context.Context) ([]*contracts.Project, error)
	GetProjectByID(ctx context.Context, id int64) (*contracts.Project, error)
}

// InvestorService serves investor login and profiles
type InvestorService interface {
	Login(ctx context.Context, username, password string) (*contracts.Investor, error)
	GetInvestor(ctx context.Context, username string) (*contracts.Investor, error)
}

// Investor records investments
type Investor interface {
	Invest(ctx context.Context, req ledger.InvestRequest) (*ledger.Receipt, error)
}

// HackathonHandler handles the competition endpoints
// ⭐ SSOT: 大赛 API 处理只在这个结构体
type HackathonHandler struct {
	projects  ProjectService
	investors InvestorService
	ledger    Investor
	logger    *logger.Logger
}

// NewHackathonHandler creates a new hackathon handler
func NewHackathonHandler(projects ProjectService, investors InvestorService, l Investor, log *logger.Logger) *HackathonHandler {
	return &HackathonHandler{
		projects:  projects,
		investors: investors,
		ledger:    l,
		logger:    log,
	}
}

// StageInfo is the stage endpoint payload
type StageInfo struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Time      string `json:"time"`
	Rule      string `json:"rule"`
	CanInvest bool   `json:"canInvest"`
}

// GetStage returns the current competition stage
// GET /hackathon/stage
func (h *HackathonHandler) GetStage(w http.ResponseWriter, r *http.Request) {
	s := h.projects.Stage(r.Context())
	respondOK(w, "", StageInfo{
		Code:      s.Code(),
		Name:      s.Name(),
		Time:      s.Time(),
		Rule:      s.Rule(),
		CanInvest: s.CanInvest(),
	})
}

// GetProjects returns every enabled project, ranked
// GET /hackathon/projects
func (h *HackathonHandler) GetProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.GetAllProjects(r.Context())
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("Failed to list projects")
		respondErr(w, err)
		return
	}
	respondOK(w, "", projects)
}

// GetProject returns one ranked project
// GET /hackathon/projects/{id}
func (h *HackathonHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "项目ID格式错误")
		return
	}

	project, err := h.projects.GetProjectByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, contracts.ErrProjectNotFound) {
			h.logger.WithContext(r.Context()).WithError(err).WithField("project", id).Error("Failed to get project")
		}
		respondErr(w, err)
		return
	}
	respondOK(w, "", project)
}

// LoginRequest is the login body
type LoginRequest struct {
	Username string `json:"username" validate:"required,len=4,number"`
	Password string `json:"password" validate:"required,len=6,alphanum,lowercase"`
}

// Login authenticates an investor
// POST /hackathon/login
func (h *HackathonHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}

	if msg := validateRequest(req); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	investor, err := h.investors.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if !errors.Is(err, contracts.ErrInvalidCredentials) {
			h.logger.WithContext(r.Context()).WithError(err).Error("Login failed")
		}
		respondErr(w, err)
		return
	}
	respondOK(w, "登录成功", investor)
}

// GetInvestor returns an investor profile with investment history
// GET /hackathon/investor/{username}
func (h *HackathonHandler) GetInvestor(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	investor, err := h.investors.GetInvestor(r.Context(), username)
	switch {
	case errors.Is(err, contracts.ErrInvestorNotFound):
		respondError(w, http.StatusNotFound, contracts.ErrInvestorNotFound.Error())
		return
	case err != nil:
		h.logger.WithContext(r.Context()).WithError(err).WithField("username", username).Error("Failed to get investor")
		respondErr(w, err)
		return
	}
	respondOK(w, "", investor)
}

// InvestRequest is the invest body. Names sent by the client are ignored;
// the ledger reads them from the store.
type InvestRequest struct {
	ProjectID        *int64 `json:"projectId" validate:"required"`
	Amount           *int64 `json:"amount" validate:"required"`
	InvestorUsername string `json:"investorUsername" validate:"required"`
	InvestorName     string `json:"investorName,omitempty"`
	ProjectName      string `json:"projectName,omitempty"`
}

// Invest records an investment
// POST /hackathon/invest
func (h *HackathonHandler) Invest(w http.ResponseWriter, r *http.Request) {
	var req InvestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}

	if msg := validateRequest(req); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	receipt, err := h.ledger.Invest(r.Context(), ledger.InvestRequest{
		InvestorUsername: req.InvestorUsername,
		ProjectID:        *req.ProjectID,
		Amount:           *req.Amount,
	})
	if err != nil {
		log := h.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
			"investor": req.InvestorUsername,
			"project":  *req.ProjectID,
			"amount":   *req.Amount,
		})
		if contracts.IsBusinessError(err) {
			log.Warn("Investment rejected")
		} else {
			log.Error("Investment failed")
		}
		respondErr(w, err)
		return
	}

	respondOK(w, "投资成功", receipt)
}
