package handler

import (
	"net/http"

	"github.com/blues/ideamarket/internal/logic"
	"github.com/gin-gonic/gin"
)

type TeamHandler struct {
	teamLogic *logic.TeamLogic
}

func NewTeamHandler(teamLogic *logic.TeamLogic) *TeamHandler {
	return &TeamHandler{teamLogic: teamLogic}
}

// GetTeams 团队列表
func (h *TeamHandler) GetTeams(c *gin.Context) {
	page := pageQuery(c)
	teams, total, err := h.teamLogic.List(c.Request.Context(), c.Query("status"), page)
	if err != nil {
		handleError(c, err, CodeFetch)
		return
	}
	PageResponse(c, teams, page, total)
}

// GetTeam 团队详情
func (h *TeamHandler) GetTeam(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	team, err := h.teamLogic.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, CodeFetch)
		return
	}
	SuccessResponse(c, http.StatusOK, "", team)
}

// CreateTeam 创建团队
func (h *TeamHandler) CreateTeam(c *gin.Context) {
	var req logic.CreateTeamInput
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.teamLogic.Create(c.Request.Context(), req)
	if err != nil {
		handleError(c, err, CodeCreation)
		return
	}
	SuccessResponse(c, http.StatusCreated, result.Message, result)
}
