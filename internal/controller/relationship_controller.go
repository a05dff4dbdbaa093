package controller

import (
	"ichat_backend/internal/service"
	"ichat_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// RelationshipController 连接请求与用户搜索
type RelationshipController struct {
	RelationshipService *service.RelationshipService
}

func NewRelationshipController(relationshipService *service.RelationshipService) *RelationshipController {
	return &RelationshipController{RelationshipService: relationshipService}
}

// ConnectRequest 发起连接请求
type ConnectRequest struct {
	UserID uint `json:"userId" binding:"required" example:"2"`
}

// SearchUsers godoc
// @Summary 搜索用户
// @Description 按姓名或邮箱搜索，结果附带与当前用户的连接状态
// @Tags 连接
// @Produce  json
// @Security ApiKeyAuth
// @Param   q query string true "关键词"
// @Success 200 {object} util.Response{data=[]model.UserSearchResult}
// @Router /api/users/search [get]
func (ctrl *RelationshipController) SearchUsers(c *gin.Context) {
	results, err := ctrl.RelationshipService.SearchUsers(c.Request.Context(), util.CurrentUserID(c), c.Query("q"))
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, results)
}

// RequestConnection godoc
// @Summary 发起连接请求
// @Tags 连接
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body ConnectRequest true "目标用户"
// @Success 201 {object} util.Response{data=model.Relationship}
// @Failure 400 {object} util.Response "不能连接自己"
// @Failure 404 {object} util.Response "用户不存在"
// @Failure 409 {object} util.Response "已存在连接或请求"
// @Router /api/connections [post]
func (ctrl *RelationshipController) RequestConnection(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	rel, err := ctrl.RelationshipService.RequestConnection(c.Request.Context(), util.CurrentUserID(c), req.UserID)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Created(c, "Connection request sent", rel)
}

// AcceptConnection godoc
// @Summary 接受连接请求
// @Tags 连接
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "请求ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "请求不存在或已处理"
// @Router /api/connections/{id}/accept [put]
func (ctrl *RelationshipController) AcceptConnection(c *gin.Context) {
	requestID := util.MustParseUint(c.Param("id"))
	if requestID == 0 {
		util.BadRequest(c, "Invalid request id")
		return
	}
	if err := ctrl.RelationshipService.AcceptConnection(c.Request.Context(), util.CurrentUserID(c), requestID); err != nil {
		util.Fail(c, err)
		return
	}
	util.SuccessMessage(c, "Connection accepted", nil)
}

// ListConnections godoc
// @Summary 已建立的连接
// @Tags 连接
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.UserBrief}
// @Router /api/connections [get]
func (ctrl *RelationshipController) ListConnections(c *gin.Context) {
	users, err := ctrl.RelationshipService.ListAccepted(c.Request.Context(), util.CurrentUserID(c))
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, users)
}

// ListPending godoc
// @Summary 收到的待处理请求
// @Tags 连接
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.ConnectionRequest}
// @Router /api/connections/pending [get]
func (ctrl *RelationshipController) ListPending(c *gin.Context) {
	reqs, err := ctrl.RelationshipService.ListPending(c.Request.Context(), util.CurrentUserID(c))
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, reqs)
}

// ListOutgoing godoc
// @Summary 已发出的待处理请求
// @Tags 连接
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.ConnectionRequest}
// @Router /api/connections/outgoing [get]
func (ctrl *RelationshipController) ListOutgoing(c *gin.Context) {
	reqs, err := ctrl.RelationshipService.ListOutgoing(c.Request.Context(), util.CurrentUserID(c))
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, reqs)
}
