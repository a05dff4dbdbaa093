package controller

import (
	"errors"
	"ichat_backend/internal/service"
	"ichat_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

// multipart 表单除文件外的额外余量
const formOverhead = 1 << 20

// ChatController 会话、消息与群成员相关的HTTP请求
type ChatController struct {
	ConversationService *service.ConversationService
	GroupService        *service.GroupService
	MessageService      *service.MessageService
}

func NewChatController(conversationService *service.ConversationService, groupService *service.GroupService, messageService *service.MessageService) *ChatController {
	return &ChatController{
		ConversationService: conversationService,
		GroupService:        groupService,
		MessageService:      messageService,
	}
}

// StartDirectRequest 发起私聊
type StartDirectRequest struct {
	UserID uint `json:"userId" binding:"required" example:"2"`
}

// CreateGroupRequest 创建群聊
type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required,max=100" example:"Study group"`
	Description string `json:"description" example:"Weekly sync"`
	MemberIDs   []uint `json:"memberIds" swaggertype:"array,number" example:"2,3"`
}

// AddMembersRequest 添加群成员
type AddMembersRequest struct {
	ConversationID uint   `json:"conversationId" binding:"required" example:"10"`
	MemberIDs      []uint `json:"memberIds" swaggertype:"array,number" example:"4,5"`
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id := util.MustParseUint(c.Param(name))
	if id == 0 {
		util.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// ListConversations godoc
// @Summary 会话列表
// @Description 有消息的会话按最新消息倒序，其后为尚无消息的会话
// @Tags IM系统
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.ConversationSummary}
// @Router /api/conversations [get]
func (ctrl *ChatController) ListConversations(c *gin.Context) {
	list, err := ctrl.ConversationService.ListConversations(c.Request.Context(), util.CurrentUserID(c))
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, list)
}

// StartDirect godoc
// @Summary 发起私聊
// @Description 两人之间只存在一个私聊会话，已存在时直接返回
// @Tags IM系统
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body StartDirectRequest true "对方用户"
// @Success 200 {object} util.Response{data=object}
// @Failure 403 {object} util.Response "尚未建立连接"
// @Router /api/conversations/direct [post]
func (ctrl *ChatController) StartDirect(c *gin.Context) {
	var req StartDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	id, err := ctrl.ConversationService.StartOneToOne(c.Request.Context(), util.CurrentUserID(c), req.UserID)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, gin.H{"conversationId": id})
}

// GetConversation godoc
// @Summary 会话详情
// @Tags IM系统
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "会话ID"
// @Success 200 {object} util.Response{data=model.ConversationInfo}
// @Failure 404 {object} util.Response
// @Router /api/conversations/{id} [get]
func (ctrl *ChatController) GetConversation(c *gin.Context) {
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}
	info, err := ctrl.ConversationService.GetConversationInfo(c.Request.Context(), util.CurrentUserID(c), convID)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, info)
}

// ListMessages godoc
// @Summary 会话消息
// @Description 按发送时间升序返回，after_id 只返回更新的消息
// @Tags IM系统
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "会话ID"
// @Param   after_id query int false "起始消息ID"
// @Success 200 {object} util.Response{data=[]model.MessageView}
// @Failure 403 {object} util.Response "不是会话成员"
// @Router /api/conversations/{id}/messages [get]
func (ctrl *ChatController) ListMessages(c *gin.Context) {
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}
	afterID := util.MustParseUint(c.Query("after_id"))
	msgs, err := ctrl.MessageService.ListMessages(c.Request.Context(), util.CurrentUserID(c), convID, afterID)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, msgs)
}

// PostMessage godoc
// @Summary 发送消息
// @Description 文本与附件至少一项；附件类型按文件内容识别
// @Tags IM系统
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "会话ID"
// @Param   message formData string false "文本内容"
// @Param   file formData file false "附件"
// @Success 201 {object} util.Response{data=model.Message}
// @Failure 400 {object} util.Response "内容为空或附件不合法"
// @Failure 403 {object} util.Response "不是会话成员"
// @Failure 502 {object} util.Response "文件存储失败"
// @Router /api/conversations/{id}/messages [post]
func (ctrl *ChatController) PostMessage(c *gin.Context) {
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}

	maxBytes := ctrl.MessageService.Policy().MaxBytes
	if maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+formOverhead)
	}

	var upload *service.Upload
	fileHeader, err := c.FormFile("file")
	switch {
	case err == nil:
		f, openErr := fileHeader.Open()
		if openErr != nil {
			util.Fail(c, util.ErrStorage(openErr))
			return
		}
		defer f.Close()
		upload = &service.Upload{Name: fileHeader.Filename, Size: fileHeader.Size, Reader: f}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			util.Fail(c, util.ErrValidation(util.ReasonFileTooLarge, "File is too large"))
			return
		}
		util.BadRequest(c, "Invalid form data")
		return
	}

	msg, err := ctrl.MessageService.PostMessage(c.Request.Context(), util.CurrentUserID(c), convID, c.PostForm("message"), upload)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Created(c, "Message sent", msg)
}

// DeleteMessage godoc
// @Summary 删除消息
// @Description 只能删除自己发送的消息
// @Tags IM系统
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "消息ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/messages/{id} [delete]
func (ctrl *ChatController) DeleteMessage(c *gin.Context) {
	msgID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := ctrl.MessageService.DeleteMessage(c.Request.Context(), util.CurrentUserID(c), msgID); err != nil {
		util.Fail(c, err)
		return
	}
	util.SuccessMessage(c, "Message deleted", nil)
}

// CreateGroup godoc
// @Summary 创建群聊
// @Tags IM系统
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body CreateGroupRequest true "群信息"
// @Success 201 {object} util.Response{data=model.Conversation}
// @Failure 400 {object} util.Response
// @Router /api/groups [post]
func (ctrl *ChatController) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	conv, err := ctrl.ConversationService.CreateGroup(c.Request.Context(), util.CurrentUserID(c), req.Name, req.Description, req.MemberIDs)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Created(c, "Group created", conv)
}

// AvailableMembers godoc
// @Summary 可添加的成员
// @Description 管理员的连接中尚未入群的用户
// @Tags IM系统
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "群ID"
// @Success 200 {object} util.Response{data=[]model.UserBrief}
// @Failure 403 {object} util.Response "不是管理员"
// @Router /api/groups/{id}/available-members [get]
func (ctrl *ChatController) AvailableMembers(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	users, err := ctrl.GroupService.ListAddableMembers(c.Request.Context(), util.CurrentUserID(c), groupID)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, users)
}

// AddMembers godoc
// @Summary 添加群成员
// @Description 已在群内的用户被忽略，返回实际新增人数
// @Tags IM系统
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "群ID"
// @Param   body body AddMembersRequest true "成员"
// @Success 200 {object} util.Response{data=object}
// @Failure 403 {object} util.Response "不是管理员"
// @Router /api/groups/{id}/members [post]
func (ctrl *ChatController) AddMembers(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req AddMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	added, err := ctrl.GroupService.AddMembers(c.Request.Context(), util.CurrentUserID(c), groupID, req.ConversationID, req.MemberIDs)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.SuccessMessage(c, "Members added", gin.H{"added": added})
}

// RemoveMember godoc
// @Summary 移除群成员
// @Tags IM系统
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "群ID"
// @Param   userId path int true "成员ID"
// @Param   conversation_id query int true "会话ID"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "不能移除自己"
// @Failure 403 {object} util.Response "不是管理员"
// @Failure 404 {object} util.Response "不是群成员"
// @Router /api/groups/{id}/members/{userId} [delete]
func (ctrl *ChatController) RemoveMember(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	memberID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	convID := util.MustParseUint(c.Query("conversation_id"))
	if convID == 0 {
		util.BadRequest(c, "conversation_id is required")
		return
	}
	if err := ctrl.GroupService.RemoveMember(c.Request.Context(), util.CurrentUserID(c), groupID, convID, memberID); err != nil {
		util.Fail(c, err)
		return
	}
	util.SuccessMessage(c, "Member removed", nil)
}
