package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"visitethiopia/api/internal/middleware"
	"visitethiopia/api/internal/response"
	"visitethiopia/api/internal/service"
)

type profileRequest struct {
	service.ProfileInput
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

func (h HandlerSet) Profile(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)
	response.Success(c, http.StatusOK, response.Envelope{
		Data: gin.H{"user": toUserResponse(identity.User)},
	})
}

func (h HandlerSet) UpdateProfile(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, msgBadBody)
		return
	}
	if req.Password != nil || req.PasswordConfirm != nil {
		response.Fail(c, http.StatusBadRequest, "This route is not for password updates. Please use /updatePassword.")
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), identity.User.ID, req.ProfileInput)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, response.Envelope{
		Data: gin.H{"user": toUserResponse(user)},
	})
}

func (h HandlerSet) DeleteProfile(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	if err := h.users.Deactivate(c.Request.Context(), identity.User.ID); err != nil {
		response.Error(c, h.log, err)
		return
	}

	http.SetCookie(c.Writer, h.auth.Logout())
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	users, err := h.users.List(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	items := make([]userResponse, 0, len(users))
	for _, user := range users {
		items = append(items, toUserResponse(user))
	}

	response.Success(c, http.StatusOK, response.Envelope{
		Data: gin.H{"results": len(items), "users": items},
	})
}

func (h HandlerSet) AdminGetUser(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, response.Envelope{
		Data: gin.H{"user": toUserResponse(user)},
	})
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h HandlerSet) AdminUpdateUser(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, msgBadBody)
		return
	}

	user, err := h.users.UpdateRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, response.Envelope{
		Data: gin.H{"user": toUserResponse(user)},
	})
}

func (h HandlerSet) AdminDeleteUser(c *gin.Context) {
	if err := h.users.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
