package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"visitethiopia/api/internal/middleware"
	"visitethiopia/api/internal/models"
	"visitethiopia/api/internal/response"
	"visitethiopia/api/internal/service"
	"visitethiopia/api/internal/session"
)

const msgBadBody = "Invalid request body"

type userResponse struct {
	ID         string    `json:"id"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	IsVerified bool      `json:"isVerified"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toUserResponse(user models.User) userResponse {
	return userResponse{
		ID:         user.ID,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Email:      user.Email,
		Role:       string(user.Role),
		IsVerified: user.IsVerified,
		Active:     user.Active,
		CreatedAt:  user.CreatedAt,
	}
}

// sendSession delivers a freshly issued session in the body and as a cookie.
func sendSession(c *gin.Context, code int, user models.User, sess session.Session) {
	http.SetCookie(c.Writer, sess.Cookie)
	response.Success(c, code, response.Envelope{
		Token: sess.Token,
		Data:  gin.H{"user": toUserResponse(user)},
	})
}

func (h HandlerSet) Signup(c *gin.Context) {
	var req service.SignupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, msgBadBody)
		return
	}

	if _, err := h.auth.Signup(c.Request.Context(), req); err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.Message(c, http.StatusCreated, "User created! Please check your email to verify your account.")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "Please provide email and password!")
		return
	}

	user, sess, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	sendSession(c, http.StatusOK, user, sess)
}

func (h HandlerSet) Logout(c *gin.Context) {
	http.SetCookie(c.Writer, h.auth.Logout())
	response.Message(c, http.StatusOK, "Logged out successfully.")
}

func (h HandlerSet) VerifyEmail(c *gin.Context) {
	if _, err := h.auth.VerifyEmail(c.Request.Context(), c.Param("token")); err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.Message(c, http.StatusOK, "Email verified successfully! You can now log in.")
}

type emailRequest struct {
	Email string `json:"email"`
}

func (h HandlerSet) ResendVerification(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, msgBadBody)
		return
	}

	if err := h.auth.ResendVerification(c.Request.Context(), req.Email); err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.Message(c, http.StatusOK, "If that account exists and is not yet verified, a new verification email is on its way.")
}

func (h HandlerSet) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, msgBadBody)
		return
	}

	if err := h.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.Message(c, http.StatusOK, "Token sent to email!")
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, msgBadBody)
		return
	}

	user, sess, err := h.auth.ResetPassword(c.Request.Context(), c.Param("token"), req.Password, req.PasswordConfirm)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	sendSession(c, http.StatusOK, user, sess)
}

func (h HandlerSet) UpdatePassword(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req service.UpdatePasswordInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, msgBadBody)
		return
	}

	user, sess, err := h.auth.UpdatePassword(c.Request.Context(), identity.User.ID, req)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	sendSession(c, http.StatusOK, user, sess)
}

func (h HandlerSet) Test(c *gin.Context) {
	response.Message(c, http.StatusOK, "You are authenticated and can access this route.")
}
