package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/service"
)

type UserHandler struct {
	svc *service.UserService
}

func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// Me GET /me
func (h *UserHandler) Me(c *gin.Context) {
	u, err := h.svc.Me(c.Request.Context(), GetAuth(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, u)
}

// List GET /users
func (h *UserHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.List(c.Request.Context(), GetAuth(c), page, pageSize, queryFilters(c, "role", "search"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, listResponse(items, page, pageSize, total))
}

// Create POST /users
func (h *UserHandler) Create(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	u, err := h.svc.Create(c.Request.Context(), GetAuth(c), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, u)
}

// SetRole PUT /users/:id/role
func (h *UserHandler) SetRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	u, err := h.svc.SetRole(c.Request.Context(), GetAuth(c), c.Param("id"), req.Role)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, u)
}

// ResetPassword PUT /users/:id/password
func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if err := h.svc.ResetPassword(c.Request.Context(), GetAuth(c), c.Param("id"), req.Password); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

// ChangeOwnPassword PUT /me/password
func (h *UserHandler) ChangeOwnPassword(c *gin.Context) {
	var req service.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if err := h.svc.ChangeOwnPassword(c.Request.Context(), GetAuth(c), &req); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

// Delete DELETE /users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), GetAuth(c), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}
