// Staff HTTP handlers. The router mounts them behind RequireRole("admin")
// when authentication is enabled.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-dental-backend/internal/domain"
	"github.com/tbourn/go-dental-backend/internal/services"
)

// CreateStaffRequest is the JSON payload for adding a staff member. Name
// defaults to the email's local part and role to staff.
type CreateStaffRequest struct {
	Name  string `json:"name"  binding:"omitempty,max=255"            example:"Paula Reis"`
	Email string `json:"email" binding:"required,email"               example:"paula@clinic.io"`
	Role  string `json:"role"  binding:"omitempty,oneof=admin staff"  example:"staff"`
}

// UpdateStaffRequest is the PATCH payload.
type UpdateStaffRequest struct {
	Name   *string `json:"name"   binding:"omitempty,max=255"`
	Email  *string `json:"email"  binding:"omitempty,email"`
	Role   *string `json:"role"   binding:"omitempty,oneof=admin staff"`
	Active *bool   `json:"active"`
}

// ListStaffResponse wraps a page of staff.
type ListStaffResponse struct {
	Staff      []domain.Staff `json:"staff"`
	Pagination Pagination     `json:"pagination"`
}

// CreateStaff godoc
// @ID          createStaff
// @Summary     Add a staff member
// @Tags        Staff
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.CreateStaffRequest  true  "Staff member"
// @Success     201  {object} domain.Staff
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Admin only"
// @Failure     409  {object} handlers.ErrorResponse "Email already registered"
// @Router      /staff [post]
func (h *Handlers) CreateStaff(c *gin.Context) {
	var req CreateStaffRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.staff.Create(c.Request.Context(), req.Name, req.Email, req.Role)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, m)
}

// ListStaff godoc
// @ID          listStaff
// @Summary     List staff (paginated)
// @Tags        Staff
// @Produce     json
// @Security    BearerAuth
// @Param       page       query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListStaffResponse
// @Router      /staff [get]
func (h *Handlers) ListStaff(c *gin.Context) {
	page, pageSize := clampPagination(c, 20)
	items, total, err := h.staff.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, ListStaffResponse{Staff: items, Pagination: paginate(page, pageSize, total)})
}

// GetStaff godoc
// @ID          getStaff
// @Summary     Get a staff member
// @Tags        Staff
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "Staff ID"
// @Success     200  {object} domain.Staff
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /staff/{id} [get]
func (h *Handlers) GetStaff(c *gin.Context) {
	m, err := h.staff.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// PatchStaff godoc
// @ID          patchStaff
// @Summary     Update a staff member
// @Tags        Staff
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Staff ID"
// @Param       body  body  handlers.UpdateStaffRequest  true  "Fields to change"
// @Success     200  {object} domain.Staff
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Failure     409  {object} handlers.ErrorResponse "Email already registered"
// @Router      /staff/{id} [patch]
func (h *Handlers) PatchStaff(c *gin.Context) {
	var req UpdateStaffRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.staff.Patch(c.Request.Context(), c.Param("id"), services.StaffChanges{
		Name:   req.Name,
		Email:  req.Email,
		Role:   req.Role,
		Active: req.Active,
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// DeleteStaff godoc
// @ID          deleteStaff
// @Summary     Remove a staff member
// @Tags        Staff
// @Security    BearerAuth
// @Param       id   path  string  true  "Staff ID"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /staff/{id} [delete]
func (h *Handlers) DeleteStaff(c *gin.Context) {
	if err := h.staff.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}
