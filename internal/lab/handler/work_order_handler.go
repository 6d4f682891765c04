package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/service"
)

type WorkOrderHandler struct {
	svc      *service.WorkOrderService
	billing  *service.BillingService
	document *service.DocumentService
}

func NewWorkOrderHandler(svc *service.WorkOrderService, billing *service.BillingService, document *service.DocumentService) *WorkOrderHandler {
	return &WorkOrderHandler{svc: svc, billing: billing, document: document}
}

// bindOptional binds a JSON body that may be absent.
func bindOptional(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// List GET /work-orders
func (h *WorkOrderHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := queryFilters(c, "status", "doctor_name", "batch_id", "search")

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, listResponse(items, page, pageSize, total))
}

// Create POST /work-orders
func (h *WorkOrderHandler) Create(c *gin.Context) {
	var req service.CreateWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	wo, err := h.svc.Create(c.Request.Context(), GetAuth(c), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, wo)
}

// CreateBatch POST /work-orders/batch
func (h *WorkOrderHandler) CreateBatch(c *gin.Context) {
	var req service.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	orders, err := h.svc.CreateBatch(c.Request.Context(), GetAuth(c), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, gin.H{"items": orders})
}

// Get GET /work-orders/:id
func (h *WorkOrderHandler) Get(c *gin.Context) {
	detail, err := h.svc.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, detail)
}

// Update PUT /work-orders/:id
func (h *WorkOrderHandler) Update(c *gin.Context) {
	var req service.UpdateWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	wo, err := h.svc.Update(c.Request.Context(), GetAuth(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, wo)
}

// Delete DELETE /work-orders/:id?force=true
func (h *WorkOrderHandler) Delete(c *gin.Context) {
	force := c.Query("force") == "true"
	if err := h.svc.Delete(c.Request.Context(), GetAuth(c), c.Param("id"), force); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

type completeRequest struct {
	CompletionDate string `json:"completion_date"`
}

// Complete POST /work-orders/:id/complete
func (h *WorkOrderHandler) Complete(c *gin.Context) {
	var req completeRequest
	if !bindOptional(c, &req) {
		return
	}
	wo, err := h.svc.Complete(c.Request.Context(), GetAuth(c), c.Param("id"), req.CompletionDate)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, wo)
}

// Return POST /work-orders/:id/return
func (h *WorkOrderHandler) Return(c *gin.Context) {
	var req service.ReturnRequest
	if !bindOptional(c, &req) {
		return
	}
	wo, err := h.svc.Return(c.Request.Context(), GetAuth(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, wo)
}

// StartRevision POST /work-orders/:id/start-revision
func (h *WorkOrderHandler) StartRevision(c *gin.Context) {
	wo, err := h.svc.StartRevision(c.Request.Context(), GetAuth(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, wo)
}

// CompleteRevision POST /work-orders/:id/complete-revision
func (h *WorkOrderHandler) CompleteRevision(c *gin.Context) {
	var req completeRequest
	if !bindOptional(c, &req) {
		return
	}
	wo, err := h.svc.CompleteRevision(c.Request.Context(), GetAuth(c), c.Param("id"), req.CompletionDate)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, wo)
}

// Cancel POST /work-orders/:id/cancel
func (h *WorkOrderHandler) Cancel(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !bindOptional(c, &req) {
		return
	}
	wo, err := h.svc.Cancel(c.Request.Context(), GetAuth(c), c.Param("id"), req.Reason)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, wo)
}

// Revisions GET /work-orders/:id/revisions
func (h *WorkOrderHandler) Revisions(c *gin.Context) {
	rows, err := h.svc.Revisions(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"items": rows})
}

// Activity GET /work-orders/:id/activity
func (h *WorkOrderHandler) Activity(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.Activity(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, listResponse(items, page, pageSize, total))
}

// CheckHasBill GET /work-orders/:id/bill
func (h *WorkOrderHandler) CheckHasBill(c *gin.Context) {
	result, err := h.billing.CheckHasBill(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}

// Export GET /work-orders/export
func (h *WorkOrderHandler) Export(c *gin.Context) {
	f, filename, err := h.document.ExportWorkOrders(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}
