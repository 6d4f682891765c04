package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/service"
	"github.com/shopspring/decimal"
)

type BillHandler struct {
	billing  *service.BillingService
	pricing  *service.PricingService
	document *service.DocumentService
}

func NewBillHandler(billing *service.BillingService, pricing *service.PricingService, document *service.DocumentService) *BillHandler {
	return &BillHandler{billing: billing, pricing: pricing, document: document}
}

// List GET /bills
func (h *BillHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := queryFilters(c, "status", "doctor_name", "grouped")

	items, total, err := h.billing.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, listResponse(items, page, pageSize, total))
}

// Get GET /bills/:id
func (h *BillHandler) Get(c *gin.Context) {
	detail, err := h.billing.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, detail)
}

// CreateIndividual POST /work-orders/:id/bill
func (h *BillHandler) CreateIndividual(c *gin.Context) {
	var req service.CreateBillRequest
	if !bindOptional(c, &req) {
		return
	}
	bill, err := h.billing.CreateIndividualBill(c.Request.Context(), GetAuth(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, bill)
}

// CreateGrouped POST /bills/grouped
func (h *BillHandler) CreateGrouped(c *gin.Context) {
	var req service.GroupedBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	result, err := h.billing.CreateGroupedBill(c.Request.Context(), GetAuth(c), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, result)
}

// CreateBatch POST /batches/:batchId/bill
func (h *BillHandler) CreateBatch(c *gin.Context) {
	var req service.CreateBillRequest
	if !bindOptional(c, &req) {
		return
	}
	result, err := h.billing.CreateBatchBill(c.Request.Context(), GetAuth(c), c.Param("batchId"), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, result)
}

// Orphaned GET /bills/orphaned
func (h *BillHandler) Orphaned(c *gin.Context) {
	bills, err := h.billing.FindOrphanedGroupedBills(c.Request.Context(), GetAuth(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"items": bills})
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// SetAmount PUT /bills/:id/amount
func (h *BillHandler) SetAmount(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	bill, err := h.pricing.SetAmount(c.Request.Context(), GetAuth(c), c.Param("id"), req.Amount)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, bill)
}

type itemPriceRequest struct {
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// SetItemPrice PUT /bill-items/:itemId/price
func (h *BillHandler) SetItemPrice(c *gin.Context) {
	var req itemPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	result, err := h.pricing.SetItemPrice(c.Request.Context(), GetAuth(c), c.Param("itemId"), req.UnitPrice)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}

// SetStatus PUT /bills/:id/status
func (h *BillHandler) SetStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	bill, err := h.pricing.SetStatus(c.Request.Context(), GetAuth(c), c.Param("id"), req.Status)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, bill)
}

// MarkPrinted POST /bills/:id/print
func (h *BillHandler) MarkPrinted(c *gin.Context) {
	bill, err := h.pricing.MarkPrinted(c.Request.Context(), GetAuth(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, bill)
}

// Export GET /bills/:id/export
func (h *BillHandler) Export(c *gin.Context) {
	f, filename, err := h.document.ExportBill(c.Request.Context(), c.Param("id"))
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
