package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/policy"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/service"
	"github.com/kayas881/Dental-system-management-sub000/internal/middleware"
)

// Handlers groups the lab handlers
type Handlers struct {
	WorkOrder *WorkOrderHandler
	Bill      *BillHandler
	User      *UserHandler
	Dashboard *DashboardHandler
}

// NewHandlers creates the handler set
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		WorkOrder: NewWorkOrderHandler(svc.WorkOrder, svc.Billing, svc.Document),
		Bill:      NewBillHandler(svc.Billing, svc.Pricing, svc.Document),
		User:      NewUserHandler(svc.User),
		Dashboard: NewDashboardHandler(svc.Dashboard),
	}
}

// Response envelope of every JSON reply
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse paged list payload
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination page info
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// ErrorData carried in Data of a failed service call
type ErrorData struct {
	Kind    string   `json:"kind"`
	Details []string `json:"details,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error writes code with HTTP status code/100
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// kindCodes envelope code per error kind
var kindCodes = map[service.Kind]int{
	service.KindValidation:        40000,
	service.KindUnauthenticated:   40100,
	service.KindPermissionDenied:  40300,
	service.KindNotFound:          40400,
	service.KindAlreadyBilled:     40901,
	service.KindIncompleteOrders:  40902,
	service.KindMixedDoctors:      40903,
	service.KindInvalidTransition: 40904,
	service.KindStorage:           50000,
}

// Fail writes a service error; its message is shown to the user as is.
func Fail(c *gin.Context, err error) {
	var e *service.Error
	if !errors.As(err, &e) {
		InternalError(c, "Storage operation failed, please retry")
		return
	}
	code, ok := kindCodes[e.Kind]
	if !ok {
		code = 50000
	}
	c.JSON(code/100, Response{
		Code:    code,
		Message: e.Message,
		Data:    ErrorData{Kind: string(e.Kind), Details: e.Details},
	})
}

// GetAuth caller identity; the zero value is unauthenticated
func GetAuth(c *gin.Context) policy.AuthContext {
	auth, _ := middleware.Auth(c)
	return auth
}

// GetPagination page and page_size query parameters
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

func listResponse(items interface{}, page, pageSize int, total int64) ListResponse {
	totalPages := int(total) / pageSize
	if int(total)%pageSize != 0 {
		totalPages++
	}
	return ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	}
}

// queryFilters keeps the non-empty query values of keys
func queryFilters(c *gin.Context, keys ...string) map[string]string {
	filters := make(map[string]string, len(keys))
	for _, k := range keys {
		if v := c.Query(k); v != "" {
			filters[k] = v
		}
	}
	return filters
}

// RegisterRoutes mounts the lab API under /api/v1
func RegisterRoutes(r *gin.Engine, h *Handlers, jwtSecret string) {
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(jwtSecret))
	{
		workOrders := authorized.Group("/work-orders")
		{
			workOrders.GET("", h.WorkOrder.List)
			workOrders.POST("", h.WorkOrder.Create)
			workOrders.POST("/batch", h.WorkOrder.CreateBatch)
			workOrders.GET("/export", h.WorkOrder.Export)
			workOrders.GET("/:id", h.WorkOrder.Get)
			workOrders.PUT("/:id", h.WorkOrder.Update)
			workOrders.DELETE("/:id", h.WorkOrder.Delete)
			workOrders.POST("/:id/complete", h.WorkOrder.Complete)
			workOrders.POST("/:id/return", h.WorkOrder.Return)
			workOrders.POST("/:id/start-revision", h.WorkOrder.StartRevision)
			workOrders.POST("/:id/complete-revision", h.WorkOrder.CompleteRevision)
			workOrders.POST("/:id/cancel", h.WorkOrder.Cancel)
			workOrders.GET("/:id/revisions", h.WorkOrder.Revisions)
			workOrders.GET("/:id/activity", h.WorkOrder.Activity)
			workOrders.GET("/:id/bill", h.WorkOrder.CheckHasBill)
			workOrders.POST("/:id/bill", h.Bill.CreateIndividual)
		}

		authorized.POST("/batches/:batchId/bill", h.Bill.CreateBatch)

		bills := authorized.Group("/bills")
		{
			bills.GET("", h.Bill.List)
			bills.POST("/grouped", h.Bill.CreateGrouped)
			bills.GET("/orphaned", h.Bill.Orphaned)
			bills.GET("/:id", h.Bill.Get)
			bills.GET("/:id/export", h.Bill.Export)
			bills.PUT("/:id/amount", h.Bill.SetAmount)
			bills.PUT("/:id/status", h.Bill.SetStatus)
			bills.POST("/:id/print", h.Bill.MarkPrinted)
		}
		authorized.PUT("/bill-items/:itemId/price", h.Bill.SetItemPrice)

		authorized.GET("/me", h.User.Me)
		authorized.PUT("/me/password", h.User.ChangeOwnPassword)

		users := authorized.Group("/users")
		users.Use(middleware.RequireRole(policy.RoleAdmin))
		{
			users.GET("", h.User.List)
			users.POST("", h.User.Create)
			users.PUT("/:id/role", h.User.SetRole)
			users.PUT("/:id/password", h.User.ResetPassword)
			users.DELETE("/:id", h.User.Delete)
		}

		authorized.GET("/dashboard/stats", h.Dashboard.Stats)
	}
}
