package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/entity"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/policy"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/repository"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/tooth"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// serialRetries bounds regeneration of a serial number that lost a race.
const serialRetries = 3

// WorkOrderService owns the work order state machine.
type WorkOrderService struct {
	repos     *repository.Repositories
	logger    *zap.Logger
	batchSize int
	now       func() time.Time
}

func NewWorkOrderService(repos *repository.Repositories, logger *zap.Logger, batchSize int) *WorkOrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkOrderService{repos: repos, logger: logger, batchSize: batchSize, now: time.Now}
}

// CreateWorkOrderRequest new work order fields
type CreateWorkOrderRequest struct {
	DoctorName           string           `json:"doctor_name"`
	PatientName          string           `json:"patient_name" binding:"required"`
	ProductQuality       string           `json:"product_quality"`
	ProductShade         string           `json:"product_shade"`
	ToothNumbers         []int            `json:"tooth_numbers"`
	Feedback             string           `json:"feedback"`
	OrderDate            string           `json:"order_date"`
	ExpectedCompleteDate string           `json:"expected_complete_date"`
	Amount               *decimal.Decimal `json:"amount"`
}

// CreateBatchRequest several orders for one doctor
type CreateBatchRequest struct {
	DoctorName string                   `json:"doctor_name" binding:"required"`
	Orders     []CreateWorkOrderRequest `json:"orders" binding:"required"`
}

// UpdateWorkOrderRequest non-status fields; nil means unchanged
type UpdateWorkOrderRequest struct {
	DoctorName           *string          `json:"doctor_name"`
	PatientName          *string          `json:"patient_name"`
	ProductQuality       *string          `json:"product_quality"`
	ProductShade         *string          `json:"product_shade"`
	ToothNumbers         *[]int           `json:"tooth_numbers"`
	Feedback             *string          `json:"feedback"`
	OrderDate            *string          `json:"order_date"`
	ExpectedCompleteDate *string          `json:"expected_complete_date"`
	Amount               *decimal.Decimal `json:"amount"`
}

// ReturnRequest client rejection of delivered work
type ReturnRequest struct {
	Reason          string `json:"reason" binding:"required"`
	Notes           string `json:"notes"`
	NewExpectedDate string `json:"new_expected_date"`
}

// WorkOrderDetail an order with its bill membership and revision history
type WorkOrderDetail struct {
	*entity.WorkOrder
	HasBill   bool                     `json:"has_bill"`
	BillID    string                   `json:"bill_id,omitempty"`
	BillKind  string                   `json:"bill_kind,omitempty"`
	Quadrants tooth.Quadrants          `json:"quadrants"`
	Revisions []entity.RevisionHistory `json:"revisions"`
}

func validateTeeth(nums []int) ([]int, error) {
	if bad := tooth.Invalid(nums); len(bad) > 0 {
		details := make([]string, len(bad))
		for i, n := range bad {
			details[i] = strconv.Itoa(n)
		}
		return nil, errValidation(details, "Invalid tooth numbers: %s", joinList(details))
	}
	return tooth.Union(nums), nil
}

func (s *WorkOrderService) buildOrder(auth policy.AuthContext, req *CreateWorkOrderRequest) (*entity.WorkOrder, error) {
	patient := strings.TrimSpace(req.PatientName)
	if patient == "" {
		return nil, errValidation([]string{"patient_name"}, "Patient name is required")
	}
	teeth, err := validateTeeth(req.ToothNumbers)
	if err != nil {
		return nil, err
	}
	orderDate, err := parseDate("order_date", req.OrderDate)
	if err != nil {
		return nil, err
	}
	expected, err := parseDate("expected_complete_date", req.ExpectedCompleteDate)
	if err != nil {
		return nil, err
	}
	if req.Amount != nil && !auth.Role.IsAdmin() {
		return nil, errPermission("set the work order amount")
	}

	now := s.now()
	wo := &entity.WorkOrder{
		ID:                   uuid.New().String()[:32],
		DoctorName:           strings.TrimSpace(req.DoctorName),
		PatientName:          patient,
		ProductQuality:       strings.TrimSpace(req.ProductQuality),
		ProductShade:         strings.TrimSpace(req.ProductShade),
		ToothNumbers:         toothColumn(teeth),
		Feedback:             req.Feedback,
		Status:               entity.WorkOrderStatusInProgress,
		OrderDate:            today(now),
		ExpectedCompleteDate: expected,
		CreatedBy:            auth.UserID,
	}
	if orderDate != nil {
		wo.OrderDate = *orderDate
	}
	if req.Amount != nil {
		wo.Amount = decimal.NewNullDecimal(*req.Amount)
	}
	return wo, nil
}

// insertOrder assigns a serial number and stores the order with its log entry.
func insertOrder(ctx context.Context, tx *repository.Repositories, wo *entity.WorkOrder, now time.Time) error {
	serial, err := tx.WorkOrder.GenerateSerial(ctx, now)
	if err != nil {
		return err
	}
	wo.SerialNumber = serial
	if err := tx.WorkOrder.Create(ctx, wo); err != nil {
		return err
	}
	return tx.ActivityLog.LogActivity(ctx, entity.EntityWorkOrder, wo.ID, wo.SerialNumber,
		"create", "", wo.Status, "work order created", wo.CreatedBy)
}

// withSerialRetry reruns fn when a concurrent insert took the serial number.
func withSerialRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < serialRetries; attempt++ {
		if err = fn(); !errors.Is(err, repository.ErrDuplicate) {
			return err
		}
	}
	return err
}

// Create stores a new in_progress work order.
func (s *WorkOrderService) Create(ctx context.Context, auth policy.AuthContext, req *CreateWorkOrderRequest) (*entity.WorkOrder, error) {
	if err := requireAuth(auth); err != nil {
		return nil, err
	}
	wo, err := s.buildOrder(auth, req)
	if err != nil {
		return nil, err
	}

	err = withSerialRetry(func() error {
		return s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
			return insertOrder(ctx, tx, wo, s.now())
		})
	})
	if err != nil {
		s.logger.Error("create work order failed", zap.String("patient", wo.PatientName), zap.Error(err))
		return nil, storageErr(err, "Work order", wo.ID)
	}

	s.logger.Info("work order created",
		zap.String("id", wo.ID),
		zap.String("serial", wo.SerialNumber),
		zap.String("user", auth.UserID))
	wo.FillLabel()
	return wo, nil
}

// CreateBatch stores several orders for one doctor sharing a new batch id.
func (s *WorkOrderService) CreateBatch(ctx context.Context, auth policy.AuthContext, req *CreateBatchRequest) ([]entity.WorkOrder, error) {
	if err := requireAuth(auth); err != nil {
		return nil, err
	}
	doctor := strings.TrimSpace(req.DoctorName)
	if doctor == "" {
		return nil, errValidation([]string{"doctor_name"}, "Doctor name is required for a batch")
	}
	if len(req.Orders) == 0 {
		return nil, errValidation([]string{"orders"}, "A batch needs at least one work order")
	}

	batchID := uuid.New().String()[:32]
	orders := make([]*entity.WorkOrder, 0, len(req.Orders))
	for i := range req.Orders {
		item := req.Orders[i]
		item.DoctorName = doctor
		wo, err := s.buildOrder(auth, &item)
		if err != nil {
			var e *Error
			if errors.As(err, &e) {
				e.Message = fmt.Sprintf("Order %d: %s", i+1, e.Message)
			}
			return nil, err
		}
		wo.BatchID = &batchID
		orders = append(orders, wo)
	}

	err := withSerialRetry(func() error {
		return s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
			now := s.now()
			for _, wo := range orders {
				if err := insertOrder(ctx, tx, wo, now); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		s.logger.Error("create batch failed", zap.String("batch", batchID), zap.Error(err))
		return nil, storageErr(err, "Work order batch", batchID)
	}

	s.logger.Info("work order batch created", zap.String("batch", batchID), zap.Int("count", len(orders)))
	result := make([]entity.WorkOrder, len(orders))
	for i, wo := range orders {
		wo.FillLabel()
		result[i] = *wo
	}
	return result, nil
}

// Get loads one order with its label
func (s *WorkOrderService) Get(ctx context.Context, id string) (*entity.WorkOrder, error) {
	wo, err := s.repos.WorkOrder.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, "Work order", id)
	}
	wo.FillLabel()
	return wo, nil
}

// Detail loads one order with bill membership, quadrants and revisions.
func (s *WorkOrderService) Detail(ctx context.Context, id string) (*WorkOrderDetail, error) {
	wo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ref, err := findBillRef(ctx, s.repos, id)
	if err != nil {
		return nil, storageErr(err, "Work order", id)
	}
	revisions, err := s.repos.Revision.FindByWorkOrder(ctx, id)
	if err != nil {
		return nil, storageErr(err, "Work order", id)
	}
	entity.MarkActive(revisions, wo.Status)

	detail := &WorkOrderDetail{
		WorkOrder: wo,
		Quadrants: tooth.GroupByQuadrant(wo.ToothNumbers),
		Revisions: revisions,
	}
	if ref != nil {
		detail.HasBill = true
		detail.BillID = ref.BillID
		detail.BillKind = ref.Kind
	}
	return detail, nil
}

// List one page of orders
func (s *WorkOrderService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.WorkOrder, int64, error) {
	items, total, err := s.repos.WorkOrder.FindAll(ctx, page, pageSize, filters)
	if err != nil {
		return nil, 0, storageErr(err, "Work orders", "")
	}
	for i := range items {
		items[i].FillLabel()
	}
	return items, total, nil
}

// ListAll every order, read in fixed-size batches.
func (s *WorkOrderService) ListAll(ctx context.Context) ([]entity.WorkOrder, error) {
	var all []entity.WorkOrder
	err := s.repos.WorkOrder.FindInBatches(ctx, s.batchSize, func(batch []entity.WorkOrder) error {
		for i := range batch {
			batch[i].FillLabel()
		}
		all = append(all, batch...)
		return nil
	})
	if err != nil {
		return nil, storageErr(err, "Work orders", "")
	}
	return all, nil
}

// Update writes non-status fields.
func (s *WorkOrderService) Update(ctx context.Context, auth policy.AuthContext, id string, req *UpdateWorkOrderRequest) (*entity.WorkOrder, error) {
	if err := requireAuth(auth); err != nil {
		return nil, err
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		wo, err := tx.WorkOrder.FindByID(ctx, id)
		if err != nil {
			return err
		}
		ref, err := findBillRef(ctx, tx, id)
		if err != nil {
			return err
		}
		if !policy.CanEditWorkOrder(auth.Role, orderState(wo), ref != nil) {
			return errPermission("edit this work order")
		}

		fields, err := updateFields(auth, req)
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		if err := tx.WorkOrder.Updates(ctx, id, fields); err != nil {
			return err
		}
		return tx.ActivityLog.LogActivity(ctx, entity.EntityWorkOrder, id, wo.SerialNumber,
			"update", wo.Status, wo.Status, fieldNames(fields), auth.UserID)
	})
	if err != nil {
		return nil, storageErr(err, "Work order", id)
	}

	s.logger.Info("work order updated", zap.String("id", id), zap.String("user", auth.UserID))
	return s.Get(ctx, id)
}

func updateFields(auth policy.AuthContext, req *UpdateWorkOrderRequest) (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	if req.PatientName != nil {
		patient := strings.TrimSpace(*req.PatientName)
		if patient == "" {
			return nil, errValidation([]string{"patient_name"}, "Patient name is required")
		}
		fields["patient_name"] = patient
	}
	if req.DoctorName != nil {
		fields["doctor_name"] = strings.TrimSpace(*req.DoctorName)
	}
	if req.ProductQuality != nil {
		fields["product_quality"] = strings.TrimSpace(*req.ProductQuality)
	}
	if req.ProductShade != nil {
		fields["product_shade"] = strings.TrimSpace(*req.ProductShade)
	}
	if req.ToothNumbers != nil {
		teeth, err := validateTeeth(*req.ToothNumbers)
		if err != nil {
			return nil, err
		}
		fields["tooth_numbers"] = toothColumn(teeth)
	}
	if req.Feedback != nil {
		fields["feedback"] = *req.Feedback
	}
	if req.OrderDate != nil {
		d, err := parseDate("order_date", *req.OrderDate)
		if err != nil {
			return nil, err
		}
		if d != nil {
			fields["order_date"] = *d
		}
	}
	if req.ExpectedCompleteDate != nil {
		d, err := parseDate("expected_complete_date", *req.ExpectedCompleteDate)
		if err != nil {
			return nil, err
		}
		fields["expected_complete_date"] = d
	}
	if req.Amount != nil {
		if !auth.Role.IsAdmin() {
			return nil, errPermission("set the work order amount")
		}
		fields["amount"] = decimal.NewNullDecimal(*req.Amount)
	}
	return fields, nil
}

func fieldNames(fields map[string]interface{}) string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	return "updated " + strings.Join(sortStrings(names), ", ")
}

// Delete removes an order. An order that already has a bill is only removed
// by an admin with force set, which also removes its billing records.
func (s *WorkOrderService) Delete(ctx context.Context, auth policy.AuthContext, id string, force bool) error {
	if err := requireAuth(auth); err != nil {
		return err
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		wo, err := tx.WorkOrder.FindByID(ctx, id)
		if err != nil {
			return err
		}
		ref, err := findBillRef(ctx, tx, id)
		if err != nil {
			return err
		}
		if !policy.CanDeleteWorkOrder(auth.Role, orderState(wo), ref != nil) {
			return errPermission("delete this work order")
		}
		if ref != nil {
			if !force {
				return newError(KindAlreadyBilled, []string{wo.SerialNumber},
					"Work order %s has a bill and cannot be deleted without force", wo.SerialNumber)
			}
			if err := releaseFromBill(ctx, tx, wo, *ref, auth.UserID); err != nil {
				return err
			}
		}
		if err := tx.WorkOrder.Delete(ctx, id); err != nil {
			return err
		}
		content := "work order deleted"
		if ref != nil {
			content = "work order deleted with its bill " + ref.BillID
		}
		return tx.ActivityLog.LogActivity(ctx, entity.EntityWorkOrder, id, wo.SerialNumber,
			"delete", wo.Status, "", content, auth.UserID)
	})
	if err != nil {
		return storageErr(err, "Work order", id)
	}

	s.logger.Info("work order deleted", zap.String("id", id), zap.Bool("force", force), zap.String("user", auth.UserID))
	return nil
}

// releaseFromBill drops the order's claim, item and individual bill. A
// grouped bill left without items is removed too. Otherwise its derived
// columns are recomputed over the remaining orders and its amount becomes
// the sum of the remaining items; with nothing priced left it goes back to
// pending.
func releaseFromBill(ctx context.Context, tx *repository.Repositories, wo *entity.WorkOrder, ref repository.BillRef, userID string) error {
	if err := tx.Bill.ReleaseWorkOrder(ctx, wo.ID); err != nil {
		return err
	}
	if ref.Kind != entity.BillKindGrouped {
		return nil
	}
	bill, err := tx.Bill.FindByID(ctx, ref.BillID)
	if err != nil {
		return err
	}
	if len(bill.Items) == 0 {
		return tx.Bill.Delete(ctx, ref.BillID)
	}

	ids := make([]string, len(bill.Items))
	total := decimal.Zero
	for i, item := range bill.Items {
		ids[i] = item.WorkOrderID
		total = total.Add(item.TotalPrice)
	}
	found, err := tx.WorkOrder.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[string]entity.WorkOrder, len(found))
	for _, o := range found {
		byID[o.ID] = o
	}
	remaining := make([]entity.WorkOrder, 0, len(ids))
	for _, id := range ids {
		if o, ok := byID[id]; ok {
			remaining = append(remaining, o)
		}
	}
	g := deriveGroup(remaining)

	fields := map[string]interface{}{
		"serial_number":    g.serial,
		"patient_name":     g.patient,
		"work_description": g.description,
		"tooth_numbers":    toothColumn(g.teeth),
		"completion_date":  g.completion,
		"amount":           total,
	}
	status := bill.Status
	if !total.IsPositive() && bill.Status != entity.BillStatusPending {
		status = entity.BillStatusPending
		fields["status"] = status
		fields["priced_by"] = ""
		fields["priced_at"] = nil
	}
	if err := tx.Bill.Updates(ctx, bill.ID, fields); err != nil {
		return err
	}
	return tx.ActivityLog.LogActivity(ctx, entity.EntityBill, bill.ID, g.serial,
		"release_item", bill.Status, status,
		fmt.Sprintf("%s removed, amount %s -> %s", wo.SerialNumber, bill.Amount.StringFixed(2), total.StringFixed(2)),
		userID)
}

// transitionFunc validates a loaded order and returns the columns to write
// plus the activity log text.
type transitionFunc func(tx *repository.Repositories, wo *entity.WorkOrder) (map[string]interface{}, string, error)

// transition loads the order, applies fn and writes the result with its log
// entry in one transaction.
func (s *WorkOrderService) transition(ctx context.Context, auth policy.AuthContext, id, action string, fn transitionFunc) (*entity.WorkOrder, error) {
	if err := requireAuth(auth); err != nil {
		return nil, err
	}

	var from, to string
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		wo, err := tx.WorkOrder.FindByID(ctx, id)
		if err != nil {
			return err
		}
		fields, content, err := fn(tx, wo)
		if err != nil {
			return err
		}
		from = wo.Status
		to, _ = fields["status"].(string)
		if !entity.CanTransition(from, to) {
			return errTransition("Work order %s cannot move from %s to %s", wo.SerialNumber, entity.StatusLabel(from, wo.RevisionCount), to)
		}
		if err := tx.WorkOrder.Updates(ctx, id, fields); err != nil {
			return err
		}
		return tx.ActivityLog.LogActivity(ctx, entity.EntityWorkOrder, id, wo.SerialNumber,
			action, from, to, content, auth.UserID)
	})
	if err != nil {
		if !isServiceError(err) {
			s.logger.Error("work order transition failed", zap.String("id", id), zap.String("action", action), zap.Error(err))
		}
		return nil, storageErr(err, "Work order", id)
	}

	s.logger.Info("work order transition",
		zap.String("id", id),
		zap.String("action", action),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("user", auth.UserID))
	return s.Get(ctx, id)
}

func isServiceError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// Complete in_progress → completed.
func (s *WorkOrderService) Complete(ctx context.Context, auth policy.AuthContext, id, completionDate string) (*entity.WorkOrder, error) {
	if strings.TrimSpace(completionDate) == "" {
		return nil, errValidation([]string{"completion_date"}, "Completion date is required")
	}
	date, err := parseDate("completion_date", completionDate)
	if err != nil {
		return nil, err
	}

	return s.transition(ctx, auth, id, "complete", func(tx *repository.Repositories, wo *entity.WorkOrder) (map[string]interface{}, string, error) {
		if wo.InRevision() {
			return nil, "", errTransition("Work order %s is in revision; complete the revision instead", wo.SerialNumber)
		}
		ref, err := findBillRef(ctx, tx, wo.ID)
		if err != nil {
			return nil, "", err
		}
		if ref != nil {
			return nil, "", errTransition("Work order %s is already billed", wo.SerialNumber)
		}
		if wo.Status != entity.WorkOrderStatusInProgress {
			return nil, "", errTransition("Work order %s is %s and cannot be completed", wo.SerialNumber, entity.StatusLabel(wo.Status, wo.RevisionCount))
		}
		return map[string]interface{}{
			"status":          entity.WorkOrderStatusCompleted,
			"completion_date": *date,
		}, "completed on " + date.Format("2006-01-02"), nil
	})
}

// Return sends a billed, completed order back for rework.
func (s *WorkOrderService) Return(ctx context.Context, auth policy.AuthContext, id string, req *ReturnRequest) (*entity.WorkOrder, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, errValidation([]string{"reason"}, "A return reason is required")
	}
	expected, err := parseDate("new_expected_date", req.NewExpectedDate)
	if err != nil {
		return nil, err
	}

	return s.transition(ctx, auth, id, "return", func(tx *repository.Repositories, wo *entity.WorkOrder) (map[string]interface{}, string, error) {
		if wo.Status != entity.WorkOrderStatusCompleted {
			return nil, "", errTransition("Only completed work orders can be returned; %s is %s", wo.SerialNumber, entity.StatusLabel(wo.Status, wo.RevisionCount))
		}
		ref, err := findBillRef(ctx, tx, wo.ID)
		if err != nil {
			return nil, "", err
		}
		if ref == nil {
			return nil, "", errTransition("Work order %s has not been billed yet and cannot be returned", wo.SerialNumber)
		}

		last, err := tx.Revision.MaxRevisionNumber(ctx, wo.ID)
		if err != nil {
			return nil, "", err
		}
		number := wo.RevisionCount
		if last > number {
			number = last
		}
		number++

		now := s.now()
		if err := tx.Revision.Create(ctx, &entity.RevisionHistory{
			ID:                        uuid.New().String()[:32],
			WorkOrderID:               wo.ID,
			RevisionNumber:            number,
			ReturnReason:              reason,
			RevisionNotes:             req.Notes,
			ReturnDate:                now,
			PreviousCompletionDate:    wo.CompletionDate,
			NewExpectedCompletionDate: expected,
			CreatedBy:                 auth.UserID,
		}); err != nil {
			return nil, "", err
		}

		fields := map[string]interface{}{
			"status":                   entity.WorkOrderStatusReturned,
			"revision_count":           number,
			"return_reason":            reason,
			"return_date":              now,
			"revision_notes":           req.Notes,
			"previous_completion_date": wo.CompletionDate,
			"completion_date":          nil,
		}
		if expected != nil {
			fields["expected_complete_date"] = *expected
		}
		return fields, fmt.Sprintf("revision %d: %s", number, reason), nil
	})
}

// StartRevision returned → revision_in_progress once rework begins.
func (s *WorkOrderService) StartRevision(ctx context.Context, auth policy.AuthContext, id string) (*entity.WorkOrder, error) {
	return s.transition(ctx, auth, id, "start_revision", func(tx *repository.Repositories, wo *entity.WorkOrder) (map[string]interface{}, string, error) {
		if wo.Status != entity.WorkOrderStatusReturned {
			return nil, "", errTransition("Work order %s is %s; only returned orders can start a revision", wo.SerialNumber, entity.StatusLabel(wo.Status, wo.RevisionCount))
		}
		return map[string]interface{}{
			"status": entity.WorkOrderStatusRevisionInProgress,
		}, fmt.Sprintf("revision %d started", wo.RevisionCount), nil
	})
}

// CompleteRevision closes the open revision. An empty date means today.
func (s *WorkOrderService) CompleteRevision(ctx context.Context, auth policy.AuthContext, id, completionDate string) (*entity.WorkOrder, error) {
	date, err := parseDate("completion_date", completionDate)
	if err != nil {
		return nil, err
	}
	if date == nil {
		d := today(s.now())
		date = &d
	}

	return s.transition(ctx, auth, id, "complete_revision", func(tx *repository.Repositories, wo *entity.WorkOrder) (map[string]interface{}, string, error) {
		if !wo.InRevision() {
			return nil, "", errTransition("Work order %s has no open revision", wo.SerialNumber)
		}
		return map[string]interface{}{
			"status":          entity.WorkOrderStatusCompleted,
			"completion_date": *date,
		}, fmt.Sprintf("revision %d completed on %s", wo.RevisionCount, date.Format("2006-01-02")), nil
	})
}

// Cancel any state other than completed or cancelled → cancelled.
func (s *WorkOrderService) Cancel(ctx context.Context, auth policy.AuthContext, id, reason string) (*entity.WorkOrder, error) {
	return s.transition(ctx, auth, id, "cancel", func(tx *repository.Repositories, wo *entity.WorkOrder) (map[string]interface{}, string, error) {
		switch wo.Status {
		case entity.WorkOrderStatusCompleted:
			return nil, "", errTransition("Work order %s is completed and cannot be cancelled", wo.SerialNumber)
		case entity.WorkOrderStatusCancelled:
			return nil, "", errTransition("Work order %s is already cancelled", wo.SerialNumber)
		}
		content := "cancelled"
		if r := strings.TrimSpace(reason); r != "" {
			content = "cancelled: " + r
		}
		return map[string]interface{}{"status": entity.WorkOrderStatusCancelled}, content, nil
	})
}

// Revisions history rows with the derived active flag
func (s *WorkOrderService) Revisions(ctx context.Context, id string) ([]entity.RevisionHistory, error) {
	wo, err := s.repos.WorkOrder.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, "Work order", id)
	}
	rows, err := s.repos.Revision.FindByWorkOrder(ctx, id)
	if err != nil {
		return nil, storageErr(err, "Work order", id)
	}
	entity.MarkActive(rows, wo.Status)
	return rows, nil
}

// Activity log of one order, newest first
func (s *WorkOrderService) Activity(ctx context.Context, id string, page, pageSize int) ([]entity.ActivityLog, int64, error) {
	items, total, err := s.repos.ActivityLog.FindByEntity(ctx, entity.EntityWorkOrder, id, page, pageSize)
	if err != nil {
		return nil, 0, storageErr(err, "Work order", id)
	}
	return items, total, nil
}
