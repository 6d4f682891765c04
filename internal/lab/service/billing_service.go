package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/entity"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/policy"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/repository"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/tooth"
	"github.com/kayas881/Dental-system-management-sub000/internal/shared/lock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// BillingService turns completed work orders into bills.
type BillingService struct {
	repos  *repository.Repositories
	locker *lock.Locker
	logger *zap.Logger
	now    func() time.Time
}

func NewBillingService(repos *repository.Repositories, locker *lock.Locker, logger *zap.Logger) *BillingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.New(nil, "", 0, 0)
	}
	return &BillingService{repos: repos, locker: locker, logger: logger, now: time.Now}
}

// CreateBillRequest fields of an individual bill
type CreateBillRequest struct {
	WorkDescription string `json:"work_description"`
	BillDate        string `json:"bill_date"`
	Notes           string `json:"notes"`
	// nil keeps the work order's teeth
	ToothNumbers []int `json:"tooth_numbers"`
}

// GroupedBillRequest fields of a grouped bill
type GroupedBillRequest struct {
	WorkOrderIDs []string `json:"work_order_ids" binding:"required"`
	DoctorName   string   `json:"doctor_name"`
	Notes        string   `json:"notes"`
	BillDate     string   `json:"bill_date"`
	// nil means the union of the orders' teeth
	ToothNumbers []int   `json:"tooth_numbers"`
	BatchID      *string `json:"batch_id"`
}

// GroupedBill a grouped bill and its items
type GroupedBill struct {
	Bill  *entity.Bill      `json:"bill"`
	Items []entity.BillItem `json:"items"`
}

// HasBill answer of CheckHasBill
type HasBill struct {
	HasBill bool         `json:"has_bill"`
	Kind    string       `json:"kind,omitempty"`
	Bill    *entity.Bill `json:"bill,omitempty"`
}

// BillDetail everything a printed bill needs
type BillDetail struct {
	Bill       *entity.Bill       `json:"bill"`
	WorkOrders []entity.WorkOrder `json:"work_orders"`
	Quadrants  tooth.Quadrants    `json:"quadrants"`
	Grid       [2][2]tooth.Cell   `json:"grid"`
	Teeth      string             `json:"teeth"`
}

var doctorTitle = regexp.MustCompile(`(?i)^\s*(doctor|dr)\b\.?\s*`)

// NormalizeDoctor strips a leading title, case-folds and collapses spaces,
// so "Dr. Smith", "doctor smith" and "SMITH" compare equal.
func NormalizeDoctor(name string) string {
	name = doctorTitle.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")
	return cases.Fold().String(name)
}

func (s *BillingService) authorize(auth policy.AuthContext) error {
	if err := requireAuth(auth); err != nil {
		return err
	}
	if !policy.CanCreateBill(auth.Role) {
		return errPermission("create bills")
	}
	return nil
}

// lockOrders serializes bill creation for the given work orders across
// server instances.
func (s *BillingService) lockOrders(ctx context.Context, ids []string) (*lock.Lease, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "bill:wo:" + id
	}
	lease, err := s.locker.Acquire(ctx, keys...)
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, errTransition("Billing is already in progress for these work orders, please retry")
	}
	if err != nil {
		return nil, storageErr(err, "Billing lock", "")
	}
	return lease, nil
}

// billingErr maps storage outcomes of a bill insert. A unique violation on
// bill_claims or bill_items means another bill got there first.
func billingErr(err error, serials []string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return newError(KindAlreadyBilled, serials, "The following work orders are already billed: %s", joinList(serials))
	}
	return storageErr(err, "Bill", "")
}

// CreateIndividualBill bills exactly one work order.
func (s *BillingService) CreateIndividualBill(ctx context.Context, auth policy.AuthContext, workOrderID string, req *CreateBillRequest) (*entity.Bill, error) {
	if err := s.authorize(auth); err != nil {
		return nil, err
	}
	billDate, err := parseDate("bill_date", req.BillDate)
	if err != nil {
		return nil, err
	}
	var teeth []int
	if req.ToothNumbers != nil {
		if teeth, err = validateTeeth(req.ToothNumbers); err != nil {
			return nil, err
		}
	}

	lease, err := s.lockOrders(ctx, []string{workOrderID})
	if err != nil {
		return nil, err
	}
	defer lease.Release(context.Background())

	var bill *entity.Bill
	var serial string
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		wo, err := tx.WorkOrder.FindByID(ctx, workOrderID)
		if err != nil {
			return err
		}
		serial = wo.SerialNumber

		ref, err := findBillRef(ctx, tx, wo.ID)
		if err != nil {
			return err
		}
		if ref != nil {
			return newError(KindAlreadyBilled, []string{wo.SerialNumber}, "Work order %s is already billed", wo.SerialNumber)
		}
		if err := checkCompleted([]entity.WorkOrder{*wo}); err != nil {
			return err
		}

		bill = &entity.Bill{
			ID:              uuid.New().String()[:32],
			SerialNumber:    wo.SerialNumber,
			WorkOrderID:     &wo.ID,
			BatchID:         wo.BatchID,
			DoctorName:      wo.DoctorName,
			PatientName:     wo.PatientName,
			WorkDescription: strings.TrimSpace(req.WorkDescription),
			ToothNumbers:    toothColumn(wo.ToothNumbers),
			BillDate:        today(s.now()),
			CompletionDate:  wo.CompletionDate,
			Status:          entity.BillStatusPending,
			Amount:          decimal.Zero,
			Notes:           req.Notes,
			CreatedBy:       auth.UserID,
		}
		if bill.WorkDescription == "" {
			bill.WorkDescription = wo.Description()
		}
		if billDate != nil {
			bill.BillDate = *billDate
		}
		if teeth != nil {
			bill.ToothNumbers = toothColumn(teeth)
		}

		if err := tx.Bill.Create(ctx, bill); err != nil {
			return err
		}
		if err := tx.Bill.CreateClaims(ctx, []entity.BillClaim{{
			WorkOrderID: wo.ID,
			BillID:      bill.ID,
			Kind:        entity.BillKindIndividual,
		}}); err != nil {
			return err
		}
		return tx.ActivityLog.LogActivity(ctx, entity.EntityBill, bill.ID, bill.SerialNumber,
			"create", "", bill.Status, "individual bill for "+wo.SerialNumber, auth.UserID)
	})
	if err != nil {
		if !isServiceError(err) {
			s.logger.Error("create individual bill failed", zap.String("work_order", workOrderID), zap.Error(err))
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errNotFound("Work order", workOrderID)
		}
		return nil, billingErr(err, []string{serial})
	}

	s.logger.Info("individual bill created",
		zap.String("bill", bill.ID),
		zap.String("work_order", workOrderID),
		zap.String("user", auth.UserID))
	return bill, nil
}

// CreateGroupedBill bills one or more completed orders of one doctor
// together. Checks run in order: missing orders, already billed, incomplete,
// mixed doctors. Nothing is written unless all pass.
func (s *BillingService) CreateGroupedBill(ctx context.Context, auth policy.AuthContext, req *GroupedBillRequest) (*GroupedBill, error) {
	if err := s.authorize(auth); err != nil {
		return nil, err
	}
	ids, err := groupIDs(req.WorkOrderIDs)
	if err != nil {
		return nil, err
	}
	billDate, err := parseDate("bill_date", req.BillDate)
	if err != nil {
		return nil, err
	}
	var teeth []int
	if req.ToothNumbers != nil {
		if teeth, err = validateTeeth(req.ToothNumbers); err != nil {
			return nil, err
		}
	}

	lease, err := s.lockOrders(ctx, ids)
	if err != nil {
		return nil, err
	}
	defer lease.Release(context.Background())

	var result *GroupedBill
	var serials []string
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		orders, err := s.loadGroup(ctx, tx, ids)
		if err != nil {
			return err
		}
		serials = make([]string, len(orders))
		for i := range orders {
			serials[i] = orders[i].SerialNumber
		}

		if err := checkUnbilled(ctx, tx, orders); err != nil {
			return err
		}
		if err := checkCompleted(orders); err != nil {
			return err
		}
		doctor, err := checkSameDoctor(orders, req.DoctorName)
		if err != nil {
			return err
		}

		bill := s.composeGroupedBill(orders, doctor)
		bill.Notes = req.Notes
		bill.BatchID = req.BatchID
		bill.CreatedBy = auth.UserID
		if billDate != nil {
			bill.BillDate = *billDate
		}
		if teeth != nil {
			bill.ToothNumbers = toothColumn(teeth)
		}

		items := make([]entity.BillItem, len(orders))
		claims := make([]entity.BillClaim, len(orders))
		for i := range orders {
			wo := &orders[i]
			items[i] = entity.BillItem{
				ID:             uuid.New().String()[:32],
				BillID:         bill.ID,
				WorkOrderID:    wo.ID,
				SerialNumber:   wo.SerialNumber,
				ProductQuality: wo.ProductQuality,
				ProductShade:   wo.ProductShade,
				Quantity:       1,
				UnitPrice:      decimal.Zero,
				TotalPrice:     decimal.Zero,
			}
			if wo.Feedback != "" {
				notes := wo.Feedback
				items[i].Notes = &notes
			}
			claims[i] = entity.BillClaim{WorkOrderID: wo.ID, BillID: bill.ID, Kind: entity.BillKindGrouped}
		}

		if err := tx.Bill.Create(ctx, bill); err != nil {
			return err
		}
		if err := tx.Bill.CreateClaims(ctx, claims); err != nil {
			return err
		}
		if err := tx.Bill.CreateItems(ctx, items); err != nil {
			return err
		}
		if err := tx.ActivityLog.LogActivity(ctx, entity.EntityBill, bill.ID, bill.SerialNumber,
			"create", "", bill.Status, "grouped bill for "+bill.SerialNumber, auth.UserID); err != nil {
			return err
		}

		bill.Items = items
		result = &GroupedBill{Bill: bill, Items: items}
		return nil
	})
	if err != nil {
		if !isServiceError(err) {
			s.logger.Error("create grouped bill failed", zap.Strings("work_orders", ids), zap.Error(err))
		}
		return nil, billingErr(err, serials)
	}

	s.logger.Info("grouped bill created",
		zap.String("bill", result.Bill.ID),
		zap.Int("items", len(result.Items)),
		zap.String("user", auth.UserID))
	return result, nil
}

// CreateBatchBill groups every order of a batch into one bill.
func (s *BillingService) CreateBatchBill(ctx context.Context, auth policy.AuthContext, batchID string, req *CreateBillRequest) (*GroupedBill, error) {
	if err := s.authorize(auth); err != nil {
		return nil, err
	}
	orders, err := s.repos.WorkOrder.FindByBatch(ctx, batchID)
	if err != nil {
		return nil, storageErr(err, "Batch", batchID)
	}
	if len(orders) == 0 {
		return nil, errNotFound("Batch", batchID)
	}
	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	return s.CreateGroupedBill(ctx, auth, &GroupedBillRequest{
		WorkOrderIDs: ids,
		Notes:        req.Notes,
		BillDate:     req.BillDate,
		ToothNumbers: req.ToothNumbers,
		BatchID:      &batchID,
	})
}

func groupIDs(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, errValidation([]string{"work_order_ids"}, "At least one work order is required")
	}
	seen := make(map[string]struct{}, len(raw))
	ids := make([]string, 0, len(raw))
	var dups []string
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, errValidation([]string{"work_order_ids"}, "Work order ids must not be empty")
		}
		if _, ok := seen[id]; ok {
			dups = append(dups, id)
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(dups) > 0 {
		return nil, errValidation(dups, "Duplicate work orders in group: %s", joinList(dups))
	}
	return ids, nil
}

// loadGroup fetches the orders in input order, failing on any missing id.
func (s *BillingService) loadGroup(ctx context.Context, tx *repository.Repositories, ids []string) ([]entity.WorkOrder, error) {
	found, err := tx.WorkOrder.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]entity.WorkOrder, len(found))
	for _, wo := range found {
		byID[wo.ID] = wo
	}

	orders := make([]entity.WorkOrder, 0, len(ids))
	var missing []string
	for _, id := range ids {
		wo, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		orders = append(orders, wo)
	}
	if len(missing) > 0 {
		return nil, newError(KindNotFound, missing, "Work orders not found: %s", joinList(missing))
	}
	return orders, nil
}

func checkUnbilled(ctx context.Context, tx *repository.Repositories, orders []entity.WorkOrder) error {
	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	refs, err := tx.Bill.FindBillRefs(ctx, ids)
	if err != nil {
		return err
	}
	var billed []string
	for _, wo := range orders {
		if _, ok := refs[wo.ID]; ok {
			billed = append(billed, wo.SerialNumber)
		}
	}
	if len(billed) > 0 {
		return newError(KindAlreadyBilled, billed, "The following work orders are already billed: %s", joinList(billed))
	}
	return nil
}

func checkCompleted(orders []entity.WorkOrder) error {
	var incomplete []string
	for _, wo := range orders {
		if wo.Status != entity.WorkOrderStatusCompleted || wo.CompletionDate == nil {
			incomplete = append(incomplete, wo.SerialNumber)
		}
	}
	if len(incomplete) > 0 {
		return newError(KindIncompleteOrders, incomplete,
			"All work orders must be completed before billing. Not completed: %s", joinList(incomplete))
	}
	return nil
}

// checkSameDoctor returns the display name for the bill. A caller supplied
// name takes part in the comparison.
func checkSameDoctor(orders []entity.WorkOrder, requested string) (string, error) {
	names := make([]string, 0, len(orders)+1)
	for _, wo := range orders {
		names = append(names, wo.DoctorName)
	}
	requested = strings.TrimSpace(requested)
	if requested != "" {
		names = append(names, requested)
	}

	normalized := make(map[string]struct{})
	seen := make(map[string]struct{})
	var originals []string
	for _, name := range names {
		normalized[NormalizeDoctor(name)] = struct{}{}
		display := strings.TrimSpace(name)
		if _, ok := seen[display]; !ok {
			seen[display] = struct{}{}
			originals = append(originals, display)
		}
	}
	if len(normalized) > 1 {
		return "", newError(KindMixedDoctors, originals,
			"All work orders must be from the same doctor. Found: %s", joinList(originals))
	}
	if requested != "" {
		return requested, nil
	}
	return strings.TrimSpace(orders[0].DoctorName), nil
}

// groupFields are the bill columns derived from the orders of a group.
type groupFields struct {
	serial      string
	patient     string
	description string
	teeth       []int
	completion  *time.Time
}

// deriveGroup computes groupFields in the given order: serials and
// descriptions joined, one patient or MultiplePatients, the sorted tooth
// union and the latest completion date.
func deriveGroup(orders []entity.WorkOrder) groupFields {
	patients := make(map[string]struct{})
	serials := make([]string, len(orders))
	descriptions := make([]string, len(orders))
	teeth := make([][]int, len(orders))
	var completion *time.Time
	for i := range orders {
		wo := &orders[i]
		patients[wo.PatientName] = struct{}{}
		serials[i] = wo.SerialNumber
		descriptions[i] = wo.Description()
		teeth[i] = wo.ToothNumbers
		if wo.CompletionDate != nil && (completion == nil || wo.CompletionDate.After(*completion)) {
			completion = wo.CompletionDate
		}
	}

	g := groupFields{
		serial:      strings.Join(serials, ", "),
		description: strings.Join(descriptions, ", "),
		teeth:       tooth.Union(teeth...),
		completion:  completion,
	}
	if len(orders) > 0 {
		g.patient = orders[0].PatientName
	}
	if len(patients) > 1 {
		g.patient = entity.MultiplePatients
	}
	return g
}

func (s *BillingService) composeGroupedBill(orders []entity.WorkOrder, doctor string) *entity.Bill {
	g := deriveGroup(orders)
	groupID := uuid.New().String()

	return &entity.Bill{
		ID:              uuid.New().String()[:32],
		SerialNumber:    g.serial,
		IsGrouped:       true,
		GroupID:         &groupID,
		DoctorName:      doctor,
		PatientName:     g.patient,
		WorkDescription: g.description,
		ToothNumbers:    toothColumn(g.teeth),
		BillDate:        today(s.now()),
		CompletionDate:  g.completion,
		Status:          entity.BillStatusPending,
		Amount:          decimal.Zero,
	}
}

// CheckHasBill reports whether the order is billed, and by which bill.
func (s *BillingService) CheckHasBill(ctx context.Context, workOrderID string) (*HasBill, error) {
	if _, err := s.repos.WorkOrder.FindByID(ctx, workOrderID); err != nil {
		return nil, storageErr(err, "Work order", workOrderID)
	}
	ref, err := findBillRef(ctx, s.repos, workOrderID)
	if err != nil {
		return nil, storageErr(err, "Work order", workOrderID)
	}
	if ref == nil {
		return &HasBill{}, nil
	}
	bill, err := s.repos.Bill.FindByID(ctx, ref.BillID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, storageErr(err, "Bill", ref.BillID)
	}
	return &HasBill{HasBill: true, Kind: ref.Kind, Bill: bill}, nil
}

// FindOrphanedGroupedBills grouped bills without items, for manual cleanup.
func (s *BillingService) FindOrphanedGroupedBills(ctx context.Context, auth policy.AuthContext) ([]entity.Bill, error) {
	if err := s.authorize(auth); err != nil {
		return nil, err
	}
	bills, err := s.repos.Bill.FindOrphanedGrouped(ctx)
	if err != nil {
		return nil, storageErr(err, "Bills", "")
	}
	if len(bills) > 0 {
		s.logger.Warn("orphaned grouped bills found", zap.Int("count", len(bills)))
	}
	return bills, nil
}

// Get one bill with its items
func (s *BillingService) Get(ctx context.Context, id string) (*entity.Bill, error) {
	bill, err := s.repos.Bill.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, "Bill", id)
	}
	bill.SumItems()
	return bill, nil
}

// Detail resolves the bill, its work orders and the quadrant layout.
func (s *BillingService) Detail(ctx context.Context, id string) (*BillDetail, error) {
	bill, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var ids []string
	if bill.IsGrouped {
		for _, item := range bill.Items {
			ids = append(ids, item.WorkOrderID)
		}
	} else if bill.WorkOrderID != nil {
		ids = []string{*bill.WorkOrderID}
	}
	found, err := s.repos.WorkOrder.FindByIDs(ctx, ids)
	if err != nil {
		return nil, storageErr(err, "Bill", id)
	}
	byID := make(map[string]entity.WorkOrder, len(found))
	for _, wo := range found {
		byID[wo.ID] = wo
	}
	orders := make([]entity.WorkOrder, 0, len(ids))
	for _, woID := range ids {
		if wo, ok := byID[woID]; ok {
			wo.FillLabel()
			orders = append(orders, wo)
		}
	}

	quadrants := tooth.GroupByQuadrant(bill.ToothNumbers)
	return &BillDetail{
		Bill:       bill,
		WorkOrders: orders,
		Quadrants:  quadrants,
		Grid:       quadrants.Grid(),
		Teeth:      tooth.Describe(bill.ToothNumbers),
	}, nil
}

// List one page of bills
func (s *BillingService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Bill, int64, error) {
	bills, total, err := s.repos.Bill.FindAll(ctx, page, pageSize, filters)
	if err != nil {
		return nil, 0, storageErr(err, "Bills", "")
	}
	for i := range bills {
		bills[i].SumItems()
	}
	return bills, total, nil
}
