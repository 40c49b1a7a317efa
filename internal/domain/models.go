package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleSuperAdmin  = "SUPER_ADMIN"
	RoleAdmin       = "ADMIN"
	RoleFinance     = "FINANCE"
	RolePOSUser     = "POS_USER"
	RoleFarmAdmin   = "FARM_ADMIN"
	RoleFarmManager = "FARM_MANAGER"
	RoleInventory   = "INVENTORY"
	RoleUser        = "USER"
)

var Roles = []string{
	RoleSuperAdmin, RoleAdmin, RoleFinance, RolePOSUser,
	RoleFarmAdmin, RoleFarmManager, RoleInventory, RoleUser,
}

const (
	ModuleDashboard   = "DASHBOARD"
	ModuleInvestment  = "INVESTMENT"
	ModuleExpenses    = "EXPENSES"
	ModulePOS         = "POS"
	ModuleInventory   = "INVENTORY"
	ModuleSlaughter   = "SLAUGHTER"
	ModuleProducts    = "PRODUCTS"
	ModuleReports     = "REPORTS"
	ModuleUsers       = "USERS"
	ModuleAllowance   = "ALLOWANCE"
	ModuleMyAllowance = "MY_ALLOWANCE"
	ModuleProfile     = "PROFILE"
	ModuleAudit       = "AUDIT"
)

var Modules = []string{
	ModuleDashboard, ModuleInvestment, ModuleExpenses, ModulePOS, ModuleInventory,
	ModuleSlaughter, ModuleProducts, ModuleReports, ModuleUsers, ModuleAllowance,
	ModuleMyAllowance, ModuleProfile, ModuleAudit,
}

const (
	UnitPerKG   = "PER_KG"
	UnitPerUnit = "PER_UNIT"
)

const (
	LivestockCow     = "COW"
	LivestockChicken = "CHICKEN"

	LivestockAlive              = "ALIVE"
	LivestockPartialSlaughtered = "PARTIAL_SLAUGHTERED"
	LivestockSlaughtered        = "SLAUGHTERED"
	LivestockSold               = "SOLD"
	LivestockDeceased           = "DECEASED"
)

const (
	PaymentCash     = "CASH"
	PaymentQR       = "QR"
	PaymentTransfer = "TRANSFER"

	TxStatusCompleted = "COMPLETED"
)

const (
	InvestmentPending  = "PENDING"
	InvestmentApproved = "APPROVED"
	InvestmentRejected = "REJECTED"

	InvestmentSourceMember = "MEMBER_CONTRIBUTION"
	DefaultSummaryCategory = "OPERATIONS"

	ChangeIncrease   = "INCREASE"
	ChangeDecrease   = "DECREASE"
	ChangeCorrection = "CORRECTION"
)

const (
	CycleQuarterly = "QUARTERLY"
	CycleHalfYear  = "HALF_YEAR"
	CycleYearly    = "YEARLY"

	DividendDeclared  = "DECLARED"
	DividendPaid      = "PAID"
	DividendCancelled = "CANCELLED"
)

const (
	InvoiceDraft     = "DRAFT"
	InvoiceIssued    = "ISSUED"
	InvoiceSubmitted = "SUBMITTED"
	InvoiceApproved  = "APPROVED"
	InvoiceFinalized = "FINALIZED"
)

const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
	ActionLogin  = "LOGIN"
)

type Actor struct {
	UserID   string
	Username string
	Role     string
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Branch       string    `json:"branch,omitempty"`
	Position     string    `json:"position,omitempty"`
	Active       bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	User      User   `json:"user"`
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Branch   string `json:"branch"`
	Position string `json:"position"`
}

type UserUpdateRequest struct {
	Name     *string `json:"name,omitempty"`
	Role     *string `json:"role,omitempty"`
	Branch   *string `json:"branch,omitempty"`
	Position *string `json:"position,omitempty"`
	Active   *bool   `json:"isActive,omitempty"`
	Password *string `json:"password,omitempty"`
}

type PasswordResetRequest struct {
	Username    string `json:"username"`
	NewPassword string `json:"newPassword"`
}

type ModulePermission struct {
	Module  string `json:"module"`
	Allowed bool   `json:"allowed"`
}

type PermissionUpdateRequest struct {
	Modules []ModulePermission `json:"modules"`
}

type Product struct {
	ID        string              `json:"id"`
	SKU       string              `json:"sku"`
	Name      string              `json:"name"`
	Category  string              `json:"category"`
	UnitType  string              `json:"unitType"`
	Price     decimal.Decimal     `json:"price"`
	CostPrice decimal.NullDecimal `json:"costPrice"`
	Stock     decimal.Decimal     `json:"stock"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

type ProductFilter struct {
	Category string
	Search   string
}

type ProductCreateRequest struct {
	SKU       string              `json:"sku"`
	Name      string              `json:"name"`
	Category  string              `json:"category"`
	UnitType  string              `json:"unitType"`
	Price     decimal.Decimal     `json:"price"`
	CostPrice decimal.NullDecimal `json:"costPrice"`
	Stock     decimal.Decimal     `json:"stock"`
}

type ProductUpdateRequest struct {
	SKU       *string          `json:"sku,omitempty"`
	Name      *string          `json:"name,omitempty"`
	Category  *string          `json:"category,omitempty"`
	UnitType  *string          `json:"unitType,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	CostPrice *decimal.Decimal `json:"costPrice,omitempty"`
}

type Livestock struct {
	ID              string              `json:"id"`
	Type            string              `json:"type"`
	BatchID         string              `json:"batchId,omitempty"`
	TagID           string              `json:"tagId,omitempty"`
	Quantity        int                 `json:"quantity"`
	InitialQuantity int                 `json:"initialQuantity"`
	InitialWeight   decimal.NullDecimal `json:"initialWeight"`
	CurrentWeight   decimal.NullDecimal `json:"currentWeight"`
	Status          string              `json:"status"`
	DateReceived    time.Time           `json:"dateReceived"`
	FarmLocation    string              `json:"farmLocation,omitempty"`
	CostPrice       decimal.NullDecimal `json:"costPrice"`
	Notes           string              `json:"notes,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	SlaughterLogs   []SlaughterLog      `json:"slaughterLogs,omitempty"`
}

type LivestockFilter struct {
	Type   string
	Status string
}

type LivestockCreateRequest struct {
	Type          string              `json:"type"`
	BatchID       string              `json:"batchId"`
	TagID         string              `json:"tagId"`
	Quantity      int                 `json:"quantity"`
	InitialWeight decimal.NullDecimal `json:"initialWeight"`
	DateReceived  string              `json:"dateReceived"`
	FarmLocation  string              `json:"farmLocation"`
	CostPrice     decimal.NullDecimal `json:"costPrice"`
	Notes         string              `json:"notes"`
}

type LivestockUpdateRequest struct {
	BatchID       *string          `json:"batchId,omitempty"`
	TagID         *string          `json:"tagId,omitempty"`
	CurrentWeight *decimal.Decimal `json:"currentWeight,omitempty"`
	FarmLocation  *string          `json:"farmLocation,omitempty"`
	CostPrice     *decimal.Decimal `json:"costPrice,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
	Status        *string          `json:"status,omitempty"`
}

type SlaughterLog struct {
	ID          string              `json:"id"`
	LivestockID string              `json:"livestockId"`
	Quantity    int                 `json:"quantity"`
	YieldWeight decimal.NullDecimal `json:"yieldWeight"`
	Notes       string              `json:"notes,omitempty"`
	RecordedBy  string              `json:"recordedBy,omitempty"`
	Date        time.Time           `json:"date"`
}

type ProducedProduct struct {
	ProductID string          `json:"productId"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type SlaughterRequest struct {
	LivestockID      string              `json:"livestockId"`
	Quantity         int                 `json:"quantity"`
	YieldWeight      decimal.NullDecimal `json:"yieldWeight"`
	Notes            string              `json:"notes"`
	ProducedProducts []ProducedProduct   `json:"producedProducts"`
}

type SlaughterResult struct {
	Log       SlaughterLog      `json:"log"`
	Livestock Livestock         `json:"livestock"`
	Applied   []ProducedProduct `json:"applied"`
	Skipped   []ProducedProduct `json:"skipped"`
}

type Transaction struct {
	ID            string            `json:"id"`
	UserID        string            `json:"userId"`
	MemberID      string            `json:"memberId,omitempty"`
	TotalAmount   decimal.Decimal   `json:"totalAmount"`
	PaymentMethod string            `json:"paymentMethod"`
	Status        string            `json:"status"`
	Date          time.Time         `json:"date"`
	Items         []TransactionItem `json:"items"`
}

type TransactionItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type TransactionFilter struct {
	From time.Time
	To   time.Time
}

type CheckoutItem struct {
	ProductID string          `json:"productId"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type CheckoutRequest struct {
	Items         []CheckoutItem `json:"items"`
	PaymentMethod string         `json:"paymentMethod"`
	MemberID      string         `json:"memberId,omitempty"`
}

// FinancialTotals is the raw revenue and cost scan behind ROI and dividends.
type FinancialTotals struct {
	Revenue decimal.Decimal
	Cost    decimal.Decimal
}

type MemberInvestment struct {
	ID              string          `json:"id"`
	SubmittedBy     string          `json:"submittedBy"`
	MemberID        string          `json:"memberId"`
	Amount          decimal.Decimal `json:"amount"`
	Type            string          `json:"type"`
	BankName        string          `json:"bankName,omitempty"`
	ReferenceNo     string          `json:"referenceNo,omitempty"`
	Date            time.Time       `json:"date"`
	Notes           string          `json:"notes,omitempty"`
	Status          string          `json:"status"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	ApprovedBy      string          `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time      `json:"approvedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type MemberInvestmentRequest struct {
	MemberID    string          `json:"memberId"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	BankName    string          `json:"bankName"`
	ReferenceNo string          `json:"referenceNo"`
	Date        string          `json:"date"`
	Notes       string          `json:"notes"`
}

type InvestmentFilter struct {
	Status      string
	SubmittedBy string
}

type MemberInvestmentHistory struct {
	ID              string          `json:"id"`
	InvestmentID    string          `json:"investmentId"`
	MemberID        string          `json:"memberId"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate time.Time       `json:"transactionDate"`
	ApprovedBy      string          `json:"approvedBy"`
	ApprovedAt      time.Time       `json:"approvedAt"`
	Source          string          `json:"source"`
}

type IndividualInvestment struct {
	MemberID                string          `json:"memberId"`
	MemberName              string          `json:"memberName"`
	TotalApprovedInvestment decimal.Decimal `json:"totalApprovedInvestment"`
	LastInvestmentDate      *time.Time      `json:"lastInvestmentDate"`
	InvestmentCount         int             `json:"investmentCount"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type InvestmentSummary struct {
	ID          string          `json:"id"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	StartDate   time.Time       `json:"startDate"`
	Category    string          `json:"category"`
	Active      bool            `json:"active"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type InvestmentSummaryRequest struct {
	TotalAmount decimal.Decimal `json:"totalAmount"`
	StartDate   string          `json:"startDate"`
	Category    string          `json:"category"`
	Active      *bool           `json:"active,omitempty"`
	Reason      string          `json:"reason"`
}

// SummaryUpdate is a validated direct edit of the active summary.
type SummaryUpdate struct {
	TotalAmount decimal.Decimal
	StartDate   time.Time
	Category    string
	Active      bool
	Reason      string
	EditedBy    string
	At          time.Time
}

type InvestmentHistory struct {
	ID             string          `json:"id"`
	SummaryID      string          `json:"investmentId"`
	PreviousAmount decimal.Decimal `json:"previousAmount"`
	NewAmount      decimal.Decimal `json:"newAmount"`
	ChangeType     string          `json:"changeType"`
	EditedBy       string          `json:"editedBy"`
	Reason         string          `json:"reason"`
	Timestamp      time.Time       `json:"timestamp"`
}

type SummaryChange struct {
	Previous *InvestmentSummary `json:"previous,omitempty"`
	Summary  InvestmentSummary  `json:"summary"`
	History  InvestmentHistory  `json:"history"`
}

type ApprovalResult struct {
	Investment MemberInvestment  `json:"investment"`
	Summary    InvestmentSummary `json:"summary"`
}

type DividendSetting struct {
	ID              string          `json:"id"`
	SummaryID       string          `json:"investmentId"`
	Cycle           string          `json:"cycle"`
	Percentage      decimal.Decimal `json:"percentage"`
	Amount          decimal.Decimal `json:"amount"`
	DeclarationDate *time.Time      `json:"declarationDate"`
	PaymentStatus   string          `json:"paymentStatus"`
	Active          bool            `json:"active"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type DividendRequest struct {
	Cycle           string          `json:"cycle"`
	Percentage      decimal.Decimal `json:"percentage"`
	DeclarationDate string          `json:"declarationDate"`
	PaymentStatus   string          `json:"paymentStatus"`
}

type DividendHistory struct {
	ID              string          `json:"id"`
	DividendID      string          `json:"dividendId"`
	Cycle           string          `json:"cycle"`
	Percentage      decimal.Decimal `json:"percentage"`
	Amount          decimal.Decimal `json:"amount"`
	DeclarationDate time.Time       `json:"declarationDate"`
	Status          string          `json:"status"`
	EditedBy        string          `json:"editedBy"`
	PaymentDate     *time.Time      `json:"paymentDate,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type DividendChange struct {
	Previous *DividendSetting `json:"previous,omitempty"`
	Setting  DividendSetting  `json:"setting"`
}

type ROIReport struct {
	TotalInvestment decimal.Decimal `json:"totalInvestment"`
	TotalRevenue    decimal.Decimal `json:"totalRevenue"`
	TotalCost       decimal.Decimal `json:"totalCost"`
	NetProfit       decimal.Decimal `json:"netProfit"`
	ROIPercent      decimal.Decimal `json:"roiPercent"`
}

type ExpenseCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Expense struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	CategoryID    string          `json:"categoryId"`
	CategoryName  string          `json:"categoryName,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	PaymentMethod string          `json:"paymentMethod"`
	ReferenceNo   string          `json:"referenceNo,omitempty"`
	BankName      string          `json:"bankName,omitempty"`
	ProofPath     string          `json:"proofPath,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedBy     string          `json:"createdBy"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type ExpenseRequest struct {
	Name          string          `json:"name"`
	CategoryID    string          `json:"categoryId"`
	Amount        decimal.Decimal `json:"amount"`
	Date          string          `json:"date"`
	PaymentMethod string          `json:"paymentMethod"`
	ReferenceNo   string          `json:"referenceNo"`
	BankName      string          `json:"bankName"`
	ProofPath     string          `json:"proofPath"`
	Notes         string          `json:"notes"`
}

type ExpenseHistory struct {
	ID             string          `json:"id"`
	ExpenseID      string          `json:"expenseId"`
	PreviousAmount decimal.Decimal `json:"previousAmount"`
	NewAmount      decimal.Decimal `json:"newAmount"`
	EditedBy       string          `json:"editedBy"`
	EditedAt       time.Time       `json:"editedAt"`
}

type ExpenseVisibility struct {
	SuperAdmin bool `json:"superAdmin"`
	Admin      bool `json:"admin"`
	Finance    bool `json:"finance"`
	POSUser    bool `json:"posUser"`
	FarmAdmin  bool `json:"farmAdmin"`
}

func DefaultExpenseVisibility() ExpenseVisibility {
	return ExpenseVisibility{SuperAdmin: true, Admin: true, Finance: true}
}

// Allows reports whether role may read expenses. Roles without a flag never can.
func (v ExpenseVisibility) Allows(role string) bool {
	switch role {
	case RoleSuperAdmin:
		return v.SuperAdmin
	case RoleAdmin:
		return v.Admin
	case RoleFinance:
		return v.Finance
	case RolePOSUser:
		return v.POSUser
	case RoleFarmAdmin:
		return v.FarmAdmin
	default:
		return false
	}
}

type AllowanceType struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	ApprovalRequired bool   `json:"approvalRequired"`
	Active           bool   `json:"active"`
}

type AllowanceTypeRequest struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	ApprovalRequired bool   `json:"approvalRequired"`
	Active           *bool  `json:"active,omitempty"`
}

type InvoiceAllowance struct {
	ID                string                 `json:"id"`
	InvoiceNumber     string                 `json:"invoiceNumber"`
	UserID            string                 `json:"userId"`
	UserName          string                 `json:"userName,omitempty"`
	Branch            string                 `json:"branch,omitempty"`
	Position          string                 `json:"position,omitempty"`
	Month             int                    `json:"month"`
	Year              int                    `json:"year"`
	TotalAmount       decimal.Decimal        `json:"totalAmount"`
	Status            string                 `json:"status"`
	OriginalInvoiceID string                 `json:"originalInvoiceId,omitempty"`
	ApproverRole      string                 `json:"approverRole,omitempty"`
	ApproverName      string                 `json:"approverName,omitempty"`
	ApprovalTimestamp *time.Time             `json:"approvalTimestamp,omitempty"`
	Items             []InvoiceAllowanceItem `json:"items"`
	CreatedAt         time.Time              `json:"createdAt"`
}

type InvoiceAllowanceItem struct {
	AllowanceTypeID   string          `json:"allowanceTypeId"`
	AllowanceTypeName string          `json:"allowanceTypeName,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Description       string          `json:"description,omitempty"`
}

type InvoiceCreateRequest struct {
	UserID            string                 `json:"userId"`
	Month             int                    `json:"month"`
	Year              int                    `json:"year"`
	Items             []InvoiceAllowanceItem `json:"items"`
	OriginalInvoiceID string                 `json:"originalInvoiceId"`
}

type InvoiceFilter struct {
	UserID string
	Month  int
	Year   int
}

type InvoiceStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// InvoiceStatusChange carries the approver stamp applied on APPROVED and FINALIZED.
type InvoiceStatusChange struct {
	Status       string
	ApproverRole string
	ApproverName string
	At           time.Time
}

type SalesReport struct {
	TotalSales            decimal.Decimal            `json:"totalSales"`
	TotalTransactions     int                        `json:"totalTransactions"`
	Transactions          []Transaction              `json:"transactions"`
	PaymentMethods        map[string]decimal.Decimal `json:"paymentMethods"`
	DailySales            map[string]decimal.Decimal `json:"dailySales"`
	ProductCategoryTotals map[string]decimal.Decimal `json:"productCategoryTotals"`
}

type LivestockSummaryRow struct {
	Type     string `json:"type"`
	Status   string `json:"status"`
	Count    int    `json:"count"`
	Quantity int    `json:"quantity"`
}

type InventoryReport struct {
	Products         []Product             `json:"products"`
	LivestockSummary []LivestockSummaryRow `json:"livestockSummary"`
}

type AllowanceReport struct {
	Year         int                        `json:"year"`
	ByMonth      map[int]decimal.Decimal    `json:"byMonth"`
	ByBranch     map[string]decimal.Decimal `json:"byBranch"`
	ByCategory   map[string]decimal.Decimal `json:"byCategory"`
	StatusCounts map[string]int             `json:"statusCounts"`
}

type AuditLog struct {
	ID            string          `json:"id"`
	ActorID       string          `json:"actorId"`
	ActorUsername string          `json:"actorUsername"`
	ActorRole     string          `json:"actorRole"`
	Action        string          `json:"action"`
	Entity        string          `json:"entity"`
	EntityID      string          `json:"entityId,omitempty"`
	OldValue      json.RawMessage `json:"oldValue,omitempty"`
	NewValue      json.RawMessage `json:"newValue,omitempty"`
	Details       string          `json:"details,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}
