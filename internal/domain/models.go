// Package domain defines the core business entities for the CRM client.
// These models are independent of the hosted backend and represent the
// canonical data structures used throughout the BFF.
package domain

// ============================================================
// Roles
// ============================================================

// Role is a user's access role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleSales  Role = "sales"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleSales || r == RoleViewer
}

// ============================================================
// Users
// ============================================================

// User represents a CRM user (linked to the hosted auth identity).
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// UserRef is the shape returned by foreign-key expansions
// (owner:users!owner_id(id, email, name)).
type UserRef struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// ============================================================
// Customers
// ============================================================

// CustomerStatus is the 11-way pipeline status of a customer.
type CustomerStatus string

const (
	StatusSampleWon     CustomerStatus = "sample_won"
	StatusNegotiating   CustomerStatus = "negotiating"
	StatusInProduction  CustomerStatus = "in_production"
	StatusCompleted     CustomerStatus = "completed"
	StatusNewRound      CustomerStatus = "new_round"
	StatusWonByOthers   CustomerStatus = "won_by_others"
	StatusPotential     CustomerStatus = "potential"
	StatusHighValue     CustomerStatus = "high_value"
	StatusNoResponse    CustomerStatus = "no_response"
	StatusNotExecutable CustomerStatus = "not_executable"
	StatusLowPriority   CustomerStatus = "low_priority"
)

// CustomerSource is where an inquiry came from.
type CustomerSource string

const (
	SourceWebsite     CustomerSource = "website"
	SourceEmail       CustomerSource = "email"
	SourceExhibition  CustomerSource = "exhibition"
	SourceReferral    CustomerSource = "referral"
	SourceColdCall    CustomerSource = "cold_call"
	SourceSocialMedia CustomerSource = "social_media"
	SourceOther       CustomerSource = "other"
)

// FollowMethod is how a customer was contacted.
type FollowMethod string

const (
	MethodEmail    FollowMethod = "email"
	MethodPhone    FollowMethod = "phone"
	MethodWhatsapp FollowMethod = "whatsapp"
	MethodWechat   FollowMethod = "wechat"
	MethodMeeting  FollowMethod = "meeting"
	MethodOther    FollowMethod = "other"
)

// Customer is a business record owned by exactly one user.
type Customer struct {
	ID             string         `json:"id"`
	Code           string         `json:"code"`
	InquiryDate    string         `json:"inquiry_date"`
	Status         CustomerStatus `json:"status"`
	IsEntered      bool           `json:"is_entered"`
	Country        string         `json:"country"`
	Contact        string         `json:"contact"`
	Company        string         `json:"company"`
	Product        string         `json:"product"`
	Email          string         `json:"email,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	Source         CustomerSource `json:"source"`
	FollowMethod   FollowMethod   `json:"follow_method,omitempty"`
	Remark         string         `json:"remark,omitempty"`
	LastFollowDate string         `json:"last_follow_date,omitempty"`
	OwnerID        string         `json:"owner_id"`
	Owner          *UserRef       `json:"owner,omitempty"`
	CreatedAt      string         `json:"created_at,omitempty"`
	UpdatedAt      string         `json:"updated_at,omitempty"`
	Orders         []Order        `json:"orders,omitempty"`
	Followups      []Followup     `json:"followups,omitempty"`
}

// CustomerFilter narrows a customer list query. All set fields combine
// conjunctively; Keyword matches disjunctively across
// company/contact/email/phone/code.
type CustomerFilter struct {
	Keyword   string
	Country   string
	Status    CustomerStatus
	IsEntered *bool
	OwnerID   string
	Source    CustomerSource
	DateFrom  string // inclusive, on inquiry_date
	DateTo    string // inclusive, on inquiry_date
}

// ============================================================
// Orders
// ============================================================

// OrderStatus is the 6-way lifecycle status of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProduction OrderStatus = "production"
	OrderShipped    OrderStatus = "shipped"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

// CustomerRef is the shape returned by the customer expansion on
// orders and followups (customer:customers(id, code, company, contact)).
type CustomerRef struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Company string `json:"company"`
	Contact string `json:"contact,omitempty"`
}

// Order belongs to exactly one customer.
type Order struct {
	ID         string       `json:"id"`
	CustomerID string       `json:"customer_id"`
	OrderNo    string       `json:"order_no"`
	Profit     float64      `json:"profit,omitempty"`
	Product    string       `json:"product"`
	Status     OrderStatus  `json:"status"`
	CreateDate string       `json:"create_date"`
	Remark     string       `json:"remark,omitempty"`
	CreatedAt  string       `json:"created_at,omitempty"`
	UpdatedAt  string       `json:"updated_at,omitempty"`
	Customer   *CustomerRef `json:"customer,omitempty"`
}

// OrderFilter narrows an order list query. Keyword matches order_no
// or product.
type OrderFilter struct {
	Keyword    string
	Status     OrderStatus
	CustomerID string
	DateFrom   string // inclusive, on create_date
	DateTo     string // inclusive, on create_date
}

// ============================================================
// Followups
// ============================================================

// Followup records one contact with a customer, authored by one user.
type Followup struct {
	ID         string       `json:"id"`
	CustomerID string       `json:"customer_id"`
	FollowDate string       `json:"follow_date"`
	Method     FollowMethod `json:"method"`
	Content    string       `json:"content"`
	NextPlan   string       `json:"next_plan,omitempty"`
	RemindAt   string       `json:"remind_at,omitempty"`
	FollowerID string       `json:"follower_id"`
	Follower   *UserRef     `json:"follower,omitempty"`
	CreatedAt  string       `json:"created_at,omitempty"`
	UpdatedAt  string       `json:"updated_at,omitempty"`
	Customer   *CustomerRef `json:"customer,omitempty"`
}

// ============================================================
// Pagination
// ============================================================

// Pagination describes a window over a server-side ordered result set.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total"`
}

// Window returns the inclusive [from, to] row range for the page.
func (p Pagination) Window() (from, to int) {
	from = (p.Page - 1) * p.PageSize
	return from, from + p.PageSize - 1
}

// ============================================================
// Dashboard
// ============================================================

// DashboardStats is the pre-aggregated snapshot returned by the
// get_dashboard_stats remote procedure. It is never persisted locally.
type DashboardStats struct {
	TotalCustomers      int            `json:"total_customers"`
	TodayNew            int            `json:"today_new"`
	Last7DaysNew        int            `json:"last_7_days_new"`
	Last30DaysFollowups int            `json:"last_30_days_followups"`
	TotalProfit         float64        `json:"total_profit"`
	ByCountry           map[string]int `json:"by_country"`
	BySource            map[string]int `json:"by_source"`
	ByStatus            map[string]int `json:"by_status"`
	RecentFollowups     []Followup     `json:"recent_followups,omitempty"`
	PendingReminders    []Followup     `json:"pending_reminders,omitempty"`
}

// ============================================================
// Import
// ============================================================

// ImportError pins a failed import row to its zero-based input index.
type ImportError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// ImportResult summarises a batch customer import. One row failing
// does not abort the rest; there is no rollback.
type ImportResult struct {
	Success int           `json:"success"`
	Failed  int           `json:"failed"`
	Errors  []ImportError `json:"errors"`
}
