package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// FollowUpStatus is the workflow status of a tracked repair order.
type FollowUpStatus string

const (
	StatusFollowUpBoard      FollowUpStatus = "FOLLOW_UP_BOARD"
	StatusFollowUpTracker    FollowUpStatus = "FOLLOW_UP_TRACKER"
	StatusAppointmentTracker FollowUpStatus = "APPOINTMENT_TRACKER"
	StatusDeleted            FollowUpStatus = "DELETED"
)

// ContactMethod classifies a single customer-outreach event.
type ContactMethod string

const (
	ContactMethodCall      ContactMethod = "call"
	ContactMethodVoicemail ContactMethod = "voicemail"
	ContactMethodText      ContactMethod = "text"
)

// InterestStatus is the customer's recorded interest in a declined job.
type InterestStatus string

const (
	InterestInterested      InterestStatus = "interested"
	InterestNotInterested   InterestStatus = "not_interested"
	InterestAppointmentMade InterestStatus = "appointment_made"
	InterestWorkCompleted   InterestStatus = "work_completed"
)

// AppointmentStatus is the outcome state of a tracked appointment.
type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentNoShow    AppointmentStatus = "no_show"
)

// SaleType distinguishes direct from indirect attributed sales.
type SaleType string

const (
	SaleTypeDirect   SaleType = "direct"
	SaleTypeIndirect SaleType = "indirect"
)

// JobInterest pairs a declined job with the interest the customer expressed.
type JobInterest struct {
	JobID          int64          `json:"job_id"`
	JobName        string         `json:"job_name,omitempty"`
	InterestStatus InterestStatus `json:"interest_status"`
}

// JobInterests is a JSON-encoded column of JobInterest values.
type JobInterests []JobInterest

// Scan implements the sql.Scanner interface
func (j *JobInterests) Scan(value interface{}) error {
	return scanJSON(value, j)
}

// Value implements the driver.Valuer interface
func (j JobInterests) Value() (driver.Value, error) {
	if j == nil {
		return json.Marshal(JobInterests{})
	}
	return json.Marshal(j)
}

// ContactEvent is one customer-outreach attempt. Events are immutable once
// appended to a repair order's contact history.
type ContactEvent struct {
	Timestamp        time.Time     `json:"timestamp"`
	UserID           string        `json:"user_id"`
	UserName         string        `json:"user_name"`
	ContactMethod    ContactMethod `json:"contact_method"`
	ReachCount       int           `json:"reach_count"`
	JobInterests     JobInterests  `json:"job_interests"`
	Notes            string        `json:"notes"`
	FollowUpDate     *time.Time    `json:"follow_up_date,omitempty"`
	AssignedUserID   string        `json:"assigned_user_id,omitempty"`
	AssignedUserName string        `json:"assigned_user_name,omitempty"`
}

// ContactHistory is the append-only, chronologically ordered event list
// stored on a repair order. Insertion order is the order of saves.
type ContactHistory []ContactEvent

// Scan implements the sql.Scanner interface
func (h *ContactHistory) Scan(value interface{}) error {
	return scanJSON(value, h)
}

// Value implements the driver.Valuer interface
func (h ContactHistory) Value() (driver.Value, error) {
	if h == nil {
		return json.Marshal(ContactHistory{})
	}
	return json.Marshal(h)
}

// CallCount returns the number of call-method events in the history.
// Voicemail and text never count toward reach.
func (h ContactHistory) CallCount() int {
	n := 0
	for _, e := range h {
		if e.ContactMethod == ContactMethodCall {
			n++
		}
	}
	return n
}

// PartSnapshot is a quoted part captured at ingestion. Monetary values are
// integer cents.
type PartSnapshot struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PartNumber  string `json:"part_number"`
	Quantity    int    `json:"quantity"`
	CostCents   int64  `json:"cost_cents"`
	RetailCents int64  `json:"retail_cents"`
	TotalCents  int64  `json:"total_cents"`
}

// FeeSnapshot is a quoted fee captured at ingestion.
type FeeSnapshot struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
}

// JobSnapshot is an immutable copy of an upstream job taken when the repair
// order was ingested. The core never mutates these.
type JobSnapshot struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Category        string         `json:"category"`
	LaborHours      float64        `json:"labor_hours"`
	LaborRateCents  int64          `json:"labor_rate_cents"`
	LaborTotalCents int64          `json:"labor_total_cents"`
	Parts           []PartSnapshot `json:"parts"`
	Fees            []FeeSnapshot  `json:"fees"`
	SubtotalCents   int64          `json:"subtotal_cents"`
	TaxCents        int64          `json:"tax_cents"`
	TotalCents      int64          `json:"total_cents"`
}

// JobSnapshots is a JSON-encoded column of job snapshots.
type JobSnapshots []JobSnapshot

// Scan implements the sql.Scanner interface
func (j *JobSnapshots) Scan(value interface{}) error {
	return scanJSON(value, j)
}

// Value implements the driver.Valuer interface
func (j JobSnapshots) Value() (driver.Value, error) {
	if j == nil {
		return json.Marshal(JobSnapshots{})
	}
	return json.Marshal(j)
}

// ContainsName reports whether any snapshot has the given job name.
func (j JobSnapshots) ContainsName(name string) bool {
	for _, job := range j {
		if job.Name == name {
			return true
		}
	}
	return false
}

// Vehicle is the vehicle a repair order was written against.
type Vehicle struct {
	ID      int64  `json:"id"`
	Year    int    `json:"year"`
	Make    string `json:"make"`
	Model   string `json:"model"`
	VIN     string `json:"vin"`
	Mileage int    `json:"mileage"`
}

// Scan implements the sql.Scanner interface
func (v *Vehicle) Scan(value interface{}) error {
	return scanJSON(value, v)
}

// Value implements the driver.Valuer interface
func (v Vehicle) Value() (driver.Value, error) {
	return json.Marshal(v)
}

// StringList is a JSON-encoded column of strings.
type StringList []string

// Scan implements the sql.Scanner interface
func (s *StringList) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// Value implements the driver.Valuer interface
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal(StringList{})
	}
	return json.Marshal(s)
}

// scanJSON decodes a JSON database value into dst.
func scanJSON(value interface{}, dst interface{}) error {
	if value == nil {
		return nil
	}
	switch b := value.(type) {
	case []byte:
		return json.Unmarshal(b, dst)
	case string:
		return json.Unmarshal([]byte(b), dst)
	default:
		return errors.New("unsupported type for JSON column")
	}
}

// RepairOrder is one upstream repair order with at least one declined job,
// tracked through the follow-up workflow.
type RepairOrder struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	ROID         string         `gorm:"column:ro_id;uniqueIndex;size:64;not null" json:"ro_id"`
	RONumber     string         `gorm:"column:ro_number;size:64" json:"ro_number"`
	UpstreamROID int64          `gorm:"column:upstream_ro_id;index" json:"upstream_ro_id"`
	Status       FollowUpStatus `gorm:"type:varchar(50);not null;index" json:"status"`

	CustomerName  string `gorm:"size:255" json:"customer_name"`
	CustomerPhone string `gorm:"size:64" json:"customer_phone"`
	CustomerEmail string `gorm:"size:255" json:"customer_email"`

	Vehicle   Vehicle `gorm:"type:text" json:"vehicle"`
	VehicleID int64   `gorm:"index" json:"vehicle_id"` // denormalized from Vehicle for the secondary index

	ServiceWriter   string     `gorm:"size:255" json:"service_writer"`
	ServiceWriterID int64      `json:"service_writer_id"`
	PostedDate      *time.Time `json:"posted_date,omitempty"`

	// Immutable snapshots captured at ingestion.
	DeclinedJobs       JobSnapshots `gorm:"type:text" json:"declined_jobs"`
	ApprovedJobs       JobSnapshots `gorm:"type:text" json:"approved_jobs"`
	DeclinedValueCents int64        `json:"declined_value_cents"`
	ApprovedValueCents int64        `json:"approved_value_cents"`
	JobCategories      StringList   `gorm:"type:text" json:"job_categories"`

	ReachCount     int            `json:"reach_count"`
	ContactHistory ContactHistory `gorm:"type:text" json:"contact_history"`

	Notes            string     `gorm:"type:text" json:"notes"`
	FollowUpDate     *time.Time `json:"follow_up_date,omitempty"`
	AssignedUserID   string     `gorm:"size:64" json:"assigned_user_id"`
	AssignedUserName string     `gorm:"size:255" json:"assigned_user_name"`

	LastContactDate   *time.Time    `gorm:"index" json:"last_contact_date,omitempty"`
	LastContactMethod ContactMethod `gorm:"size:32" json:"last_contact_method"`
	LastContactUser   string        `gorm:"size:255" json:"last_contact_user"`

	// Set only by the appointment outcome verifier.
	NoShow        bool       `json:"no_show"`
	Completed     bool       `json:"completed"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`
	LastCheckDate *time.Time `json:"last_check_date,omitempty"`

	// Version guards concurrent writers via conditional updates.
	Version int64 `gorm:"not null;default:0" json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContactRecord is the denormalized copy of a contact event written to its
// own table for the analytics reader.
type ContactRecord struct {
	ID               uint          `gorm:"primaryKey" json:"id"`
	ROID             string        `gorm:"column:ro_id;index;size:64;not null" json:"ro_id"`
	Timestamp        time.Time     `gorm:"index" json:"timestamp"`
	UserID           string        `gorm:"index;size:64" json:"user_id"`
	UserName         string        `gorm:"size:255" json:"user_name"`
	ContactMethod    ContactMethod `gorm:"size:32;not null" json:"contact_method"`
	ReachCount       int           `json:"reach_count"`
	JobInterests     JobInterests  `gorm:"type:text" json:"job_interests"`
	Notes            string        `gorm:"type:text" json:"notes"`
	FollowUpDate     *time.Time    `json:"follow_up_date,omitempty"`
	AssignedUserID   string        `gorm:"size:64" json:"assigned_user_id"`
	AssignedUserName string        `gorm:"size:255" json:"assigned_user_name"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Appointment is a tracked follow-up appointment created when a repair order
// transitions into APPOINTMENT_TRACKER.
type Appointment struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	AppointmentID   string            `gorm:"uniqueIndex;size:64;not null" json:"appointment_id"`
	ROID            string            `gorm:"column:ro_id;index;size:64;not null" json:"ro_id"`
	VehicleID       int64             `gorm:"index" json:"vehicle_id"`
	AppointmentDate time.Time         `json:"appointment_date"`
	Status          AppointmentStatus `gorm:"type:varchar(32);not null;default:'pending'" json:"status"`
	InterestedJobs  JobInterests      `gorm:"type:text" json:"interested_jobs"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// SaleRecord is one attributed revenue event detected by the sales
// reconciler. Revenue is integer cents.
type SaleRecord struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	TrackingID    string     `gorm:"uniqueIndex;size:64;not null" json:"tracking_id"`
	ROID          string     `gorm:"column:ro_id;index;size:64;not null" json:"ro_id"`
	VehicleID     int64      `gorm:"index" json:"vehicle_id"`
	CompletedROID int64      `gorm:"column:completed_ro_id" json:"completed_ro_id"`
	JobID         int64      `json:"job_id"`
	JobName       string     `gorm:"size:255" json:"job_name"`
	JobCategory   string     `gorm:"size:128" json:"job_category"`
	Type          SaleType   `gorm:"type:varchar(16);not null;index" json:"type"`
	RevenueCents  int64      `json:"revenue_cents"`
	Completed     bool       `json:"completed"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TableName overrides for explicit table naming
func (RepairOrder) TableName() string {
	return "repair_orders"
}

func (ContactRecord) TableName() string {
	return "contact_records"
}

func (Appointment) TableName() string {
	return "appointments"
}

func (SaleRecord) TableName() string {
	return "sale_records"
}
