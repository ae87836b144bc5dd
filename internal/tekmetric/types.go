package tekmetric

import (
	"math"
	"time"
)

// VehicleRef identifies the vehicle attached to an upstream record.
type VehicleRef struct {
	ID int64 `json:"id"`
}

// Appointment is an upstream-scheduled shop appointment.
type Appointment struct {
	ID        int64      `json:"id"`
	Vehicle   VehicleRef `json:"vehicle"`
	StartDate time.Time  `json:"startDate"`
	EndDate   time.Time  `json:"endDate"`
}

// RepairOrder is the summary form of an upstream repair order.
type RepairOrder struct {
	ID         int64      `json:"id"`
	Number     string     `json:"repairOrderNumber"`
	Status     string     `json:"repairOrderStatus"`
	PostedDate time.Time  `json:"postedDate"`
	Vehicle    VehicleRef `json:"vehicle"`
}

// StatusPosted is the upstream status of a closed, invoiced repair order.
const StatusPosted = "Posted"

// Part is a part line on an upstream job. Amounts are integer cents.
type Part struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PartNumber  string `json:"partNumber"`
	Quantity    int    `json:"quantity"`
	CostCents   int64  `json:"cost"`
	RetailCents int64  `json:"retail"`
}

// Fee is a fee line on an upstream job. Amounts are integer cents.
type Fee struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount"`
}

// Job is a service line on an upstream repair order. Amounts are integer
// cents; labor hours are fractional.
type Job struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Category       string  `json:"jobCategoryName"`
	Authorized     bool    `json:"authorized"`
	LaborHours     float64 `json:"laborHours"`
	LaborRateCents int64   `json:"laborRate"`
	Parts          []Part  `json:"parts"`
	Fees           []Fee   `json:"fees"`
}

// RevenueCents returns the total revenue of a job in integer cents:
// labor (hours x rate, rounded) plus parts (retail x quantity) plus fees.
func (j Job) RevenueCents() int64 {
	revenue := int64(math.Round(j.LaborHours * float64(j.LaborRateCents)))
	for _, p := range j.Parts {
		qty := p.Quantity
		if qty == 0 {
			qty = 1
		}
		revenue += p.RetailCents * int64(qty)
	}
	for _, f := range j.Fees {
		revenue += f.AmountCents
	}
	return revenue
}

// pagedResponse is the envelope the upstream API wraps list results in.
type pagedResponse[T any] struct {
	Content []T `json:"content"`
}

// tokenResponse is the OAuth token grant response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}
