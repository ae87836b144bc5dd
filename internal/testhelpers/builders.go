package testhelpers

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tekfollow/tekfollow/internal/database"
	"github.com/tekfollow/tekfollow/internal/tekmetric"
)

var roCounter int64

// ========================================
// Repair Order Builder
// ========================================

// RepairOrderBuilder builds RepairOrder instances for testing
type RepairOrderBuilder struct {
	ro database.RepairOrder
}

// NewRepairOrderBuilder creates a builder with sensible defaults: a board-status
// order with one declined job and an empty contact history.
func NewRepairOrderBuilder() *RepairOrderBuilder {
	n := atomic.AddInt64(&roCounter, 1)
	return &RepairOrderBuilder{
		ro: database.RepairOrder{
			ROID:         fmt.Sprintf("ro-test-%d", n),
			RONumber:     fmt.Sprintf("%d", 1000+n),
			UpstreamROID: 5000 + n,
			Status:       database.StatusFollowUpBoard,
			CustomerName: "Test Customer",
			Vehicle:      database.Vehicle{ID: 100 + n, Year: 2019, Make: "Toyota", Model: "Camry"},
			VehicleID:    100 + n,
			DeclinedJobs: database.JobSnapshots{
				{ID: 10, Name: "Brake Pads", Category: "Brakes", TotalCents: 25000},
			},
			ContactHistory: database.ContactHistory{},
		},
	}
}

// WithROID sets the internal repair order ID
func (b *RepairOrderBuilder) WithROID(roID string) *RepairOrderBuilder {
	b.ro.ROID = roID
	return b
}

// WithStatus sets the workflow status
func (b *RepairOrderBuilder) WithStatus(status database.FollowUpStatus) *RepairOrderBuilder {
	b.ro.Status = status
	return b
}

// WithVehicleID sets the denormalized vehicle ID (and the embedded vehicle)
func (b *RepairOrderBuilder) WithVehicleID(id int64) *RepairOrderBuilder {
	b.ro.VehicleID = id
	b.ro.Vehicle.ID = id
	return b
}

// WithUpstreamROID sets the upstream repair order ID
func (b *RepairOrderBuilder) WithUpstreamROID(id int64) *RepairOrderBuilder {
	b.ro.UpstreamROID = id
	return b
}

// WithDeclinedJobs replaces the declined job snapshots
func (b *RepairOrderBuilder) WithDeclinedJobs(jobs ...database.JobSnapshot) *RepairOrderBuilder {
	b.ro.DeclinedJobs = jobs
	return b
}

// WithApprovedJobs replaces the approved job snapshots
func (b *RepairOrderBuilder) WithApprovedJobs(jobs ...database.JobSnapshot) *RepairOrderBuilder {
	b.ro.ApprovedJobs = jobs
	return b
}

// WithContactHistory replaces the contact history and keeps the derived
// columns consistent with it.
func (b *RepairOrderBuilder) WithContactHistory(events ...database.ContactEvent) *RepairOrderBuilder {
	b.ro.ContactHistory = events
	b.ro.ReachCount = database.ContactHistory(events).CallCount()
	if len(events) > 0 {
		last := events[len(events)-1]
		ts := last.Timestamp
		b.ro.LastContactDate = &ts
		b.ro.LastContactMethod = last.ContactMethod
		b.ro.LastContactUser = last.UserName
	}
	return b
}

// WithLastContactDate sets the last contact date directly
func (b *RepairOrderBuilder) WithLastContactDate(t time.Time) *RepairOrderBuilder {
	b.ro.LastContactDate = &t
	return b
}

// Build returns the constructed repair order
func (b *RepairOrderBuilder) Build() database.RepairOrder {
	return b.ro
}

// ========================================
// Contact Event Builder
// ========================================

// ContactEventBuilder builds ContactEvent values for testing
type ContactEventBuilder struct {
	event database.ContactEvent
}

// NewContactEventBuilder creates a builder for a call event with defaults
func NewContactEventBuilder() *ContactEventBuilder {
	return &ContactEventBuilder{
		event: database.ContactEvent{
			Timestamp:     time.Now().UTC(),
			UserID:        "user-1",
			UserName:      "Test User",
			ContactMethod: database.ContactMethodCall,
			ReachCount:    1,
		},
	}
}

// WithMethod sets the contact method
func (b *ContactEventBuilder) WithMethod(method database.ContactMethod) *ContactEventBuilder {
	b.event.ContactMethod = method
	return b
}

// WithTimestamp sets the event timestamp
func (b *ContactEventBuilder) WithTimestamp(t time.Time) *ContactEventBuilder {
	b.event.Timestamp = t
	return b
}

// WithReachCount sets the recorded reach count
func (b *ContactEventBuilder) WithReachCount(n int) *ContactEventBuilder {
	b.event.ReachCount = n
	return b
}

// WithInterest appends a job interest
func (b *ContactEventBuilder) WithInterest(jobID int64, name string, status database.InterestStatus) *ContactEventBuilder {
	b.event.JobInterests = append(b.event.JobInterests, database.JobInterest{
		JobID:          jobID,
		JobName:        name,
		InterestStatus: status,
	})
	return b
}

// Build returns the constructed event
func (b *ContactEventBuilder) Build() database.ContactEvent {
	return b.event
}

// ========================================
// Fake Upstream Gateway
// ========================================

// FakeGateway implements jobs.UpstreamGateway with canned responses.
// Repair orders are keyed by vehicle ID and jobs by upstream repair order ID.
type FakeGateway struct {
	Appointments []tekmetric.Appointment
	RepairOrders map[int64][]tekmetric.RepairOrder
	Jobs         map[int64][]tekmetric.Job

	AppointmentsErr error
	RepairOrdersErr error
	JobsErr         error

	FetchAppointmentsCalls int
	FetchRepairOrderCalls  int
	FetchJobsCalls         int
}

// NewFakeGateway creates an empty fake gateway
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		RepairOrders: map[int64][]tekmetric.RepairOrder{},
		Jobs:         map[int64][]tekmetric.Job{},
	}
}

// FetchAppointments returns the configured appointments
func (g *FakeGateway) FetchAppointments(ctx context.Context, start, end time.Time) ([]tekmetric.Appointment, error) {
	g.FetchAppointmentsCalls++
	if g.AppointmentsErr != nil {
		return nil, g.AppointmentsErr
	}
	return g.Appointments, nil
}

// FetchVehicleRepairOrders returns repair orders for the vehicle posted on or
// after postedSince.
func (g *FakeGateway) FetchVehicleRepairOrders(ctx context.Context, vehicleID int64, postedSince time.Time) ([]tekmetric.RepairOrder, error) {
	g.FetchRepairOrderCalls++
	if g.RepairOrdersErr != nil {
		return nil, g.RepairOrdersErr
	}
	var out []tekmetric.RepairOrder
	for _, ro := range g.RepairOrders[vehicleID] {
		if !ro.PostedDate.IsZero() && ro.PostedDate.Before(postedSince) {
			continue
		}
		out = append(out, ro)
	}
	return out, nil
}

// FetchJobs returns the configured jobs for a repair order
func (g *FakeGateway) FetchJobs(ctx context.Context, repairOrderID int64) ([]tekmetric.Job, error) {
	g.FetchJobsCalls++
	if g.JobsErr != nil {
		return nil, g.JobsErr
	}
	return g.Jobs[repairOrderID], nil
}
