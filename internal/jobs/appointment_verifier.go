package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/tekfollow/tekfollow/internal/database"
)

const (
	// appointmentLookBehind / appointmentLookAhead bound the upstream
	// appointment window fetched once per run.
	appointmentLookBehind = 7 * 24 * time.Hour
	appointmentLookAhead  = 30 * 24 * time.Hour

	// showUpWindow is how long after an appointment's end a new repair
	// order still counts as the customer showing up.
	showUpWindow = 24 * time.Hour
)

// VerifierStats summarizes one verifier run.
type VerifierStats struct {
	Completed int `json:"completed"`
	NoShows   int `json:"no_shows"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
}

// AppointmentVerifier resolves the outcome of repair orders waiting in
// APPOINTMENT_TRACKER: either the customer returned (a new upstream repair
// order appeared within the show-up window) or the appointment was a
// no-show.
type AppointmentVerifier struct {
	db      *gorm.DB
	gateway UpstreamGateway
	now     func() time.Time
}

// NewAppointmentVerifier creates a new verifier.
func NewAppointmentVerifier(db *gorm.DB, gateway UpstreamGateway) *AppointmentVerifier {
	return &AppointmentVerifier{db: db, gateway: gateway, now: time.Now}
}

// Run processes every repair order in APPOINTMENT_TRACKER once. A failure
// on one order is logged and skipped; the run always continues.
func (v *AppointmentVerifier) Run(ctx context.Context) (VerifierStats, error) {
	var stats VerifierStats
	now := v.now()

	upstreamAppts, err := v.gateway.FetchAppointments(ctx,
		now.Add(-appointmentLookBehind), now.Add(appointmentLookAhead))
	if err != nil {
		return stats, fmt.Errorf("fetch upstream appointments: %w", err)
	}

	var ros []database.RepairOrder
	err = v.db.WithContext(ctx).
		Where("status = ?", database.StatusAppointmentTracker).
		Order("id asc").Find(&ros).Error
	if err != nil {
		return stats, err
	}

	for i := range ros {
		ro := &ros[i]
		if ro.VehicleID == 0 {
			continue
		}

		// First upstream appointment for the vehicle wins; there is no
		// disambiguation when several exist.
		var apptEnd time.Time
		found := false
		for _, ua := range upstreamAppts {
			if ua.Vehicle.ID == ro.VehicleID {
				apptEnd = ua.EndDate
				found = true
				break
			}
		}
		if !found {
			continue
		}

		if apptEnd.After(now) {
			stats.Pending++
			continue
		}

		if err := v.resolveOutcome(ctx, ro, apptEnd, &stats); err != nil {
			stats.Failed++
			log.Printf("Appointment verifier: repair order %s failed: %v", ro.ROID, err)
		}
	}

	return stats, nil
}

// resolveOutcome decides completed vs no-show for one past-due appointment
// and writes the result to the repair order and its tracked appointment.
func (v *AppointmentVerifier) resolveOutcome(ctx context.Context, ro *database.RepairOrder, apptEnd time.Time, stats *VerifierStats) error {
	newROs, err := v.gateway.FetchVehicleRepairOrders(ctx, ro.VehicleID, apptEnd)
	if err != nil {
		return err
	}

	showedUp := false
	for _, newRO := range newROs {
		if !newRO.PostedDate.Before(apptEnd) && newRO.PostedDate.Before(apptEnd.Add(showUpWindow)) {
			showedUp = true
			break
		}
	}

	db := v.db.WithContext(ctx)
	now := v.now()

	if showedUp {
		fields := map[string]interface{}{
			"status":         database.StatusDeleted,
			"completed":      true,
			"completed_date": now,
		}
		if err := database.UpdateRepairOrderFields(db, ro, fields); err != nil {
			return err
		}
		if err := v.markAppointment(db, ro.ROID, database.AppointmentCompleted); err != nil {
			return err
		}
		stats.Completed++
		log.Printf("Appointment verifier: %s completed, customer returned", ro.ROID)
		return nil
	}

	// No-show: the order stays in APPOINTMENT_TRACKER for another callback
	// and gets re-checked on the next run.
	fields := map[string]interface{}{
		"no_show":         true,
		"last_check_date": now,
	}
	if err := database.UpdateRepairOrderFields(db, ro, fields); err != nil {
		return err
	}
	if err := v.markAppointment(db, ro.ROID, database.AppointmentNoShow); err != nil {
		return err
	}
	stats.NoShows++
	log.Printf("Appointment verifier: %s no-show", ro.ROID)
	return nil
}

// markAppointment updates the tracked appointment's outcome when one
// exists. A missing appointment row is not an error.
func (v *AppointmentVerifier) markAppointment(db *gorm.DB, roID string, status database.AppointmentStatus) error {
	appt, err := database.FindAppointmentByROID(db, roID)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return database.UpdateAppointmentStatus(db, appt.AppointmentID, status)
}

// Start begins periodic verification runs until stop closes.
func (v *AppointmentVerifier) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := v.Run(context.Background())
			if err != nil {
				log.Printf("Appointment verifier error: %v", err)
			} else {
				log.Printf("Appointment verifier: %d completed, %d no-shows, %d pending, %d failed",
					stats.Completed, stats.NoShows, stats.Pending, stats.Failed)
			}
		case <-stop:
			log.Println("Appointment verifier stopped")
			return
		}
	}
}
