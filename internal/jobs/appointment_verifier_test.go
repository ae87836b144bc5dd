package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tekfollow/tekfollow/internal/database"
	"github.com/tekfollow/tekfollow/internal/tekmetric"
	"github.com/tekfollow/tekfollow/internal/testhelpers"
)

func verifierFixture(t *testing.T) (*gorm.DB, *testhelpers.FakeGateway, *AppointmentVerifier, time.Time) {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	gateway := testhelpers.NewFakeGateway()
	verifier := NewAppointmentVerifier(db, gateway)
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	verifier.now = func() time.Time { return now }
	return db, gateway, verifier, now
}

func seedTrackedOrder(t *testing.T, db *gorm.DB, roID string, vehicleID int64) *database.RepairOrder {
	t.Helper()
	ro := testhelpers.NewRepairOrderBuilder().
		WithROID(roID).
		WithStatus(database.StatusAppointmentTracker).
		WithVehicleID(vehicleID).
		Build()
	if err := db.Create(&ro).Error; err != nil {
		t.Fatalf("Failed to seed repair order: %v", err)
	}
	return &ro
}

func seedTrackedAppointment(t *testing.T, db *gorm.DB, roID string, vehicleID int64) {
	t.Helper()
	appt := database.Appointment{
		AppointmentID:   "appt-" + roID,
		ROID:            roID,
		VehicleID:       vehicleID,
		AppointmentDate: time.Date(2026, 8, 14, 9, 0, 0, 0, time.UTC),
		Status:          database.AppointmentPending,
	}
	if err := db.Create(&appt).Error; err != nil {
		t.Fatalf("Failed to seed appointment: %v", err)
	}
}

func TestVerifier_FutureAppointmentStaysPending(t *testing.T) {
	db, gateway, verifier, now := verifierFixture(t)
	seedTrackedOrder(t, db, "ro-1", 77)

	gateway.Appointments = []tekmetric.Appointment{
		{ID: 1, Vehicle: tekmetric.VehicleRef{ID: 77},
			StartDate: now.Add(48 * time.Hour), EndDate: now.Add(50 * time.Hour)},
	}

	stats, err := verifier.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pending != 1 || stats.Completed != 0 || stats.NoShows != 0 {
		t.Errorf("stats = %+v, want 1 pending", stats)
	}

	ro, _ := database.GetRepairOrder(db, "ro-1")
	if ro.Status != database.StatusAppointmentTracker {
		t.Errorf("status = %s, want unchanged APPOINTMENT_TRACKER", ro.Status)
	}
}

func TestVerifier_NoUpstreamAppointmentSkips(t *testing.T) {
	db, _, verifier, _ := verifierFixture(t)
	seedTrackedOrder(t, db, "ro-1", 77)

	stats, err := verifier.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pending+stats.Completed+stats.NoShows+stats.Failed != 0 {
		t.Errorf("stats = %+v, want all zero", stats)
	}

	ro, _ := database.GetRepairOrder(db, "ro-1")
	if ro.Status != database.StatusAppointmentTracker || ro.NoShow {
		t.Errorf("order touched despite no upstream appointment: %+v", ro)
	}
}

// Customer returned: a repair order posted within 24h of the appointment end
// completes the follow-up and removes the order from the workflow.
func TestVerifier_CompletedPath(t *testing.T) {
	db, gateway, verifier, now := verifierFixture(t)
	seedTrackedOrder(t, db, "ro-1", 77)
	seedTrackedAppointment(t, db, "ro-1", 77)

	apptEnd := now.Add(-3 * time.Hour)
	gateway.Appointments = []tekmetric.Appointment{
		{ID: 1, Vehicle: tekmetric.VehicleRef{ID: 77},
			StartDate: apptEnd.Add(-time.Hour), EndDate: apptEnd},
	}
	gateway.RepairOrders[77] = []tekmetric.RepairOrder{
		{ID: 9002, Status: tekmetric.StatusPosted, PostedDate: apptEnd.Add(2 * time.Hour),
			Vehicle: tekmetric.VehicleRef{ID: 77}},
	}

	stats, err := verifier.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 1 {
		t.Fatalf("completed = %d, want 1 (stats %+v)", stats.Completed, stats)
	}

	ro, _ := database.GetRepairOrder(db, "ro-1")
	if ro.Status != database.StatusDeleted {
		t.Errorf("status = %s, want DELETED", ro.Status)
	}
	if !ro.Completed || ro.CompletedDate == nil {
		t.Errorf("completed flags not set: %+v", ro)
	}

	appt, err := database.FindAppointmentByROID(db, "ro-1")
	if err != nil {
		t.Fatal(err)
	}
	if appt.Status != database.AppointmentCompleted {
		t.Errorf("appointment status = %s, want completed", appt.Status)
	}
}

// A repair order posted outside the 24h window does not count as showing up.
func TestVerifier_PostOutsideWindowIsNoShow(t *testing.T) {
	db, gateway, verifier, now := verifierFixture(t)
	seedTrackedOrder(t, db, "ro-1", 77)
	seedTrackedAppointment(t, db, "ro-1", 77)

	apptEnd := now.Add(-72 * time.Hour)
	gateway.Appointments = []tekmetric.Appointment{
		{ID: 1, Vehicle: tekmetric.VehicleRef{ID: 77},
			StartDate: apptEnd.Add(-time.Hour), EndDate: apptEnd},
	}
	gateway.RepairOrders[77] = []tekmetric.RepairOrder{
		{ID: 9002, Status: tekmetric.StatusPosted, PostedDate: apptEnd.Add(30 * time.Hour),
			Vehicle: tekmetric.VehicleRef{ID: 77}},
	}

	stats, err := verifier.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.NoShows != 1 || stats.Completed != 0 {
		t.Fatalf("stats = %+v, want 1 no-show", stats)
	}

	ro, _ := database.GetRepairOrder(db, "ro-1")
	// No-shows stay in the workflow for another callback.
	if ro.Status != database.StatusAppointmentTracker {
		t.Errorf("status = %s, want APPOINTMENT_TRACKER", ro.Status)
	}
	if !ro.NoShow || ro.LastCheckDate == nil {
		t.Errorf("no-show flags not set: %+v", ro)
	}

	appt, _ := database.FindAppointmentByROID(db, "ro-1")
	if appt.Status != database.AppointmentNoShow {
		t.Errorf("appointment status = %s, want no_show", appt.Status)
	}
}

// A missing tracked appointment row is tolerated: the repair order still
// resolves.
func TestVerifier_MissingAppointmentRowTolerated(t *testing.T) {
	db, gateway, verifier, now := verifierFixture(t)
	seedTrackedOrder(t, db, "ro-1", 77)

	apptEnd := now.Add(-3 * time.Hour)
	gateway.Appointments = []tekmetric.Appointment{
		{ID: 1, Vehicle: tekmetric.VehicleRef{ID: 77}, EndDate: apptEnd},
	}

	stats, err := verifier.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.NoShows != 1 {
		t.Fatalf("stats = %+v, want 1 no-show", stats)
	}
}

// A gateway failure on one order marks it failed; the run itself succeeds and
// other orders are unaffected next run.
func TestVerifier_PerOrderFailureIsolated(t *testing.T) {
	db, gateway, verifier, now := verifierFixture(t)
	seedTrackedOrder(t, db, "ro-1", 77)

	apptEnd := now.Add(-3 * time.Hour)
	gateway.Appointments = []tekmetric.Appointment{
		{ID: 1, Vehicle: tekmetric.VehicleRef{ID: 77}, EndDate: apptEnd},
	}
	gateway.RepairOrdersErr = errors.New("upstream 503")

	stats, err := verifier.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 1 {
		t.Errorf("failed = %d, want 1", stats.Failed)
	}

	ro, _ := database.GetRepairOrder(db, "ro-1")
	if ro.Status != database.StatusAppointmentTracker || ro.NoShow {
		t.Errorf("order mutated despite failure: %+v", ro)
	}
}

func TestVerifier_AppointmentFetchFailureAbortsRun(t *testing.T) {
	_, gateway, verifier, _ := verifierFixture(t)
	gateway.AppointmentsErr = errors.New("upstream down")

	_, err := verifier.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when the appointment fetch fails")
	}
}

func TestVerifier_SkipsOrdersWithoutVehicle(t *testing.T) {
	db, gateway, verifier, now := verifierFixture(t)
	ro := testhelpers.NewRepairOrderBuilder().
		WithROID("ro-novehicle").
		WithStatus(database.StatusAppointmentTracker).
		WithVehicleID(0).
		Build()
	if err := db.Create(&ro).Error; err != nil {
		t.Fatal(err)
	}

	gateway.Appointments = []tekmetric.Appointment{
		{ID: 1, Vehicle: tekmetric.VehicleRef{ID: 0}, EndDate: now.Add(-time.Hour)},
	}

	stats, err := verifier.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed+stats.NoShows+stats.Pending+stats.Failed != 0 {
		t.Errorf("stats = %+v, want untouched", stats)
	}
}
