package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tekfollow/tekfollow/internal/database"
)

// setupContactTestDB creates an in-memory SQLite database for testing
func setupContactTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func seedRepairOrder(t *testing.T, db *gorm.DB, ro *database.RepairOrder) *database.RepairOrder {
	t.Helper()
	if err := db.Create(ro).Error; err != nil {
		t.Fatalf("Failed to seed repair order: %v", err)
	}
	return ro
}

func boardOrder(roID string) *database.RepairOrder {
	return &database.RepairOrder{
		ROID:         roID,
		RONumber:     "1042",
		UpstreamROID: 9001,
		Status:       database.StatusFollowUpBoard,
		CustomerName: "Pat Doe",
		Vehicle:      database.Vehicle{ID: 77, Year: 2018, Make: "Honda", Model: "Civic"},
		VehicleID:    77,
		DeclinedJobs: database.JobSnapshots{
			{ID: 10, Name: "Brake Pads", Category: "Brakes", TotalCents: 25000},
			{ID: 11, Name: "Coolant Flush", Category: "Fluids", TotalCents: 12000},
		},
	}
}

func callInput(status database.InterestStatus) ContactInput {
	return ContactInput{
		ContactMethod: database.ContactMethodCall,
		JobInterests: database.JobInterests{
			{JobID: 10, JobName: "Brake Pads", InterestStatus: status},
		},
		UserID:   "user-1",
		UserName: "Test User",
	}
}

func TestRecordContact_ValidationFailures(t *testing.T) {
	db := setupContactTestDB(t)
	seedRepairOrder(t, db, boardOrder("ro-1"))
	svc := NewContactService(db)

	tests := []struct {
		name  string
		input ContactInput
		field string
	}{
		{
			name:  "missing contact method",
			input: ContactInput{},
			field: "contact_method",
		},
		{
			name:  "call without interests",
			input: ContactInput{ContactMethod: database.ContactMethodCall},
			field: "job_interests",
		},
		{
			name:  "unknown contact method",
			input: ContactInput{ContactMethod: "carrier_pigeon"},
			field: "contact_method",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordContact(context.Background(), "ro-1", tt.input)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := verr.Fields[tt.field]; !ok {
				t.Errorf("expected error on field %q, got %v", tt.field, verr.Fields)
			}

			// Nothing may be written on a rejected save.
			var count int64
			db.Model(&database.ContactRecord{}).Count(&count)
			if count != 0 {
				t.Errorf("expected no contact records after validation failure, got %d", count)
			}
		})
	}
}

func TestRecordContact_NotFound(t *testing.T) {
	db := setupContactTestDB(t)
	svc := NewContactService(db)

	_, err := svc.RecordContact(context.Background(), "missing", ContactInput{
		ContactMethod: database.ContactMethodVoicemail,
	})
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestRecordContact_ReachCount verifies reach counts calls only: after N calls
// and M voicemails/texts, reach is N regardless of interleaving order.
func TestRecordContact_ReachCount(t *testing.T) {
	db := setupContactTestDB(t)
	seedRepairOrder(t, db, boardOrder("ro-1"))
	svc := NewContactService(db)
	ctx := context.Background()

	sequence := []database.ContactMethod{
		database.ContactMethodVoicemail,
		database.ContactMethodCall,
		database.ContactMethodText,
		database.ContactMethodCall,
		database.ContactMethodVoicemail,
		database.ContactMethodCall,
	}
	wantReach := []int{0, 1, 1, 2, 2, 3}

	for i, method := range sequence {
		in := ContactInput{ContactMethod: method, UserID: "u", UserName: "U"}
		if method == database.ContactMethodCall {
			in.JobInterests = database.JobInterests{
				{JobID: 10, JobName: "Brake Pads", InterestStatus: database.InterestInterested},
			}
		}
		res, err := svc.RecordContact(ctx, "ro-1", in)
		if err != nil {
			t.Fatalf("save %d (%s) failed: %v", i, method, err)
		}
		if res.ReachCount != wantReach[i] {
			t.Errorf("save %d (%s): reach = %d, want %d", i, method, res.ReachCount, wantReach[i])
		}
	}

	ro, err := database.GetRepairOrder(db, "ro-1")
	if err != nil {
		t.Fatal(err)
	}
	if ro.ReachCount != 3 {
		t.Errorf("stored reach count = %d, want 3", ro.ReachCount)
	}
	if len(ro.ContactHistory) != len(sequence) {
		t.Errorf("history length = %d, want %d", len(ro.ContactHistory), len(sequence))
	}
	// History preserves insertion order.
	for i, e := range ro.ContactHistory {
		if e.ContactMethod != sequence[i] {
			t.Errorf("history[%d].method = %s, want %s", i, e.ContactMethod, sequence[i])
		}
	}
}

func TestRecordContact_VoicemailKeepsStatus(t *testing.T) {
	db := setupContactTestDB(t)
	seedRepairOrder(t, db, boardOrder("ro-1"))
	svc := NewContactService(db)

	res, err := svc.RecordContact(context.Background(), "ro-1", ContactInput{
		ContactMethod: database.ContactMethodVoicemail,
		Notes:         "left message",
		UserID:        "u",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.NewStatus != database.StatusFollowUpBoard {
		t.Errorf("status = %s, want FOLLOW_UP_BOARD", res.NewStatus)
	}
	if res.ReachCount != 0 {
		t.Errorf("reach = %d, want 0", res.ReachCount)
	}
}

// Scenario: a call with appointment_made transitions to APPOINTMENT_TRACKER
// and creates exactly one pending appointment carrying the interested jobs.
func TestRecordContact_AppointmentCreated(t *testing.T) {
	db := setupContactTestDB(t)
	seedRepairOrder(t, db, boardOrder("ro-1"))
	svc := NewContactService(db)

	followUp := time.Date(2026, 9, 4, 10, 0, 0, 0, time.UTC)
	in := ContactInput{
		ContactMethod: database.ContactMethodCall,
		JobInterests: database.JobInterests{
			{JobID: 10, JobName: "Brake Pads", InterestStatus: database.InterestAppointmentMade},
			{JobID: 11, JobName: "Coolant Flush", InterestStatus: database.InterestNotInterested},
		},
		FollowUpDate: &followUp,
		UserID:       "u",
		UserName:     "U",
	}

	res, err := svc.RecordContact(context.Background(), "ro-1", in)
	if err != nil {
		t.Fatal(err)
	}
	if res.NewStatus != database.StatusAppointmentTracker {
		t.Fatalf("status = %s, want APPOINTMENT_TRACKER", res.NewStatus)
	}

	appts, err := database.ListAppointments(db)
	if err != nil {
		t.Fatal(err)
	}
	if len(appts) != 1 {
		t.Fatalf("appointments = %d, want 1", len(appts))
	}
	appt := appts[0]
	if appt.ROID != "ro-1" {
		t.Errorf("appointment ro_id = %s, want ro-1", appt.ROID)
	}
	if appt.VehicleID != 77 {
		t.Errorf("appointment vehicle_id = %d, want 77", appt.VehicleID)
	}
	if appt.Status != database.AppointmentPending {
		t.Errorf("appointment status = %s, want pending", appt.Status)
	}
	if !appt.AppointmentDate.Equal(followUp) {
		t.Errorf("appointment date = %v, want %v", appt.AppointmentDate, followUp)
	}
	if len(appt.InterestedJobs) != 1 || appt.InterestedJobs[0].JobID != 10 {
		t.Errorf("interested jobs = %v, want only the appointment_made job", appt.InterestedJobs)
	}
}

// Two-call escalation: an interested call moves the order to the follow-up
// tracker, and a later appointment-made call moves it to the appointment
// tracker with exactly one appointment created.
func TestRecordContact_EscalationSequence(t *testing.T) {
	db := setupContactTestDB(t)
	seedRepairOrder(t, db, boardOrder("ro-1"))
	svc := NewContactService(db)
	ctx := context.Background()

	res, err := svc.RecordContact(ctx, "ro-1", callInput(database.InterestInterested))
	if err != nil {
		t.Fatal(err)
	}
	if res.NewStatus != database.StatusFollowUpTracker || res.ReachCount != 1 {
		t.Fatalf("first call: status=%s reach=%d, want FOLLOW_UP_TRACKER/1", res.NewStatus, res.ReachCount)
	}

	res, err = svc.RecordContact(ctx, "ro-1", callInput(database.InterestAppointmentMade))
	if err != nil {
		t.Fatal(err)
	}
	if res.NewStatus != database.StatusAppointmentTracker || res.ReachCount != 2 {
		t.Fatalf("second call: status=%s reach=%d, want APPOINTMENT_TRACKER/2", res.NewStatus, res.ReachCount)
	}

	appts, err := database.ListAppointments(db)
	if err != nil {
		t.Fatal(err)
	}
	if len(appts) != 1 {
		t.Errorf("appointments = %d, want exactly 1", len(appts))
	}
}

// A later appointment-made call creates a second row; there is no dedup.
func TestRecordContact_RepeatedAppointmentTransition(t *testing.T) {
	db := setupContactTestDB(t)
	seedRepairOrder(t, db, boardOrder("ro-1"))
	svc := NewContactService(db)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.RecordContact(ctx, "ro-1", callInput(database.InterestAppointmentMade))
		if err != nil {
			t.Fatalf("save %d failed: %v", i, err)
		}
	}

	appts, err := database.ListAppointments(db)
	if err != nil {
		t.Fatal(err)
	}
	if len(appts) != 2 {
		t.Errorf("appointments = %d, want 2 (no existence check)", len(appts))
	}
}

func TestRecordContact_AllNegativeDeletes(t *testing.T) {
	db := setupContactTestDB(t)
	seedRepairOrder(t, db, boardOrder("ro-1"))
	svc := NewContactService(db)

	res, err := svc.RecordContact(context.Background(), "ro-1", ContactInput{
		ContactMethod: database.ContactMethodCall,
		JobInterests: database.JobInterests{
			{JobID: 10, InterestStatus: database.InterestNotInterested},
			{JobID: 11, InterestStatus: database.InterestWorkCompleted},
		},
		UserID: "u",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.NewStatus != database.StatusDeleted {
		t.Errorf("status = %s, want DELETED", res.NewStatus)
	}

	// Workflow removal is sticky: history survives.
	ro, _ := database.GetRepairOrder(db, "ro-1")
	if len(ro.ContactHistory) != 1 {
		t.Errorf("history length = %d, want 1", len(ro.ContactHistory))
	}
}

// TestRecordContact_EditMode verifies edits touch only notes, follow-up date,
// and assignee. Status, reach, and history are untouched.
func TestRecordContact_EditMode(t *testing.T) {
	db := setupContactTestDB(t)
	seedRepairOrder(t, db, boardOrder("ro-1"))
	svc := NewContactService(db)
	ctx := context.Background()

	if _, err := svc.RecordContact(ctx, "ro-1", callInput(database.InterestInterested)); err != nil {
		t.Fatal(err)
	}

	followUp := time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)
	res, err := svc.RecordContact(ctx, "ro-1", ContactInput{
		ContactMethod:    database.ContactMethodCall,
		JobInterests:     database.JobInterests{{JobID: 10, InterestStatus: database.InterestAppointmentMade}},
		Notes:            "rescheduled",
		FollowUpDate:     &followUp,
		AssignedUserID:   "user-2",
		AssignedUserName: "Advisor Two",
		UserID:           "u",
		IsEditMode:       true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.EditMode {
		t.Error("result should flag edit mode")
	}
	// Edit mode never transitions, even with appointment_made interests.
	if res.NewStatus != database.StatusFollowUpTracker {
		t.Errorf("status = %s, want FOLLOW_UP_TRACKER unchanged", res.NewStatus)
	}
	if res.ReachCount != 1 {
		t.Errorf("reach = %d, want 1 unchanged", res.ReachCount)
	}

	ro, _ := database.GetRepairOrder(db, "ro-1")
	if len(ro.ContactHistory) != 1 {
		t.Errorf("history length = %d, want 1 (no append in edit mode)", len(ro.ContactHistory))
	}
	if ro.Notes != "rescheduled" {
		t.Errorf("notes = %q, want rescheduled", ro.Notes)
	}
	if ro.AssignedUserID != "user-2" {
		t.Errorf("assigned user = %q, want user-2", ro.AssignedUserID)
	}

	var count int64
	db.Model(&database.ContactRecord{}).Count(&count)
	if count != 1 {
		t.Errorf("contact records = %d, want 1 (edit writes no record)", count)
	}

	appts, _ := database.ListAppointments(db)
	if len(appts) != 0 {
		t.Errorf("appointments = %d, want 0 (edit creates none)", len(appts))
	}
}

func TestRecordContact_DenormalizedRecordMatchesEvent(t *testing.T) {
	db := setupContactTestDB(t)
	seedRepairOrder(t, db, boardOrder("ro-1"))
	svc := NewContactService(db)

	res, err := svc.RecordContact(context.Background(), "ro-1", ContactInput{
		ContactMethod: database.ContactMethodCall,
		JobInterests:  database.JobInterests{{JobID: 10, InterestStatus: database.InterestInterested}},
		Notes:         "will think about it",
		UserID:        "user-9",
		UserName:      "Caller Nine",
	})
	if err != nil {
		t.Fatal(err)
	}

	recs, err := database.ListContactRecords(db, database.ContactRecordFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("contact records = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.ROID != "ro-1" || rec.UserID != "user-9" || rec.Notes != "will think about it" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.ReachCount != res.ReachCount {
		t.Errorf("record reach = %d, want %d", rec.ReachCount, res.ReachCount)
	}

	ro, _ := database.GetRepairOrder(db, "ro-1")
	if ro.LastContactDate == nil {
		t.Fatal("last_contact_date not set")
	}
	if ro.LastContactMethod != database.ContactMethodCall || ro.LastContactUser != "Caller Nine" {
		t.Errorf("last contact fields = %s/%s", ro.LastContactMethod, ro.LastContactUser)
	}
}

// A failure on the last of the three writes must roll back the whole save:
// no repair order mutation, no contact record, no appointment.
func TestRecordContact_RollbackOnWriteFailure(t *testing.T) {
	db := setupContactTestDB(t)
	seedRepairOrder(t, db, boardOrder("ro-1"))
	svc := NewContactService(db)

	injected := errors.New("appointment table unavailable")
	err := db.Callback().Create().Before("gorm:create").Register("fail_appointment_create", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*database.Appointment); ok {
			tx.AddError(injected)
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.RecordContact(context.Background(), "ro-1", callInput(database.InterestAppointmentMade))
	if !errors.Is(err, injected) {
		t.Fatalf("expected injected error, got %v", err)
	}

	ro, getErr := database.GetRepairOrder(db, "ro-1")
	if getErr != nil {
		t.Fatal(getErr)
	}
	if ro.Status != database.StatusFollowUpBoard {
		t.Errorf("status = %s, want FOLLOW_UP_BOARD untouched", ro.Status)
	}
	if ro.ReachCount != 0 || len(ro.ContactHistory) != 0 {
		t.Errorf("reach/history = %d/%d, want 0/0", ro.ReachCount, len(ro.ContactHistory))
	}
	if ro.Version != 0 {
		t.Errorf("version = %d, want 0 (no committed write)", ro.Version)
	}

	var count int64
	db.Model(&database.ContactRecord{}).Count(&count)
	if count != 0 {
		t.Errorf("contact records = %d, want 0", count)
	}
	db.Model(&database.Appointment{}).Count(&count)
	if count != 0 {
		t.Errorf("appointments = %d, want 0", count)
	}
}

// TestRecordContact_VersionConflictRetry simulates a concurrent writer: the
// first conditional update fails, and the service re-reads and succeeds.
func TestRecordContact_VersionConflictRetry(t *testing.T) {
	db := setupContactTestDB(t)
	ro := seedRepairOrder(t, db, boardOrder("ro-1"))
	svc := NewContactService(db)

	// Bump the version out from under a stale copy.
	stale := *ro
	if err := db.Model(&database.RepairOrder{}).
		Where("id = ?", ro.ID).Update("version", ro.Version+1).Error; err != nil {
		t.Fatal(err)
	}

	err := database.UpdateRepairOrderFields(db, &stale, map[string]interface{}{"notes": "stale write"})
	if !errors.Is(err, database.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict for stale copy, got %v", err)
	}

	// The service re-reads on conflict, so a fresh save still lands.
	if _, err := svc.RecordContact(context.Background(), "ro-1", callInput(database.InterestInterested)); err != nil {
		t.Fatalf("save after conflict failed: %v", err)
	}
}
