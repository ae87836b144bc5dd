package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tekfollow/tekfollow/internal/database"
)

// maxConflictRetries bounds re-reads when a concurrent save bumps the
// repair order version mid-write.
const maxConflictRetries = 3

// ContactInput carries one contact save from the front end.
type ContactInput struct {
	ContactMethod    database.ContactMethod `json:"contact_method" validate:"required,oneof=call voicemail text"`
	JobInterests     database.JobInterests  `json:"job_interests"`
	Notes            string                 `json:"notes"`
	FollowUpDate     *time.Time             `json:"follow_up_date"`
	AssignedUserID   string                 `json:"assigned_user_id"`
	AssignedUserName string                 `json:"assigned_user_name"`
	UserID           string                 `json:"user_id"`
	UserName         string                 `json:"user_name"`
	IsEditMode       bool                   `json:"is_edit_mode"`
}

// ContactResult is what the caller gets back from a successful save.
type ContactResult struct {
	ROID       string                  `json:"ro_id"`
	NewStatus  database.FollowUpStatus `json:"new_status"`
	ReachCount int                     `json:"reach_count"`
	EditMode   bool                    `json:"edit_mode"`
}

// ContactService records customer-contact events against repair orders and
// drives the resulting workflow transitions.
type ContactService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewContactService creates a new ContactService.
func NewContactService(db *gorm.DB) *ContactService {
	return &ContactService{db: db, now: time.Now}
}

// RecordContact validates and applies one contact save. In normal mode it
// appends a contact event, recomputes reach, transitions the workflow
// status, and creates an appointment when the status lands in
// APPOINTMENT_TRACKER. In edit mode it only updates notes, follow-up date,
// and assignee. The repair order update, the denormalized history row, and
// the appointment insert commit in one transaction.
func (s *ContactService) RecordContact(ctx context.Context, roID string, in ContactInput) (*ContactResult, error) {
	if err := validateContactInput(in); err != nil {
		return nil, err
	}

	var result *ContactResult
	for attempt := 0; ; attempt++ {
		ro, err := database.GetRepairOrder(s.db.WithContext(ctx), roID)
		if err != nil {
			return nil, err
		}

		if in.IsEditMode {
			result, err = s.applyEdit(ctx, ro, in)
		} else {
			result, err = s.applyContact(ctx, ro, in)
		}

		if errors.Is(err, database.ErrVersionConflict) && attempt < maxConflictRetries {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

// validateContactInput rejects saves before any write: a contact method is
// always required, and a call must carry at least one job interest.
func validateContactInput(in ContactInput) error {
	switch in.ContactMethod {
	case "":
		return NewValidationError("contact_method", "is required")
	case database.ContactMethodCall:
		if len(in.JobInterests) == 0 {
			return NewValidationError("job_interests", "is required for phone calls")
		}
	case database.ContactMethodVoicemail, database.ContactMethodText:
	default:
		return NewValidationError("contact_method", "must be one of: call voicemail text")
	}
	return nil
}

// applyEdit mutates only the editable scalar fields. No history append, no
// reach recompute, no status transition.
func (s *ContactService) applyEdit(ctx context.Context, ro *database.RepairOrder, in ContactInput) (*ContactResult, error) {
	fields := map[string]interface{}{
		"notes":              in.Notes,
		"follow_up_date":     in.FollowUpDate,
		"assigned_user_id":   in.AssignedUserID,
		"assigned_user_name": in.AssignedUserName,
	}
	if err := database.UpdateRepairOrderFields(s.db.WithContext(ctx), ro, fields); err != nil {
		return nil, err
	}

	return &ContactResult{
		ROID:       ro.ROID,
		NewStatus:  ro.Status,
		ReachCount: ro.ReachCount,
		EditMode:   true,
	}, nil
}

// applyContact appends the event and performs the three writes of a normal
// save inside one transaction.
func (s *ContactService) applyContact(ctx context.Context, ro *database.RepairOrder, in ContactInput) (*ContactResult, error) {
	now := s.now()

	reachCount := ro.ContactHistory.CallCount()
	if in.ContactMethod == database.ContactMethodCall {
		reachCount++
	}

	newStatus := ro.Status
	if len(in.JobInterests) > 0 {
		newStatus = NextStatus(ro.Status, in.JobInterests)
	}

	event := database.ContactEvent{
		Timestamp:        now,
		UserID:           in.UserID,
		UserName:         in.UserName,
		ContactMethod:    in.ContactMethod,
		ReachCount:       reachCount,
		JobInterests:     in.JobInterests,
		Notes:            in.Notes,
		FollowUpDate:     in.FollowUpDate,
		AssignedUserID:   in.AssignedUserID,
		AssignedUserName: in.AssignedUserName,
	}
	history := append(append(database.ContactHistory{}, ro.ContactHistory...), event)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields := map[string]interface{}{
			"status":              newStatus,
			"reach_count":         reachCount,
			"contact_history":     history,
			"follow_up_date":      in.FollowUpDate,
			"assigned_user_id":    in.AssignedUserID,
			"assigned_user_name":  in.AssignedUserName,
			"last_contact_date":   now,
			"last_contact_method": in.ContactMethod,
			"last_contact_user":   in.UserName,
		}
		if err := database.UpdateRepairOrderFields(tx, ro, fields); err != nil {
			return err
		}

		record := &database.ContactRecord{
			ROID:             ro.ROID,
			Timestamp:        now,
			UserID:           in.UserID,
			UserName:         in.UserName,
			ContactMethod:    in.ContactMethod,
			ReachCount:       reachCount,
			JobInterests:     in.JobInterests,
			Notes:            in.Notes,
			FollowUpDate:     in.FollowUpDate,
			AssignedUserID:   in.AssignedUserID,
			AssignedUserName: in.AssignedUserName,
		}
		if err := database.CreateContactRecord(tx, record); err != nil {
			return fmt.Errorf("contact record insert: %w", err)
		}

		if newStatus == database.StatusAppointmentTracker {
			if err := database.CreateAppointment(tx, s.buildAppointment(ro, in, now)); err != nil {
				return fmt.Errorf("appointment insert: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ContactResult{
		ROID:       ro.ROID,
		NewStatus:  newStatus,
		ReachCount: reachCount,
	}, nil
}

// buildAppointment creates the tracked appointment for a transition into
// APPOINTMENT_TRACKER, carrying only the interests marked appointment_made.
// There is deliberately no existence check: a repeated transition creates a
// second row, matching the original workflow's behavior.
func (s *ContactService) buildAppointment(ro *database.RepairOrder, in ContactInput, now time.Time) *database.Appointment {
	apptDate := now
	if in.FollowUpDate != nil {
		apptDate = *in.FollowUpDate
	}

	var interested database.JobInterests
	for _, ji := range in.JobInterests {
		if ji.InterestStatus == database.InterestAppointmentMade {
			interested = append(interested, ji)
		}
	}

	return &database.Appointment{
		AppointmentID:   uuid.NewString(),
		ROID:            ro.ROID,
		VehicleID:       ro.VehicleID,
		AppointmentDate: apptDate,
		Status:          database.AppointmentPending,
		InterestedJobs:  interested,
	}
}
