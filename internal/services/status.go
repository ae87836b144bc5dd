package services

import "github.com/tekfollow/tekfollow/internal/database"

// NextStatus maps the job-interest signals of a call to the repair order's
// next workflow status. Priority: appointment made beats interested, which
// beats an all-negative outcome; mixed signals fall back to the follow-up
// tracker. An empty interest set (voicemail/text) leaves the status alone.
func NextStatus(current database.FollowUpStatus, interests []database.JobInterest) database.FollowUpStatus {
	if len(interests) == 0 {
		return current
	}

	hasAppointment := false
	hasInterested := false
	allNegative := true
	for _, ji := range interests {
		switch ji.InterestStatus {
		case database.InterestAppointmentMade:
			hasAppointment = true
			allNegative = false
		case database.InterestInterested:
			hasInterested = true
			allNegative = false
		case database.InterestNotInterested, database.InterestWorkCompleted:
		default:
			allNegative = false
		}
	}

	switch {
	case hasAppointment:
		return database.StatusAppointmentTracker
	case hasInterested:
		return database.StatusFollowUpTracker
	case allNegative:
		return database.StatusDeleted
	default:
		return database.StatusFollowUpTracker
	}
}
