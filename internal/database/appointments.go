package database

import (
	"errors"

	"gorm.io/gorm"
)

// CreateAppointment inserts a new tracked appointment.
func CreateAppointment(db *gorm.DB, appt *Appointment) error {
	return db.Create(appt).Error
}

// FindAppointmentByROID returns the tracked appointment for a repair order,
// or ErrNotFound if none exists. When duplicates exist the earliest row wins.
func FindAppointmentByROID(db *gorm.DB, roID string) (*Appointment, error) {
	var appt Appointment
	err := db.Where("ro_id = ?", roID).Order("id asc").First(&appt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

// UpdateAppointmentStatus sets the outcome status of a tracked appointment.
func UpdateAppointmentStatus(db *gorm.DB, appointmentID string, status AppointmentStatus) error {
	return db.Model(&Appointment{}).
		Where("appointment_id = ?", appointmentID).
		Update("status", status).Error
}

// ListAppointments returns all tracked appointments, oldest first.
func ListAppointments(db *gorm.DB) ([]Appointment, error) {
	var appts []Appointment
	if err := db.Order("id asc").Find(&appts).Error; err != nil {
		return nil, err
	}
	return appts, nil
}
