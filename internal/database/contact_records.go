package database

import (
	"time"

	"gorm.io/gorm"
)

// CreateContactRecord inserts a denormalized contact event row.
func CreateContactRecord(db *gorm.DB, rec *ContactRecord) error {
	return db.Create(rec).Error
}

// ContactRecordFilter narrows contact record queries for the analytics
// reader. Zero values mean no filtering on that dimension.
type ContactRecordFilter struct {
	UserID string
	Start  *time.Time
	End    *time.Time
}

// ListContactRecords returns contact records matching the filter, ordered by
// timestamp. Ordering matters: downstream reach-tier computations assume
// chronological order within each repair order.
func ListContactRecords(db *gorm.DB, filter ContactRecordFilter) ([]ContactRecord, error) {
	q := db.Model(&ContactRecord{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Start != nil {
		q = q.Where("timestamp >= ?", *filter.Start)
	}
	if filter.End != nil {
		q = q.Where("timestamp <= ?", *filter.End)
	}

	var recs []ContactRecord
	if err := q.Order("timestamp asc, id asc").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
