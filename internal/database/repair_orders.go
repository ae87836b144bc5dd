package database

import (
	"errors"

	"gorm.io/gorm"
)

// GetRepairOrder loads a repair order by its external ro_id.
func GetRepairOrder(db *gorm.DB, roID string) (*RepairOrder, error) {
	var ro RepairOrder
	err := db.Where("ro_id = ?", roID).First(&ro).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ro, nil
}

// ListRepairOrdersByStatus returns one page of repair orders in the given
// workflow status plus the total count for that status.
func ListRepairOrdersByStatus(db *gorm.DB, status FollowUpStatus, offset, limit int) ([]RepairOrder, int64, error) {
	var total int64
	if err := db.Model(&RepairOrder{}).Where("status = ?", status).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ros []RepairOrder
	err := db.Where("status = ?", status).
		Order("id asc").Offset(offset).Limit(limit).Find(&ros).Error
	if err != nil {
		return nil, 0, err
	}
	return ros, total, nil
}

// ListContactedRepairOrders returns all repair orders with at least one
// recorded contact event. last_contact_date is set exactly when an event is
// appended, so it stands in for a non-empty contact_history without scanning
// the JSON column.
func ListContactedRepairOrders(db *gorm.DB) ([]RepairOrder, error) {
	var ros []RepairOrder
	err := db.Where("last_contact_date IS NOT NULL").Order("id asc").Find(&ros).Error
	if err != nil {
		return nil, err
	}
	return ros, nil
}

// UpdateRepairOrderFields applies a conditional update guarded by the repair
// order's version. The write succeeds only if no other writer has bumped the
// version since ro was read; otherwise ErrVersionConflict is returned and no
// fields change. On success ro.Version reflects the stored version.
func UpdateRepairOrderFields(db *gorm.DB, ro *RepairOrder, fields map[string]interface{}) error {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = ro.Version + 1

	res := db.Model(&RepairOrder{}).
		Where("id = ? AND version = ?", ro.ID, ro.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	ro.Version++
	return nil
}
