package database

import "gorm.io/gorm"

// HasSaleRecords reports whether any sale record exists for the given
// vehicle and repair order. The sales reconciler uses this as its
// idempotency gate before re-examining upstream activity.
func HasSaleRecords(db *gorm.DB, vehicleID int64, roID string) (bool, error) {
	var count int64
	err := db.Model(&SaleRecord{}).
		Where("vehicle_id = ? AND ro_id = ?", vehicleID, roID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateSaleRecord inserts an attributed sale.
func CreateSaleRecord(db *gorm.DB, sale *SaleRecord) error {
	return db.Create(sale).Error
}

// ListSaleRecords returns all attributed sales, oldest first.
func ListSaleRecords(db *gorm.DB) ([]SaleRecord, error) {
	var sales []SaleRecord
	if err := db.Order("id asc").Find(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}

// ListSaleRecordsByType returns attributed sales of one type.
func ListSaleRecordsByType(db *gorm.DB, saleType SaleType) ([]SaleRecord, error) {
	var sales []SaleRecord
	if err := db.Where("type = ?", saleType).Order("id asc").Find(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}
