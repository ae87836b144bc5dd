package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tekfollow/tekfollow/internal/database"
	"github.com/tekfollow/tekfollow/internal/tekmetric"
)

// contactSlack widens the upstream query window to the day before the last
// contact, so a repair order posted the same day is never missed to
// date-only truncation.
const contactSlack = 24 * time.Hour

// ReconcilerStats summarizes one reconciler run.
type ReconcilerStats struct {
	DirectSales          int   `json:"direct_sales"`
	IndirectSales        int   `json:"indirect_sales"`
	DirectRevenueCents   int64 `json:"direct_revenue_cents"`
	IndirectRevenueCents int64 `json:"indirect_revenue_cents"`
	Skipped              int   `json:"skipped"`
	Failed               int   `json:"failed"`
}

// SalesReconciler detects repair orders posted upstream after a customer was
// contacted and attributes their revenue to the declined work: direct when
// an authorized job matches a declined job by name, indirect otherwise.
type SalesReconciler struct {
	db      *gorm.DB
	gateway UpstreamGateway
	now     func() time.Time
}

// NewSalesReconciler creates a new reconciler.
func NewSalesReconciler(db *gorm.DB, gateway UpstreamGateway) *SalesReconciler {
	return &SalesReconciler{db: db, gateway: gateway, now: time.Now}
}

// Run reconciles every contacted repair order once. Orders that already have
// sale records for their vehicle are skipped entirely, which makes re-runs
// with no new upstream activity free of duplicates. Failures on one order
// are logged and skipped.
func (r *SalesReconciler) Run(ctx context.Context) (ReconcilerStats, error) {
	var stats ReconcilerStats

	ros, err := database.ListContactedRepairOrders(r.db.WithContext(ctx))
	if err != nil {
		return stats, err
	}

	for i := range ros {
		ro := &ros[i]
		if ro.VehicleID == 0 {
			continue
		}

		if err := r.reconcileOrder(ctx, ro, &stats); err != nil {
			stats.Failed++
			log.Printf("Sales reconciler: repair order %s failed: %v", ro.ROID, err)
		}
	}

	log.Printf("Sales reconciler: %d direct ($%d.%02d), %d indirect ($%d.%02d), %d skipped, %d failed",
		stats.DirectSales, stats.DirectRevenueCents/100, stats.DirectRevenueCents%100,
		stats.IndirectSales, stats.IndirectRevenueCents/100, stats.IndirectRevenueCents%100,
		stats.Skipped, stats.Failed)
	return stats, nil
}

// reconcileOrder examines one contacted repair order for later upstream
// activity on its vehicle.
func (r *SalesReconciler) reconcileOrder(ctx context.Context, ro *database.RepairOrder, stats *ReconcilerStats) error {
	db := r.db.WithContext(ctx)

	tracked, err := database.HasSaleRecords(db, ro.VehicleID, ro.ROID)
	if err != nil {
		return err
	}
	if tracked {
		stats.Skipped++
		return nil
	}

	lastContact := ro.UpdatedAt
	if ro.LastContactDate != nil {
		lastContact = *ro.LastContactDate
	}

	upstreamROs, err := r.gateway.FetchVehicleRepairOrders(ctx, ro.VehicleID, lastContact.Add(-contactSlack))
	if err != nil {
		return err
	}

	var completed []tekmetric.RepairOrder
	for _, upstream := range upstreamROs {
		if upstream.ID == ro.UpstreamROID {
			continue
		}
		if upstream.Status != tekmetric.StatusPosted {
			continue
		}
		if !upstream.PostedDate.After(lastContact) {
			continue
		}
		completed = append(completed, upstream)
	}
	if len(completed) == 0 {
		return nil
	}

	for _, completedRO := range completed {
		if err := r.attributeOrder(ctx, ro, completedRO, stats); err != nil {
			return err
		}
	}
	return nil
}

// attributeOrder records direct and indirect sales from one completed
// upstream repair order. Matching against the declined snapshot is by job
// name. There is no per-job dedup across multiple completed orders within a
// run; the same declined job can be attributed more than once.
func (r *SalesReconciler) attributeOrder(ctx context.Context, ro *database.RepairOrder, completedRO tekmetric.RepairOrder, stats *ReconcilerStats) error {
	jobs, err := r.gateway.FetchJobs(ctx, completedRO.ID)
	if err != nil {
		return err
	}

	db := r.db.WithContext(ctx)
	completedDate := completedRO.PostedDate

	for _, declined := range ro.DeclinedJobs {
		for _, job := range jobs {
			if !job.Authorized || job.Name != declined.Name {
				continue
			}
			revenue := job.RevenueCents()
			sale := &database.SaleRecord{
				TrackingID:    uuid.NewString(),
				ROID:          ro.ROID,
				VehicleID:     ro.VehicleID,
				CompletedROID: completedRO.ID,
				JobID:         declined.ID,
				JobName:       declined.Name,
				JobCategory:   declined.Category,
				Type:          database.SaleTypeDirect,
				RevenueCents:  revenue,
				Completed:     true,
				CompletedDate: &completedDate,
			}
			if err := database.CreateSaleRecord(db, sale); err != nil {
				return fmt.Errorf("direct sale insert: %w", err)
			}
			stats.DirectSales++
			stats.DirectRevenueCents += revenue
			break
		}
	}

	for _, job := range jobs {
		if !job.Authorized || ro.DeclinedJobs.ContainsName(job.Name) {
			continue
		}
		revenue := job.RevenueCents()
		sale := &database.SaleRecord{
			TrackingID:    uuid.NewString(),
			ROID:          ro.ROID,
			VehicleID:     ro.VehicleID,
			CompletedROID: completedRO.ID,
			JobID:         job.ID,
			JobName:       job.Name,
			JobCategory:   job.Category,
			Type:          database.SaleTypeIndirect,
			RevenueCents:  revenue,
			Completed:     true,
			CompletedDate: &completedDate,
		}
		if err := database.CreateSaleRecord(db, sale); err != nil {
			return fmt.Errorf("indirect sale insert: %w", err)
		}
		stats.IndirectSales++
		stats.IndirectRevenueCents += revenue
	}

	return nil
}

// Start begins periodic reconciliation runs until stop closes.
func (r *SalesReconciler) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.Run(context.Background()); err != nil {
				log.Printf("Sales reconciler error: %v", err)
			}
		case <-stop:
			log.Println("Sales reconciler stopped")
			return
		}
	}
}
