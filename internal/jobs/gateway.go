package jobs

import (
	"context"
	"time"

	"github.com/tekfollow/tekfollow/internal/tekmetric"
)

// UpstreamGateway is the slice of the shop-management API the batch jobs
// consume. *tekmetric.Client satisfies it; tests substitute fakes.
type UpstreamGateway interface {
	FetchAppointments(ctx context.Context, start, end time.Time) ([]tekmetric.Appointment, error)
	FetchVehicleRepairOrders(ctx context.Context, vehicleID int64, postedSince time.Time) ([]tekmetric.RepairOrder, error)
	FetchJobs(ctx context.Context, repairOrderID int64) ([]tekmetric.Job, error)
}
