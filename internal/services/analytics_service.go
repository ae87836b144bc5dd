package services

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/tekfollow/tekfollow/internal/database"
)

// ReachBreakdown tiers contact events by how many times the customer had
// been reached at that point.
type ReachBreakdown struct {
	FirstReach       int `json:"first_reach"`
	SecondReach      int `json:"second_reach"`
	ThirdPlusReach   int `json:"third_plus_reach"`
	AppointmentCalls int `json:"appointment_calls"`
	Total            int `json:"total"`
}

// SummaryStats are per-repair-order deduplicated outcome counts plus raw
// voicemail/text tallies.
type SummaryStats struct {
	Leads            int `json:"leads"`
	AppointmentsMade int `json:"appointments_made"`
	NotInterested    int `json:"not_interested"`
	WorkCompleted    int `json:"work_completed"`
	Voicemails       int `json:"voicemails"`
	Texts            int `json:"texts"`
}

// AppointmentBreakdown summarizes tracked appointment outcomes.
type AppointmentBreakdown struct {
	Made      int `json:"made"`
	Completed int `json:"completed"`
	Missed    int `json:"missed"`
	Upcoming  int `json:"upcoming"`
}

// CategoryStats aggregates calls and attributed revenue per declined-job
// category.
type CategoryStats struct {
	Name         string `json:"name"`
	Calls        int    `json:"calls"`
	Completed    int    `json:"completed"`
	RevenueCents int64  `json:"revenue_cents"`
}

// SalesTotals are attributed revenue totals in integer cents.
type SalesTotals struct {
	DirectCents   int64 `json:"direct_cents"`
	IndirectCents int64 `json:"indirect_cents"`
}

// Report is the full analytics payload served to the dashboard.
type Report struct {
	OutboundCalls   ReachBreakdown       `json:"outbound_calls"`
	ContactedCalls  ReachBreakdown       `json:"contacted_calls"`
	Summary         SummaryStats         `json:"summary"`
	Appointments    AppointmentBreakdown `json:"appointments"`
	Sales           SalesTotals          `json:"sales"`
	SalesByCategory []CategoryStats      `json:"sales_by_category"`
}

// ReportFilter narrows the contact events feeding the report. Repair orders
// and sale records are always considered in full.
type ReportFilter struct {
	UserID string
	Start  *time.Time
	End    *time.Time
}

// AnalyticsService computes the aggregate follow-up report from repair
// orders, denormalized contact records, and attributed sales.
type AnalyticsService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAnalyticsService creates a new AnalyticsService.
func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: db, now: time.Now}
}

// Report builds the aggregate report.
func (s *AnalyticsService) Report(ctx context.Context, filter ReportFilter) (*Report, error) {
	db := s.db.WithContext(ctx)

	var ros []database.RepairOrder
	if err := db.Find(&ros).Error; err != nil {
		return nil, err
	}

	contacts, err := database.ListContactRecords(db, database.ContactRecordFilter{
		UserID: filter.UserID,
		Start:  filter.Start,
		End:    filter.End,
	})
	if err != nil {
		return nil, err
	}

	sales, err := database.ListSaleRecords(db)
	if err != nil {
		return nil, err
	}

	var calls []database.ContactRecord
	for _, c := range contacts {
		if c.ContactMethod == database.ContactMethodCall {
			calls = append(calls, c)
		}
	}

	return &Report{
		OutboundCalls:   outboundBreakdown(calls),
		ContactedCalls:  contactedBreakdown(contacts),
		Summary:         summaryStats(ros, contacts),
		Appointments:    s.appointmentBreakdown(ros, sales),
		Sales:           salesTotals(sales),
		SalesByCategory: salesByCategory(ros, contacts, sales),
	}, nil
}

// outboundBreakdown tiers call events by their stored reach count, the value
// computed when the call was saved.
func outboundBreakdown(calls []database.ContactRecord) ReachBreakdown {
	var b ReachBreakdown
	for _, c := range calls {
		switch {
		case c.ReachCount == 1:
			b.FirstReach++
		case c.ReachCount == 2:
			b.SecondReach++
		case c.ReachCount >= 3:
			b.ThirdPlusReach++
		}
		if hasInterest(c.JobInterests, database.InterestAppointmentMade) {
			b.AppointmentCalls++
		}
		b.Total++
	}
	return b
}

// contactedBreakdown tiers every contact method by position within the
// repair order's timeline, recomputed from event order rather than the
// stored reach count (which voicemail and text never advance).
func contactedBreakdown(contacts []database.ContactRecord) ReachBreakdown {
	byRO := make(map[string][]database.ContactRecord)
	for _, c := range contacts {
		byRO[c.ROID] = append(byRO[c.ROID], c)
	}

	var b ReachBreakdown
	for _, group := range byRO {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Timestamp.Before(group[j].Timestamp)
		})
		for i, c := range group {
			switch reach := i + 1; {
			case reach == 1:
				b.FirstReach++
			case reach == 2:
				b.SecondReach++
			default:
				b.ThirdPlusReach++
			}
			if hasInterest(c.JobInterests, database.InterestAppointmentMade) {
				b.AppointmentCalls++
			}
			b.Total++
		}
	}
	return b
}

// summaryStats counts workflow outcomes once per repair order, plus raw
// voicemail and text tallies.
func summaryStats(ros []database.RepairOrder, contacts []database.ContactRecord) SummaryStats {
	byRO := make(map[string][]database.ContactRecord)
	for _, c := range contacts {
		byRO[c.ROID] = append(byRO[c.ROID], c)
	}

	var stats SummaryStats
	for _, ro := range ros {
		roContacts := byRO[ro.ROID]

		if anyInterest(roContacts, database.InterestInterested, database.InterestAppointmentMade) {
			stats.Leads++
		}
		if ro.Status == database.StatusAppointmentTracker {
			stats.AppointmentsMade++
		}
		if anyInterest(roContacts, database.InterestNotInterested) {
			stats.NotInterested++
		}
		if anyInterest(roContacts, database.InterestWorkCompleted) {
			stats.WorkCompleted++
		}
	}

	for _, c := range contacts {
		switch c.ContactMethod {
		case database.ContactMethodVoicemail:
			stats.Voicemails++
		case database.ContactMethodText:
			stats.Texts++
		}
	}
	return stats
}

// appointmentBreakdown summarizes appointment outcomes from repair order
// state and direct sale completions.
func (s *AnalyticsService) appointmentBreakdown(ros []database.RepairOrder, sales []database.SaleRecord) AppointmentBreakdown {
	now := s.now()

	var b AppointmentBreakdown
	for _, ro := range ros {
		if ro.Status != database.StatusAppointmentTracker {
			continue
		}
		b.Made++
		if ro.NoShow {
			b.Missed++
		} else if ro.FollowUpDate != nil && ro.FollowUpDate.After(now) {
			b.Upcoming++
		}
	}
	for _, sale := range sales {
		if sale.Type == database.SaleTypeDirect && sale.Completed {
			b.Completed++
		}
	}
	return b
}

func salesTotals(sales []database.SaleRecord) SalesTotals {
	var t SalesTotals
	for _, sale := range sales {
		if !sale.Completed {
			continue
		}
		switch sale.Type {
		case database.SaleTypeDirect:
			t.DirectCents += sale.RevenueCents
		case database.SaleTypeIndirect:
			t.IndirectCents += sale.RevenueCents
		}
	}
	return t
}

// salesByCategory aggregates per declined-job category. The call count adds
// the repair order's full contact tally for every declined job in the
// category, so multi-job orders inflate totals. That mirrors the metric the
// dashboard has always shown; changing it would shift historical trends.
func salesByCategory(ros []database.RepairOrder, contacts []database.ContactRecord, sales []database.SaleRecord) []CategoryStats {
	contactCounts := make(map[string]int)
	for _, c := range contacts {
		contactCounts[c.ROID]++
	}

	type saleKey struct {
		roID  string
		jobID int64
	}
	completedSales := make(map[saleKey]*database.SaleRecord)
	for i, sale := range sales {
		if sale.Completed {
			key := saleKey{roID: sale.ROID, jobID: sale.JobID}
			if _, ok := completedSales[key]; !ok {
				completedSales[key] = &sales[i]
			}
		}
	}

	stats := make(map[string]*CategoryStats)
	for _, ro := range ros {
		for _, job := range ro.DeclinedJobs {
			category := job.Category
			if category == "" {
				category = "Other"
			}
			cs, ok := stats[category]
			if !ok {
				cs = &CategoryStats{Name: category}
				stats[category] = cs
			}

			cs.Calls += contactCounts[ro.ROID]

			if sale, ok := completedSales[saleKey{roID: ro.ROID, jobID: job.ID}]; ok {
				cs.Completed++
				cs.RevenueCents += sale.RevenueCents
			}
		}
	}

	out := make([]CategoryStats, 0, len(stats))
	for _, cs := range stats {
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func hasInterest(interests database.JobInterests, statuses ...database.InterestStatus) bool {
	for _, ji := range interests {
		for _, status := range statuses {
			if ji.InterestStatus == status {
				return true
			}
		}
	}
	return false
}

func anyInterest(contacts []database.ContactRecord, statuses ...database.InterestStatus) bool {
	for _, c := range contacts {
		if hasInterest(c.JobInterests, statuses...) {
			return true
		}
	}
	return false
}
