package core

import (
	"sort"
	"time"
)

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

// MetricValue is the metric name used when a record carries a single value.
const MetricValue = "value"

type (
	Trend string

	// TimedValue is a timestamped record with named numeric values.
	TimedValue struct {
		Timestamp time.Time
		Values    map[string]float64
	}

	// MonthBucket aggregates the records of one calendar month.
	MonthBucket struct {
		MonthStart time.Time
		Count      int
		Sums       map[string]float64
	}

	// TrendMetric is a headline figure with its period-over-period change.
	TrendMetric struct {
		Label         string
		Value         float64
		ChangePercent float64
		Trend         Trend
		// PointChange is set when ChangePercent is an absolute difference of
		// two percentages rather than a relative change.
		PointChange bool
	}

	// LabelCount is a count grouped by a label such as a status or a source.
	LabelCount struct {
		Label string
		Count int
	}
)

// Value builds a TimedValue carrying a single value under MetricValue.
func Value(ts time.Time, v float64) TimedValue {
	return TimedValue{Timestamp: ts, Values: map[string]float64{MetricValue: v}}
}

// BucketByMonth groups records with Timestamp >= since by UTC calendar month.
func BucketByMonth(records []TimedValue, since time.Time) []MonthBucket {
	return BucketByMonthIn(records, since, time.UTC)
}

// BucketByMonthIn groups records with Timestamp >= since by calendar month in
// loc, counting them and summing each named value. Buckets are returned in
// ascending month order; empty input yields an empty slice.
func BucketByMonthIn(records []TimedValue, since time.Time, loc *time.Location) []MonthBucket {
	if loc == nil {
		loc = time.UTC
	}
	byMonth := make(map[time.Time]*MonthBucket)
	for _, r := range records {
		if r.Timestamp.Before(since) {
			continue
		}
		start := MonthStart(r.Timestamp, loc)
		b, ok := byMonth[start]
		if !ok {
			b = &MonthBucket{MonthStart: start, Sums: make(map[string]float64)}
			byMonth[start] = b
		}
		b.Count++
		for name, v := range r.Values {
			b.Sums[name] += v
		}
	}

	out := make([]MonthBucket, 0, len(byMonth))
	for _, b := range byMonth {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MonthStart.Before(out[j].MonthStart)
	})
	return out
}

// MonthStart truncates t to midnight on the first day of its month in loc.
func MonthStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// PercentChange returns the relative change from previous to current in
// percent. A non-positive previous value yields 0, so growth from an empty
// baseline reads as 0% rather than infinity.
func PercentChange(current, previous float64) float64 {
	if previous <= 0 {
		return 0
	}
	return ((current - previous) / previous) * 100
}

// TrendOf labels a change; zero counts as up.
func TrendOf(changePercent float64) Trend {
	if changePercent >= 0 {
		return TrendUp
	}
	return TrendDown
}

// ConversionRate is converted/total as a percentage, 0 when total is 0.
func ConversionRate(converted, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(converted) / float64(total) * 100
}

// ConversionChange is the difference in percentage points between two
// conversion rates. Like PercentChange it reports 0 without a previous rate.
func ConversionChange(currentRate, previousRate float64) float64 {
	if previousRate <= 0 {
		return 0
	}
	return currentRate - previousRate
}

// Periods are the two contiguous ranges compared by the dashboard:
// Previous is [PreviousStart, CurrentStart) and Current is [CurrentStart, Now].
type Periods struct {
	PreviousStart time.Time
	CurrentStart  time.Time
	Now           time.Time
}

// DashboardPeriods derives the comparison ranges from now, in now's location.
func DashboardPeriods(now time.Time) Periods {
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return Periods{
		PreviousStart: current.AddDate(0, -1, 0),
		CurrentStart:  current,
		Now:           now,
	}
}

// InCurrent reports whether t falls in [CurrentStart, Now].
func (p Periods) InCurrent(t time.Time) bool {
	return !t.Before(p.CurrentStart) && !t.After(p.Now)
}

// InPrevious reports whether t falls in [PreviousStart, CurrentStart).
func (p Periods) InPrevious(t time.Time) bool {
	return !t.Before(p.PreviousStart) && t.Before(p.CurrentStart)
}

// PeriodCounts holds the raw figures of one period.
type PeriodCounts struct {
	NewLeads       int
	ActiveProjects int
	Revenue        float64
	TotalLeads     int
	ConvertedLeads int
}

// PeriodInputs pairs the figures of the current and previous periods.
type PeriodInputs struct {
	Current  PeriodCounts
	Previous PeriodCounts
}

const (
	LabelNewLeads       = "New Leads"
	LabelActiveProjects = "Active Projects"
	LabelRevenue        = "This Month Revenue"
	LabelConversionRate = "Conversion Rate"
)

// BuildDashboardStats derives the four headline metrics in display order.
func BuildDashboardStats(in PeriodInputs) []TrendMetric {
	cur, prev := in.Current, in.Previous

	metric := func(label string, current, previous float64) TrendMetric {
		change := PercentChange(current, previous)
		return TrendMetric{Label: label, Value: current, ChangePercent: change, Trend: TrendOf(change)}
	}

	curRate := ConversionRate(cur.ConvertedLeads, cur.TotalLeads)
	prevRate := ConversionRate(prev.ConvertedLeads, prev.TotalLeads)
	rateChange := ConversionChange(curRate, prevRate)

	return []TrendMetric{
		metric(LabelNewLeads, float64(cur.NewLeads), float64(prev.NewLeads)),
		metric(LabelActiveProjects, float64(cur.ActiveProjects), float64(prev.ActiveProjects)),
		metric(LabelRevenue, cur.Revenue, prev.Revenue),
		{
			Label:         LabelConversionRate,
			Value:         curRate,
			ChangePercent: rateChange,
			Trend:         TrendOf(rateChange),
			PointChange:   true,
		},
	}
}

// CountBy groups items by the label key returns, ordered by descending count
// and then label.
func CountBy[T any](items []T, key func(T) string) []LabelCount {
	counts := make(map[string]int)
	for _, it := range items {
		counts[key(it)]++
	}
	out := make([]LabelCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, LabelCount{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}
