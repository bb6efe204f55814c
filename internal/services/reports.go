package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"fintrack/internal/core"
)

// Trend periods accepted by Trends. Anything else is rejected before a
// single query runs.
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

const (
	dailyTrendDays    = 30
	weeklyTrendWeeks  = 12
	monthlyTrendCount = 12
)

// ReportService is the aggregation engine. Every query runs over the
// caller's active (non-deleted) transactions only; date windows are
// inclusive on both ends.
type ReportService struct {
	store TransactionStore
	today func() core.Date
}

func NewReportService(store TransactionStore) *ReportService {
	return &ReportService{store: store, today: core.Today}
}

type (
	// Period is an inclusive date window.
	Period struct {
		StartDate core.Date `json:"start_date"`
		EndDate   core.Date `json:"end_date"`
	}

	// Statistics are the three independent aggregates plus their
	// derived balance. Each is zero, not an error, when no rows match.
	Statistics struct {
		TotalIncome      core.Money `json:"total_income"`
		TotalExpense     core.Money `json:"total_expense"`
		Balance          core.Money `json:"balance"`
		TransactionCount int64      `json:"transaction_count"`
	}

	// Averages divide the statistics over the period, rounded half-up
	// to cents.
	Averages struct {
		AvgDailyIncome       core.Money `json:"avg_daily_income"`
		AvgDailyExpense      core.Money `json:"avg_daily_expense"`
		AvgTransactionAmount core.Money `json:"avg_transaction_amount"`
	}

	Summary struct {
		Period     Period     `json:"period"`
		Statistics Statistics `json:"statistics"`
		Averages   Averages   `json:"averages"`
	}

	// CategoryShare is one category's slice of the breakdown.
	CategoryShare struct {
		CategoryID       int64                `json:"category_id"`
		CategoryName     string               `json:"category_name"`
		CategoryType     core.TransactionType `json:"category_type"`
		TotalAmount      core.Money           `json:"total_amount"`
		TransactionCount int64                `json:"transaction_count"`
		Percentage       float64              `json:"percentage"`
	}

	// UncategorizedShare aggregates transactions with no category.
	UncategorizedShare struct {
		TotalAmount      core.Money `json:"total_amount"`
		TransactionCount int64      `json:"transaction_count"`
		Percentage       float64    `json:"percentage"`
	}

	CategoryBreakdown struct {
		Period        Period             `json:"period"`
		ByCategory    []CategoryShare    `json:"by_category"`
		Uncategorized UncategorizedShare `json:"uncategorized"`
		Total         core.Money         `json:"total"`
	}

	// MonthBucket is one month of the monthly breakdown. Only months
	// with at least one transaction appear.
	MonthBucket struct {
		Year         int        `json:"year"`
		Month        int        `json:"month"`
		MonthName    string     `json:"month_name"`
		TotalIncome  core.Money `json:"total_income"`
		TotalExpense core.Money `json:"total_expense"`
		Balance      core.Money `json:"balance"`
	}

	MonthlyBreakdown struct {
		Months []MonthBucket `json:"months"`
	}

	// TrendPoint is one fixed bucket of a trend series; gap buckets
	// carry zeroes.
	TrendPoint struct {
		PeriodStart  core.Date  `json:"period_start"`
		PeriodEnd    core.Date  `json:"period_end"`
		TotalIncome  core.Money `json:"total_income"`
		TotalExpense core.Money `json:"total_expense"`
		Balance      core.Money `json:"balance"`
	}

	Trend struct {
		Period string       `json:"period"`
		Data   []TrendPoint `json:"data"`
	}
)

type typeTotals struct {
	income  int64
	expense int64
}

func (t *typeTotals) add(typ core.TransactionType, cents int64) {
	if typ == core.Income {
		t.income += cents
	} else {
		t.expense += cents
	}
}

// Statistics computes the user's totals over an optional window. Each
// aggregate is independent: no matching rows means zero.
func (s *ReportService) Statistics(ctx context.Context, userID int64, start, end *core.Date) (Statistics, error) {
	income, err := s.store.SumAmount(ctx, userID, core.Income, start, end)
	if err != nil {
		return Statistics{}, fmt.Errorf("sum income: %w", err)
	}
	expense, err := s.store.SumAmount(ctx, userID, core.Expense, start, end)
	if err != nil {
		return Statistics{}, fmt.Errorf("sum expense: %w", err)
	}
	count, err := s.store.CountTransactions(ctx, userID, start, end)
	if err != nil {
		return Statistics{}, fmt.Errorf("count transactions: %w", err)
	}

	return Statistics{
		TotalIncome:      core.Money{Cents: income},
		TotalExpense:     core.Money{Cents: expense},
		Balance:          core.Money{Cents: income - expense},
		TransactionCount: count,
	}, nil
}

// Summary is statistics plus per-day and per-transaction averages over
// the window, defaulting to the trailing 30 days ending today.
func (s *ReportService) Summary(ctx context.Context, userID int64, start, end *core.Date) (Summary, error) {
	startDate, endDate := s.defaultWindow(start, end)

	stats, err := s.Statistics(ctx, userID, &startDate, &endDate)
	if err != nil {
		return Summary{}, err
	}

	days := int64(startDate.DaysUntil(endDate)) + 1
	if days < 1 {
		days = 1
	}

	avgTxn := int64(0)
	if stats.TransactionCount > 0 {
		avgTxn = core.DivideCents(stats.TotalIncome.Cents+stats.TotalExpense.Cents, stats.TransactionCount)
	}

	return Summary{
		Period:     Period{StartDate: startDate, EndDate: endDate},
		Statistics: stats,
		Averages: Averages{
			AvgDailyIncome:       core.Money{Cents: core.DivideCents(stats.TotalIncome.Cents, days)},
			AvgDailyExpense:      core.Money{Cents: core.DivideCents(stats.TotalExpense.Cents, days)},
			AvgTransactionAmount: core.Money{Cents: avgTxn},
		},
	}, nil
}

// ByCategory groups the window's transactions by category, with a
// separate bucket for uncategorized rows. The optional type filter
// restricts both sides identically, so nothing leaks between them.
func (s *ReportService) ByCategory(ctx context.Context, userID int64, start, end *core.Date, typ *core.TransactionType) (CategoryBreakdown, error) {
	startDate, endDate := s.defaultWindow(start, end)

	rows, err := s.store.CategoryTotals(ctx, userID, startDate, endDate, typ)
	if err != nil {
		return CategoryBreakdown{}, fmt.Errorf("category totals: %w", err)
	}
	unTotal, unCount, err := s.store.UncategorizedTotals(ctx, userID, startDate, endDate, typ)
	if err != nil {
		return CategoryBreakdown{}, fmt.Errorf("uncategorized totals: %w", err)
	}

	grand := unTotal
	for _, r := range rows {
		grand += r.TotalCents
	}

	shares := make([]CategoryShare, 0, len(rows))
	for _, r := range rows {
		shares = append(shares, CategoryShare{
			CategoryID:       r.CategoryID,
			CategoryName:     r.CategoryName,
			CategoryType:     r.CategoryType,
			TotalAmount:      core.Money{Cents: r.TotalCents},
			TransactionCount: r.Count,
			Percentage:       core.Percent(r.TotalCents, grand),
		})
	}

	return CategoryBreakdown{
		Period:     Period{StartDate: startDate, EndDate: endDate},
		ByCategory: shares,
		Uncategorized: UncategorizedShare{
			TotalAmount:      core.Money{Cents: unTotal},
			TransactionCount: unCount,
			Percentage:       core.Percent(unTotal, grand),
		},
		Total: core.Money{Cents: grand},
	}, nil
}

// Monthly groups by calendar (year, month), newest first. The lookback
// bound is months*30 days, a deliberate approximation of calendar
// months. Months without transactions are skipped, unlike trends.
func (s *ReportService) Monthly(ctx context.Context, userID int64, months int) (MonthlyBreakdown, error) {
	if months < 1 || months > 12 {
		return MonthlyBreakdown{}, core.Validationf("months must be between 1 and 12")
	}

	since := s.today().AddDays(-months * 30)
	rows, err := s.store.MonthlyTotals(ctx, userID, since)
	if err != nil {
		return MonthlyBreakdown{}, fmt.Errorf("monthly totals: %w", err)
	}

	type ym struct{ year, month int }
	grouped := make(map[ym]*typeTotals)
	for _, r := range rows {
		key := ym{r.Year, r.Month}
		if grouped[key] == nil {
			grouped[key] = &typeTotals{}
		}
		grouped[key].add(r.Type, r.TotalCents)
	}

	keys := make([]ym, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year > keys[j].year
		}
		return keys[i].month > keys[j].month
	})

	buckets := make([]MonthBucket, 0, len(keys))
	for _, k := range keys {
		t := grouped[k]
		buckets = append(buckets, MonthBucket{
			Year:         k.year,
			Month:        k.month,
			MonthName:    time.Month(k.month).String(),
			TotalIncome:  core.Money{Cents: t.income},
			TotalExpense: core.Money{Cents: t.expense},
			Balance:      core.Money{Cents: t.income - t.expense},
		})
	}

	return MonthlyBreakdown{Months: buckets}, nil
}

// Trends produces a fixed-length, gap-filled series: 30 daily entries,
// 12 weekly buckets, or 12 monthly buckets, always ordered oldest to
// newest regardless of data sparsity.
func (s *ReportService) Trends(ctx context.Context, userID int64, period string) (Trend, error) {
	switch period {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
	default:
		return Trend{}, core.Validationf("period must be one of daily, weekly, monthly")
	}

	today := s.today()
	var points []TrendPoint

	switch period {
	case PeriodDaily:
		daily, err := s.dailyTotals(ctx, userID, today.AddDays(-dailyTrendDays))
		if err != nil {
			return Trend{}, err
		}
		points = make([]TrendPoint, 0, dailyTrendDays)
		for i := 0; i < dailyTrendDays; i++ {
			day := today.AddDays(-i)
			t := daily[day.String()]
			points = append(points, trendPoint(day, day, t))
		}

	case PeriodWeekly:
		daily, err := s.dailyTotals(ctx, userID, today.AddDays(-weeklyTrendWeeks*7))
		if err != nil {
			return Trend{}, err
		}
		points = make([]TrendPoint, 0, weeklyTrendWeeks)
		for i := 0; i < weeklyTrendWeeks; i++ {
			// Half-open bucket [start, end): the bucket anchored at
			// today excludes today itself.
			weekStart := today.AddDays(-(i + 1) * 7)
			weekEnd := today.AddDays(-i * 7)

			var t typeTotals
			for ds, dt := range daily {
				d, _ := core.ParseDate(ds)
				if !d.Before(weekStart.Time) && d.Before(weekEnd.Time) {
					t.income += dt.income
					t.expense += dt.expense
				}
			}
			points = append(points, trendPoint(weekStart, weekEnd.AddDays(-1), t))
		}

	case PeriodMonthly:
		rows, err := s.store.MonthlyTotals(ctx, userID, today.AddDays(-365))
		if err != nil {
			return Trend{}, fmt.Errorf("monthly totals: %w", err)
		}
		type ym struct{ year, month int }
		grouped := make(map[ym]typeTotals)
		for _, r := range rows {
			t := grouped[ym{r.Year, r.Month}]
			t.add(r.Type, r.TotalCents)
			grouped[ym{r.Year, r.Month}] = t
		}

		firstOfMonth := core.NewDate(today.Year(), int(today.Month()), 1)
		points = make([]TrendPoint, 0, monthlyTrendCount)
		for i := 0; i < monthlyTrendCount; i++ {
			// 30-day stepping back from the first of the current
			// month; bucket bounds are the real calendar month.
			anchor := firstOfMonth.AddDays(-i * 30)
			t := grouped[ym{anchor.Year(), int(anchor.Month())}]

			periodStart := core.NewDate(anchor.Year(), int(anchor.Month()), 1)
			periodEnd := core.NewDate(anchor.Year(), int(anchor.Month())+1, 1).AddDays(-1)
			points = append(points, trendPoint(periodStart, periodEnd, t))
		}
	}

	// Buckets are built newest first; the response runs oldest first.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}

	return Trend{Period: period, Data: points}, nil
}

func (s *ReportService) defaultWindow(start, end *core.Date) (core.Date, core.Date) {
	startDate := s.today().AddDays(-30)
	endDate := s.today()
	if start != nil {
		startDate = *start
	}
	if end != nil {
		endDate = *end
	}
	return startDate, endDate
}

func (s *ReportService) dailyTotals(ctx context.Context, userID int64, since core.Date) (map[string]typeTotals, error) {
	rows, err := s.store.DailyTotals(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	daily := make(map[string]typeTotals, len(rows))
	for _, r := range rows {
		t := daily[r.Day.String()]
		t.add(r.Type, r.TotalCents)
		daily[r.Day.String()] = t
	}
	return daily, nil
}

func trendPoint(start, end core.Date, t typeTotals) TrendPoint {
	return TrendPoint{
		PeriodStart:  start,
		PeriodEnd:    end,
		TotalIncome:  core.Money{Cents: t.income},
		TotalExpense: core.Money{Cents: t.expense},
		Balance:      core.Money{Cents: t.income - t.expense},
	}
}
