package sales

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ticketdesk/backoffice/internal/authz"
	"github.com/ticketdesk/backoffice/internal/shared"
)

const (
	recentEventsLimit   = 5
	recentActivityLimit = 10
)

// Service computes sales analytics and the dashboard.
type Service struct {
	repo    Repository
	cache   *Cache
	group   singleflight.Group
	printer *message.Printer
	logger  *slog.Logger
}

// NewService wires a Service. cache may be nil.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		cache:   cache,
		printer: message.NewPrinter(language.English),
		logger:  logger.With(slog.String("component", "sales")),
	}
}

// Report returns the sales summary and per event figures for filter.
func (s *Service) Report(ctx context.Context, actor authz.Principal, filter Filter) (Report, error) {
	if err := authz.Require(actor, shared.PermViewAnalytics); err != nil {
		return Report{}, err
	}
	return s.report(ctx, filter)
}

func (s *Service) report(ctx context.Context, filter Filter) (Report, error) {
	key, err := s.cache.BuildKey(ctx, reportKey(filter)...)
	if err != nil {
		s.logger.Warn("sales cache unavailable", slog.Any("error", err))
		return s.compute(ctx, filter)
	}
	// The shared load outlives any single waiter.
	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		var report Report
		err := s.cache.FetchJSON(loadCtx, key, &report, func(ctx context.Context) (any, error) {
			return s.compute(ctx, filter)
		})
		return report, err
	})
	select {
	case <-ctx.Done():
		return Report{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Report{}, res.Err
		}
		return res.Val.(Report), nil
	}
}

func (s *Service) compute(ctx context.Context, filter Filter) (Report, error) {
	stats, err := s.repo.EventStats(ctx, filter)
	if err != nil {
		return Report{}, fmt.Errorf("sales: event stats: %w", err)
	}
	if stats == nil {
		stats = []EventStat{}
	}
	return Report{Summary: Summarize(stats), EventStats: stats}, nil
}

// Summarize folds per event figures into a summary. ConversionRate is the
// percentage of bookings that were confirmed, rounded to two decimals.
func Summarize(stats []EventStat) Summary {
	sum := Summary{TotalEvents: len(stats)}
	for _, st := range stats {
		sum.TotalBookings += st.TotalBookings
		sum.ConfirmedBookings += st.ConfirmedBookings
		sum.CancelledBookings += st.CancelledBookings
		sum.TotalRevenue += st.Revenue
	}
	sum.TotalRevenue = round2(sum.TotalRevenue)
	if sum.TotalBookings > 0 {
		sum.ConversionRate = round2(float64(sum.ConfirmedBookings) / float64(sum.TotalBookings) * 100)
	}
	return sum
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Warm recomputes the unfiltered report into the cache.
func (s *Service) Warm(ctx context.Context) error {
	_, err := s.report(ctx, Filter{})
	return err
}

// Bump invalidates cached reports.
func (s *Service) Bump(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Export writes the per event figures for filter as CSV.
func (s *Service) Export(ctx context.Context, actor authz.Principal, filter Filter, w io.Writer) error {
	report, err := s.Report(ctx, actor, filter)
	if err != nil {
		return err
	}
	return WriteEventStatsCSV(w, report.EventStats)
}

// Dashboard returns headline figures scoped to actor. Admins see their own
// events and the users they promoted.
func (s *Service) Dashboard(ctx context.Context, actor authz.Principal) (Dashboard, error) {
	if err := authz.RequireRole(actor, authz.RoleAdmin, authz.RoleSuperAdmin); err != nil {
		return Dashboard{}, err
	}
	var (
		scope    Scope
		activity *int64
	)
	own := actor.Role != authz.RoleSuperAdmin
	if own {
		scope = Scope{OwnerID: &actor.ID, PromotedBy: &actor.ID}
		activity = &actor.ID
	}

	var (
		events, users, bookings int
		revenue                 float64
		recent                  []RecentEvent
		log                     []Activity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		events, err = s.repo.CountEvents(gctx, scope)
		return err
	})
	g.Go(func() (err error) {
		users, err = s.repo.CountManagedUsers(gctx, scope)
		return err
	})
	g.Go(func() (err error) {
		bookings, revenue, err = s.repo.BookingTotals(gctx, scope)
		return err
	})
	g.Go(func() (err error) {
		recent, err = s.repo.RecentEvents(gctx, scope, recentEventsLimit)
		return err
	})
	g.Go(func() (err error) {
		log, err = s.repo.RecentActivity(gctx, activity, recentActivityLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("sales: dashboard: %w", err)
	}
	if recent == nil {
		recent = []RecentEvent{}
	}
	if log == nil {
		log = []Activity{}
	}

	label := func(mine, all string) string {
		if own {
			return mine
		}
		return all
	}
	return Dashboard{
		Stats: []Stat{
			{Label: label("My Events", "Total Events"), Value: s.printer.Sprintf("%d", events), Icon: "Ticket"},
			{Label: label("Managed Users", "Total Admins"), Value: s.printer.Sprintf("%d", users), Icon: "Users"},
			{Label: label("My Bookings", "Total Bookings"), Value: s.printer.Sprintf("%d", bookings), Icon: "BarChart3"},
			{Label: label("My Revenue", "Total Revenue"), Value: s.FormatMoney(revenue), Icon: "TrendingUp"},
		},
		RecentEvents:   recent,
		RecentActivity: log,
	}, nil
}

// FormatMoney renders an amount in dollars with thousands separators.
func (s *Service) FormatMoney(v float64) string {
	out := s.printer.Sprintf("%.2f", math.Abs(v))
	if v < 0 {
		return "-$" + out
	}
	return "$" + out
}
