package services

import (
	"context"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"

	"github.com/shopspring/decimal"
)

// DashboardService assembles dashboard figures
type DashboardService struct {
	store repositories.Store
	clock Clock
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(store repositories.Store, clock Clock) *DashboardService {
	if clock == nil {
		clock = time.Now
	}
	return &DashboardService{store: store, clock: clock}
}

// ============================================================
// Member Dashboard
// ============================================================

// MemberDashboard is what every signed-in user sees
type MemberDashboard struct {
	OpenLoans      int64                         `json:"open_loans"`
	OverdueLoans   int64                         `json:"overdue_loans"`
	TotalPenalties string                        `json:"total_penalties"`
	RecentLoans    []*models.TransactionResponse `json:"recent_loans"`
}

// ============================================================
// Staff Dashboard
// ============================================================

// StaffDashboard adds catalog and circulation totals
type StaffDashboard struct {
	Catalog      *repositories.CatalogStats `json:"catalog"`
	OpenLoans    int64                      `json:"open_loans"`
	OverdueLoans int64                      `json:"overdue_loans"`
	TotalUsers   int64                      `json:"total_users"`
}

// Dashboard is the combined page model; Staff is nil for members
type Dashboard struct {
	Member *MemberDashboard `json:"member"`
	Staff  *StaffDashboard  `json:"staff,omitempty"`
}

// ForUser builds the dashboard for a user of the given role
func (s *DashboardService) ForUser(ctx context.Context, actor domain.Actor) (*Dashboard, error) {
	member, err := s.member(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	dash := &Dashboard{Member: member}
	if actor.Role.Can(domain.CapViewAllLoans) {
		if dash.Staff, err = s.staff(ctx); err != nil {
			return nil, err
		}
	}
	return dash, nil
}

func (s *DashboardService) member(ctx context.Context, userID uint) (*MemberDashboard, error) {
	today := domain.Today(s.clock())
	loans := s.store.Transactions()

	open, err := loans.CountOpen(ctx, repositories.TransactionFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	overdue, err := loans.CountOverdue(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	penalties, err := loans.SumPenalties(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, _, err := loans.List(ctx, repositories.TransactionFilter{UserID: userID}, 0, 5)
	if err != nil {
		return nil, err
	}

	return &MemberDashboard{
		OpenLoans:      open,
		OverdueLoans:   overdue,
		TotalPenalties: penalties.Round(2).StringFixed(2),
		RecentLoans:    models.ToTransactionResponses(recent),
	}, nil
}

func (s *DashboardService) staff(ctx context.Context) (*StaffDashboard, error) {
	today := domain.Today(s.clock())

	catalog, err := s.store.Books().Stats(ctx)
	if err != nil {
		return nil, err
	}
	open, err := s.store.Transactions().CountOpen(ctx, repositories.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	overdue, err := s.store.Transactions().CountOverdue(ctx, 0, today)
	if err != nil {
		return nil, err
	}
	users, err := s.store.Users().Count(ctx)
	if err != nil {
		return nil, err
	}

	return &StaffDashboard{
		Catalog:      catalog,
		OpenLoans:    open,
		OverdueLoans: overdue,
		TotalUsers:   users,
	}, nil
}

// accruedPenalty is what an open loan would be charged if returned on asOf
func accruedPenalty(policy domain.LendingPolicy, entry *models.Transaction, asOf time.Time) (int, decimal.Decimal) {
	return policy.Penalty(entry.DueDate, asOf)
}
