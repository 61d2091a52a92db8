package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/repository"
)

const (
	defaultMaxRetries   = 5
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

var (
	ErrBadgeInactive          = errors.New("badge inactive")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrDuplicateReference     = repository.ErrDuplicateReference
	ErrTopUpLimitExceeded     = errors.New("top-up limit exceeded")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrMissingReference       = errors.New("missing reference")
	ErrInvalidCursor          = errors.New("invalid cursor")
	ErrUnknownTransaction     = errors.New("unknown transaction")

	// errCommitRaced marks a commit that lost to another writer of the same
	// badge; the operation restarts from the read.
	errCommitRaced = errors.New("commit raced")
)

type LedgerRepository interface {
	FindAccount(ctx context.Context, badgeID uint) (domain.BadgeAccount, error)
	FindAccounts(ctx context.Context, badgeIDs []uint) (map[uint]domain.BadgeAccount, error)
	FindByReference(ctx context.Context, badgeID uint, reference string) (domain.Transaction, error)
	Commit(ctx context.Context, expectedVersion int64, txn domain.Transaction) (domain.Transaction, error)
	History(ctx context.Context, badgeID uint, beforeID uint64, limit int) ([]domain.Transaction, error)
	HistoryByMember(ctx context.Context, associationID, memberID uint, beforeID uint64, limit int) ([]domain.Transaction, error)
	HistoryByAssociation(ctx context.Context, associationID uint, beforeID uint64, limit int) ([]domain.Transaction, error)
	FindTransaction(ctx context.Context, associationID uint, id uint64) (domain.Transaction, error)
	Snapshot(ctx context.Context, badgeID uint) (domain.LedgerSnapshot, error)
	ActiveBadgeIDs(ctx context.Context) ([]uint, error)
}

type BadgeFinder interface {
	FindLiveByTag(ctx context.Context, tagID string) (domain.Badge, error)
}

type LedgerDirectory interface {
	FindByID(ctx context.Context, id uint) (domain.Member, error)
	FindAssociation(ctx context.Context, id uint) (domain.Association, error)
}

// LedgerSettings are the reloadable knobs of the ledger.
type LedgerSettings struct {
	Policy          domain.Policy
	MaxRetries      int
	HistoryMaxLimit int
}

// LedgerRequest is one balance mutation. Amount is positive for charge and
// top-up and signed for adjust.
type LedgerRequest struct {
	TagID           string
	Amount          decimal.Decimal
	Reference       string
	Note            string
	ExpectedVersion *int64
	Actor           domain.Actor
}

type LedgerService struct {
	repo         LedgerRepository
	badges       BadgeFinder
	directory    LedgerDirectory
	tracer       trace.Tracer
	now          func() time.Time

	mu       sync.RWMutex
	settings LedgerSettings
}

func NewLedgerService(repo LedgerRepository, badges BadgeFinder, directory LedgerDirectory, settings LedgerSettings) *LedgerService {
	s := &LedgerService{
		repo:         repo,
		badges:       badges,
		directory:    directory,
		tracer:       otel.Tracer("github.com/bartime/bartime-api/internal/service/ledger"),
		now:          func() time.Time { return time.Now().UTC() },
	}
	s.Reconfigure(settings)

	return s
}

// Reconfigure swaps the ledger settings. Operations already running keep the
// settings they started with.
func (s *LedgerService) Reconfigure(settings LedgerSettings) {
	if settings.MaxRetries <= 0 {
		settings.MaxRetries = defaultMaxRetries
	}
	if settings.HistoryMaxLimit <= 0 {
		settings.HistoryMaxLimit = maxHistoryLimit
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
}

func (s *LedgerService) Settings() LedgerSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.settings
}

// Charge debits amount from the badge as a purchase.
func (s *LedgerService) Charge(ctx context.Context, req LedgerRequest) (domain.LedgerResult, error) {
	if err := requirePositive(req); err != nil {
		return domain.LedgerResult{}, err
	}

	return s.apply(ctx, "ledger.charge", domain.TransactionPurchase, req.Amount.Neg(), req)
}

// TopUp credits amount to the badge.
func (s *LedgerService) TopUp(ctx context.Context, req LedgerRequest) (domain.LedgerResult, error) {
	if err := requirePositive(req); err != nil {
		return domain.LedgerResult{}, err
	}

	return s.apply(ctx, "ledger.topup", domain.TransactionTopUp, req.Amount, req)
}

// Adjust records an administrative correction. Adjustments are not bound by
// the association's floor or top-up ceiling. The caller is trusted to have
// authorized req.Actor.
func (s *LedgerService) Adjust(ctx context.Context, req LedgerRequest) (domain.LedgerResult, error) {
	if req.Amount.IsZero() || !domain.IsCents(req.Amount) || req.Amount.Abs().GreaterThan(domain.MaxAmount) {
		return domain.LedgerResult{}, ErrInvalidAmount
	}
	if req.Reference == "" {
		req.Reference = uuid.NewString()
	}

	return s.apply(ctx, "ledger.adjust", domain.TransactionAdjustment, req.Amount, req)
}

func requirePositive(req LedgerRequest) error {
	if !req.Amount.IsPositive() || !domain.IsCents(req.Amount) || req.Amount.GreaterThan(domain.MaxAmount) {
		return ErrInvalidAmount
	}
	if req.Reference == "" {
		return ErrMissingReference
	}

	return nil
}

// apply runs read version, compute, conditional write and append as one unit,
// restarting from the read when another writer moved the version first.
func (s *LedgerService) apply(ctx context.Context, name string, txnType domain.TransactionType, signed decimal.Decimal, req LedgerRequest) (domain.LedgerResult, error) {
	ctx, span := s.tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("badge.tag_id", req.TagID),
			attribute.String("ledger.reference", req.Reference),
			attribute.String("ledger.amount", signed.StringFixed(2)),
			attribute.Int("actor.id", int(req.Actor.ID)),
		),
	)
	defer span.End()

	settings := s.Settings()

	for attempt := 0; ; attempt++ {
		result, err := s.attempt(ctx, txnType, signed, req)
		if err == nil {
			span.SetAttributes(
				attribute.Int("ledger.attempts", attempt+1),
				attribute.Bool("ledger.replayed", result.Replayed),
				attribute.Int64("account.version", result.Version),
			)
			return result, nil
		}

		if !errors.Is(err, errCommitRaced) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return domain.LedgerResult{}, err
		}

		span.AddEvent("conflict.detected", trace.WithAttributes(attribute.Int("attempt", attempt+1)))

		if req.ExpectedVersion != nil || attempt >= settings.MaxRetries {
			span.SetStatus(codes.Error, ErrConcurrentModification.Error())
			return domain.LedgerResult{}, ErrConcurrentModification
		}
	}
}

func (s *LedgerService) attempt(ctx context.Context, txnType domain.TransactionType, signed decimal.Decimal, req LedgerRequest) (domain.LedgerResult, error) {
	badge, account, err := s.load(ctx, req.Actor.AssociationID, req.TagID)
	if err != nil {
		return domain.LedgerResult{}, err
	}

	existing, err := s.repo.FindByReference(ctx, badge.ID, req.Reference)
	switch {
	case err == nil:
		return replay(existing, domain.Transaction{Type: txnType, Amount: signed})
	case !errors.Is(err, repository.ErrTransactionNotFound):
		return domain.LedgerResult{}, fmt.Errorf("s.repo.FindByReference -> %w", err)
	}

	if !badge.IsActive() {
		return domain.LedgerResult{}, ErrBadgeInactive
	}

	if req.ExpectedVersion != nil && *req.ExpectedVersion != account.Version {
		return domain.LedgerResult{}, ErrConcurrentModification
	}

	resulting := account.Balance.Add(signed)
	if resulting.GreaterThan(domain.MaxBalance) {
		return domain.LedgerResult{}, ErrTopUpLimitExceeded
	}
	if resulting.LessThan(domain.MaxBalance.Neg()) {
		return domain.LedgerResult{}, ErrInsufficientBalance
	}

	if txnType != domain.TransactionAdjustment {
		policy, err := s.policyFor(ctx, badge.AssociationID)
		if err != nil {
			return domain.LedgerResult{}, err
		}
		if signed.IsNegative() && !policy.AllowsDebit(account.Balance, signed.Neg()) {
			return domain.LedgerResult{}, ErrInsufficientBalance
		}
		if signed.IsPositive() && !policy.AllowsCredit(account.Balance, signed) {
			return domain.LedgerResult{}, ErrTopUpLimitExceeded
		}
	}

	committed, err := s.repo.Commit(ctx, account.Version, domain.Transaction{
		BadgeID:          badge.ID,
		TagID:            badge.TagID,
		MemberID:         badge.MemberID,
		ActorID:          req.Actor.ID,
		Type:             txnType,
		Amount:           signed,
		Reference:        req.Reference,
		Note:             req.Note,
		ResultingBalance: resulting,
		Version:          account.Version + 1,
		CreatedAt:        s.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict), errors.Is(err, repository.ErrDuplicateReference):
			return domain.LedgerResult{}, errCommitRaced
		case errors.Is(err, repository.ErrBadgeNotActive):
			return domain.LedgerResult{}, ErrBadgeInactive
		case errors.Is(err, repository.ErrBadgeNotFound):
			return domain.LedgerResult{}, ErrUnknownBadge
		}
		return domain.LedgerResult{}, fmt.Errorf("s.repo.Commit -> %w", err)
	}

	return domain.LedgerResult{
		Transaction: committed,
		Balance:     committed.ResultingBalance,
		Version:     committed.Version,
	}, nil
}

// replay answers a resent request with the result it originally produced.
func replay(existing, requested domain.Transaction) (domain.LedgerResult, error) {
	if !existing.SameIntent(requested) {
		return domain.LedgerResult{}, fmt.Errorf("%w: %s", ErrDuplicateReference, existing.Reference)
	}

	return domain.LedgerResult{
		Transaction: existing,
		Balance:     existing.ResultingBalance,
		Version:     existing.Version,
		Replayed:    true,
	}, nil
}

func (s *LedgerService) load(ctx context.Context, associationID uint, tagID string) (domain.Badge, domain.BadgeAccount, error) {
	badge, err := s.badges.FindLiveByTag(ctx, tagID)
	if err != nil {
		if errors.Is(err, repository.ErrBadgeNotFound) {
			return domain.Badge{}, domain.BadgeAccount{}, ErrUnknownBadge
		}
		return domain.Badge{}, domain.BadgeAccount{}, fmt.Errorf("s.badges.FindLiveByTag -> %w", err)
	}
	if badge.AssociationID != associationID {
		return domain.Badge{}, domain.BadgeAccount{}, ErrUnknownBadge
	}

	account, err := s.repo.FindAccount(ctx, badge.ID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return domain.Badge{}, domain.BadgeAccount{}, ErrUnknownBadge
		}
		return domain.Badge{}, domain.BadgeAccount{}, fmt.Errorf("s.repo.FindAccount -> %w", err)
	}

	return badge, account, nil
}

// policyFor resolves the balance bounds of an association. Overdraft must be
// switched on explicitly; otherwise the configured default floor applies.
func (s *LedgerService) policyFor(ctx context.Context, associationID uint) (domain.Policy, error) {
	policy := s.Settings().Policy

	association, err := s.directory.FindAssociation(ctx, associationID)
	if err != nil {
		return domain.Policy{}, fmt.Errorf("s.directory.FindAssociation -> %w", err)
	}

	if association.AllowOverdraft {
		policy.Floor = association.OverdraftLimit.Abs().Neg()
	}
	if association.TopUpCeiling != nil {
		ceiling := *association.TopUpCeiling
		policy.TopUpCeiling = &ceiling
	}

	return policy, nil
}

func (s *LedgerService) GetBalance(ctx context.Context, associationID uint, tagID string) (domain.Balance, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.get_balance",
		trace.WithAttributes(attribute.String("badge.tag_id", tagID)),
	)
	defer span.End()

	badge, account, err := s.load(ctx, associationID, tagID)
	if err != nil {
		span.RecordError(err)
		return domain.Balance{}, err
	}

	span.SetAttributes(attribute.Int64("account.version", account.Version))

	return domain.Balance{
		TagID:   badge.TagID,
		Balance: account.Balance,
		Version: account.Version,
	}, nil
}

// History pages through a badge's transactions, newest first. The cursor is
// opaque to callers and stays valid while new transactions are appended.
func (s *LedgerService) History(ctx context.Context, associationID uint, tagID string, limit int, cursor string) (domain.HistoryPage, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.history",
		trace.WithAttributes(
			attribute.String("badge.tag_id", tagID),
			attribute.Int("history.limit", limit),
		),
	)
	defer span.End()

	beforeID, err := DecodeCursor(cursor)
	if err != nil {
		return domain.HistoryPage{}, err
	}

	badge, _, err := s.load(ctx, associationID, tagID)
	if err != nil {
		span.RecordError(err)
		return domain.HistoryPage{}, err
	}

	return s.page(span, limit, func(limit int) ([]domain.Transaction, error) {
		txns, err := s.repo.History(ctx, badge.ID, beforeID, limit)
		if err != nil {
			return nil, fmt.Errorf("s.repo.History -> %w", err)
		}
		return txns, nil
	})
}

// MemberHistory pages through every transaction of a member, including those
// on badges since removed.
func (s *LedgerService) MemberHistory(ctx context.Context, associationID, memberID uint, limit int, cursor string) (domain.HistoryPage, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.member_history",
		trace.WithAttributes(
			attribute.Int("member.id", int(memberID)),
			attribute.Int("history.limit", limit),
		),
	)
	defer span.End()

	beforeID, err := DecodeCursor(cursor)
	if err != nil {
		return domain.HistoryPage{}, err
	}

	member, err := s.directory.FindByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return domain.HistoryPage{}, ErrUnknownMember
		}
		return domain.HistoryPage{}, fmt.Errorf("s.directory.FindByID -> %w", err)
	}
	if member.AssociationID != associationID {
		return domain.HistoryPage{}, ErrUnknownMember
	}

	return s.page(span, limit, func(limit int) ([]domain.Transaction, error) {
		txns, err := s.repo.HistoryByMember(ctx, associationID, memberID, beforeID, limit)
		if err != nil {
			return nil, fmt.Errorf("s.repo.HistoryByMember -> %w", err)
		}
		return txns, nil
	})
}

// AssociationHistory pages through every transaction of the association.
func (s *LedgerService) AssociationHistory(ctx context.Context, associationID uint, limit int, cursor string) (domain.HistoryPage, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.association_history",
		trace.WithAttributes(attribute.Int("history.limit", limit)),
	)
	defer span.End()

	beforeID, err := DecodeCursor(cursor)
	if err != nil {
		return domain.HistoryPage{}, err
	}

	return s.page(span, limit, func(limit int) ([]domain.Transaction, error) {
		txns, err := s.repo.HistoryByAssociation(ctx, associationID, beforeID, limit)
		if err != nil {
			return nil, fmt.Errorf("s.repo.HistoryByAssociation -> %w", err)
		}
		return txns, nil
	})
}

func (s *LedgerService) GetTransaction(ctx context.Context, associationID uint, id uint64) (domain.Transaction, error) {
	txn, err := s.repo.FindTransaction(ctx, associationID, id)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return domain.Transaction{}, ErrUnknownTransaction
		}
		return domain.Transaction{}, fmt.Errorf("s.repo.FindTransaction -> %w", err)
	}

	return txn, nil
}

// page clamps limit, fetches one extra row to learn whether an older page
// exists, and builds the cursor from the last row returned.
func (s *LedgerService) page(span trace.Span, limit int, fetch func(limit int) ([]domain.Transaction, error)) (domain.HistoryPage, error) {
	maxLimit := s.Settings().HistoryMaxLimit
	switch {
	case limit <= 0:
		limit = min(defaultHistoryLimit, maxLimit)
	case limit > maxLimit:
		limit = maxLimit
	}

	txns, err := fetch(limit + 1)
	if err != nil {
		span.RecordError(err)
		return domain.HistoryPage{}, err
	}

	page := domain.HistoryPage{Transactions: txns}
	if len(txns) > limit {
		page.Transactions = txns[:limit]
		page.NextCursor = EncodeCursor(page.Transactions[limit-1].ID)
	}

	span.SetAttributes(attribute.Int("history.returned", len(page.Transactions)))

	return page, nil
}

func EncodeCursor(beforeID uint64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatUint(beforeID, 10)))
}

func DecodeCursor(cursor string) (uint64, error) {
	if cursor == "" {
		return 0, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, ErrInvalidCursor
	}

	beforeID, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil || beforeID == 0 {
		return 0, ErrInvalidCursor
	}

	return beforeID, nil
}

// Reconcile folds the badge's log and compares it with the cached account.
func (s *LedgerService) Reconcile(ctx context.Context, associationID uint, tagID string) (domain.Reconciliation, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.reconcile",
		trace.WithAttributes(attribute.String("badge.tag_id", tagID)),
	)
	defer span.End()

	badge, _, err := s.load(ctx, associationID, tagID)
	if err != nil {
		span.RecordError(err)
		return domain.Reconciliation{}, err
	}

	rec, err := s.reconcileBadge(ctx, badge.ID)
	if err != nil {
		return domain.Reconciliation{}, err
	}
	rec.TagID = badge.TagID

	span.SetAttributes(attribute.Bool("reconcile.consistent", rec.Consistent))

	return rec, nil
}

// ReconcileAll checks every non-removed badge account.
func (s *LedgerService) ReconcileAll(ctx context.Context) ([]domain.Reconciliation, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.reconcile_all")
	defer span.End()

	ids, err := s.repo.ActiveBadgeIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("s.repo.ActiveBadgeIDs -> %w", err)
	}

	recs := make([]domain.Reconciliation, 0, len(ids))
	for _, id := range ids {
		rec, err := s.reconcileBadge(ctx, id)
		if errors.Is(err, repository.ErrAccountNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	span.SetAttributes(attribute.Int("reconcile.accounts", len(recs)))

	return recs, nil
}

func (s *LedgerService) reconcileBadge(ctx context.Context, badgeID uint) (domain.Reconciliation, error) {
	snap, err := s.repo.Snapshot(ctx, badgeID)
	if err != nil {
		return domain.Reconciliation{}, fmt.Errorf("s.repo.Snapshot -> %w", err)
	}

	return domain.Reconciliation{
		BadgeID:         badgeID,
		CachedBalance:   snap.Account.Balance,
		ReplayedBalance: snap.LogTotal,
		CachedVersion:   snap.Account.Version,
		LogLength:       snap.LogLength,
		Consistent:      snap.LogTotal.Equal(snap.Account.Balance) && snap.LogLength == snap.Account.Version,
	}, nil
}
