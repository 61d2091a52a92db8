package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionPurchase   TransactionType = "purchase"
	TransactionTopUp      TransactionType = "topup"
	TransactionAdjustment TransactionType = "adjustment"
)

var (
	// MaxAmount bounds a single ledger operation.
	MaxAmount = decimal.New(10000, 0)
	// MaxBalance is the largest magnitude a numeric(12,2) balance can hold.
	MaxBalance = decimal.New(999999999999, -2)
)

// BadgeAccount caches the running total of a badge's transaction log.
type BadgeAccount struct {
	BadgeID   uint            `json:"badge_id"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Transaction struct {
	ID               uint64          `json:"id"`
	BadgeID          uint            `json:"badge_id"`
	TagID            string          `json:"tag_id"`
	MemberID         uint            `json:"member_id"`
	ActorID          uint            `json:"actor_id"`
	Type             TransactionType `json:"type"`
	Amount           decimal.Decimal `json:"amount"`
	Reference        string          `json:"reference"`
	Note             string          `json:"note,omitempty"`
	ResultingBalance decimal.Decimal `json:"resulting_balance"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
}

// SameIntent reports whether other asks for the same effect as t.
func (t Transaction) SameIntent(other Transaction) bool {
	return t.Type == other.Type && t.Amount.Equal(other.Amount)
}

type LedgerResult struct {
	Transaction Transaction     `json:"transaction"`
	Balance     decimal.Decimal `json:"balance"`
	Version     int64           `json:"version"`
	Replayed    bool            `json:"replayed"`
}

type Balance struct {
	TagID   string          `json:"tag_id"`
	Balance decimal.Decimal `json:"balance"`
	Version int64           `json:"version"`
}

type HistoryPage struct {
	Transactions []Transaction `json:"transactions"`
	NextCursor   string        `json:"next_cursor,omitempty"`
}

// LedgerSnapshot is an account read together with the fold of its log.
type LedgerSnapshot struct {
	Account   BadgeAccount
	LogTotal  decimal.Decimal
	LogLength int64
}

type Reconciliation struct {
	BadgeID         uint            `json:"badge_id"`
	TagID           string          `json:"tag_id,omitempty"`
	CachedBalance   decimal.Decimal `json:"cached_balance"`
	ReplayedBalance decimal.Decimal `json:"replayed_balance"`
	CachedVersion   int64           `json:"cached_version"`
	LogLength       int64           `json:"log_length"`
	Consistent      bool            `json:"consistent"`
}

// Policy bounds the balance a ledger operation may leave behind.
type Policy struct {
	Floor        decimal.Decimal
	TopUpCeiling *decimal.Decimal
}

func (p Policy) AllowsDebit(balance, amount decimal.Decimal) bool {
	return !balance.Sub(amount).LessThan(p.Floor)
}

func (p Policy) AllowsCredit(balance, amount decimal.Decimal) bool {
	if p.TopUpCeiling == nil {
		return true
	}

	return !balance.Add(amount).GreaterThan(*p.TopUpCeiling)
}

// IsCents reports whether d has at most two fraction digits.
func IsCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
