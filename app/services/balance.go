package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// LedgerBalanceService resolves outstanding party balances for the
// template renderer's ledger balance virtual field. When the ledger
// table is not provisioned the service reports itself unavailable and
// the renderer falls through to a plain field lookup.
type LedgerBalanceService struct {
	db      *gorm.DB
	enabled bool
}

func NewLedgerBalanceService(db *gorm.DB, enabled bool) *LedgerBalanceService {
	return &LedgerBalanceService{db: db, enabled: enabled}
}

// Available reports whether balance lookups can be served
func (s *LedgerBalanceService) Available() bool {
	return s.enabled && s.db != nil
}

// PartyBalance returns the net debit balance for the party, or false
// when the lookup cannot be served.
func (s *LedgerBalanceService) PartyBalance(ctx context.Context, partyType, party string) (float64, bool) {
	if !s.Available() {
		return 0, false
	}

	var balance float64
	err := s.db.WithContext(ctx).
		Raw(`SELECT COALESCE(SUM(debit - credit), 0)
		     FROM ledger_entries
		     WHERE party_type = ? AND party = ? AND is_cancelled = false`,
			partyType, party).
		Scan(&balance).Error
	if err != nil {
		return 0, false
	}
	return balance, true
}

// FormatMoney renders a balance the way templates expect it
func FormatMoney(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
