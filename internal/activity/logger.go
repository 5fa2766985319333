// Package activity appends the audit trail of financial actions.
package activity

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/idhash"
	"fee-reinvestor/internal/observability"
	"fee-reinvestor/internal/storage"
)

// Entry describes one action to record.
type Entry struct {
	PassID      string
	WalletID    string
	Type        domain.ActivityType
	Description string
	TokenName   string
	Signature   string
	AmountSOL   decimal.Decimal
	// Seq separates records of the same type within one pass and wallet.
	Seq int
}

// Logger writes activity records. Writes never fail the caller: an audit
// failure must not undo or block a financial action that already happened.
type Logger struct {
	store  storage.ActivityStore
	logger *zap.Logger
	now    func() time.Time
}

// NewLogger creates a new activity logger.
func NewLogger(store storage.ActivityStore, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{
		store:  store,
		logger: logger.Named("activity"),
		now:    time.Now,
	}
}

// Log appends e and returns the record it built. Store errors are logged
// and counted, never returned.
func (l *Logger) Log(ctx context.Context, e Entry) *domain.ActivityRecord {
	rec := &domain.ActivityRecord{
		ID:          idhash.ComputeActivityID(e.PassID, e.WalletID, e.Type, e.Seq),
		WalletID:    e.WalletID,
		Type:        e.Type,
		Description: e.Description,
		TokenName:   e.TokenName,
		Signature:   e.Signature,
		AmountSOL:   e.AmountSOL,
		CreatedAt:   l.now().UTC(),
	}

	if err := l.store.Insert(ctx, rec); err != nil {
		observability.RecordActivityDropped()
		l.logger.Warn("activity write failed",
			zap.String("wallet_id", rec.WalletID),
			zap.String("type", string(rec.Type)),
			zap.String("signature", rec.Signature),
			zap.Error(err))
	}
	return rec
}
