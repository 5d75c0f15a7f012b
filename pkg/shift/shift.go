// Package shift tracks cash-register sessions and reconciles counted
// cash against the transaction history at close.
package shift

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/wurt83ow/poskeeper-client/pkg/appcontext"
	"github.com/wurt83ow/poskeeper-client/pkg/dualstore"
	"github.com/wurt83ow/poskeeper-client/pkg/errs"
	"github.com/wurt83ow/poskeeper-client/pkg/models"
)

// tolerance absorbs floating rounding in cash totals. It is not a
// business threshold and is deliberately not configurable.
var tolerance = decimal.NewFromFloat(0.01)

type Engine struct {
	shifts  *dualstore.Router[models.Shift]
	txns    *dualstore.Router[models.Transaction]
	maxCash decimal.Decimal
	log     *logrus.Logger
	now     func() time.Time
}

func NewEngine(shifts *dualstore.Router[models.Shift], txns *dualstore.Router[models.Transaction],
	maxCash decimal.Decimal, log *logrus.Logger) *Engine {
	return &Engine{
		shifts:  shifts,
		txns:    txns,
		maxCash: maxCash,
		log:     log,
		now:     time.Now,
	}
}

// ActiveShift returns the open shift of the session user, if any.
func (e *Engine) ActiveShift(ctx context.Context) (models.Shift, bool, error) {
	_, userID := appcontext.Session(ctx)
	shifts, err := e.shifts.List(ctx, func(s models.Shift) bool {
		return s.Status == models.ShiftActive && s.UserID == userID
	})
	if err != nil {
		return models.Shift{}, false, err
	}
	if len(shifts) == 0 {
		return models.Shift{}, false, nil
	}
	return shifts[0], true, nil
}

// StartShift opens a new cash session. At most one active shift may
// exist per (tenant, user); the local store backs the check with a
// unique index so two concurrent opens cannot both commit.
func (e *Engine) StartShift(ctx context.Context, openingCash decimal.Decimal) (models.Shift, error) {
	tenantID, userID := appcontext.Session(ctx)
	if tenantID == "" || userID == "" {
		return models.Shift{}, errs.Authorization("no session")
	}

	if openingCash.IsNegative() {
		return models.Shift{}, errs.Reconciliation("opening cash cannot be negative")
	}
	if openingCash.GreaterThan(e.maxCash) {
		return models.Shift{}, errs.Reconciliation("opening cash exceeds the allowed maximum")
	}

	if _, exists, err := e.ActiveShift(ctx); err != nil {
		return models.Shift{}, err
	} else if exists {
		return models.Shift{}, errs.Reconciliation("an active shift already exists for this user")
	}

	shift := models.Shift{
		ID:          models.NewID(),
		TenantID:    tenantID,
		UserID:      userID,
		StartTime:   e.now().UTC(),
		OpeningCash: openingCash,
		Status:      models.ShiftActive,
	}

	created, err := e.shifts.Create(ctx, shift)
	if err != nil {
		return models.Shift{}, err
	}

	e.log.WithFields(logrus.Fields{
		"shift_id":     created.ID,
		"user_id":      userID,
		"opening_cash": openingCash.String(),
	}).Info("shift opened")
	return created, nil
}

// CalculateExpectedCash sums the shift's cash transactions on top of the
// opening float. A failed stats read falls back to the opening cash
// alone: reconciliation must never block on transaction history.
func (e *Engine) CalculateExpectedCash(ctx context.Context, shift models.Shift) decimal.Decimal {
	txns, err := e.txns.List(ctx, func(t models.Transaction) bool {
		return t.ShiftID == shift.ID && t.PaymentMethod == models.PaymentCash
	})
	if err != nil {
		e.log.WithField("shift_id", shift.ID).WithError(err).
			Warn("transaction history unavailable, expected cash falls back to opening cash")
		return shift.OpeningCash
	}

	expected := shift.OpeningCash
	for _, t := range txns {
		expected = expected.Add(t.Total)
	}
	return expected
}

// EndShift closes the active shift, computing the variance between
// counted and expected cash. A variance outside tolerance needs an
// explanation and flags the shift. The transition is terminal: once it
// persists, no active shift remains for the user.
func (e *Engine) EndShift(ctx context.Context, closingCash decimal.Decimal, varianceNote string) (models.Shift, error) {
	shift, exists, err := e.ActiveShift(ctx)
	if err != nil {
		return models.Shift{}, err
	}
	if !exists {
		return models.Shift{}, errs.Reconciliation("no active shift to close")
	}

	if closingCash.IsNegative() {
		return models.Shift{}, errs.Reconciliation("closing cash cannot be negative")
	}
	if closingCash.GreaterThan(e.maxCash) {
		return models.Shift{}, errs.Reconciliation("closing cash exceeds the allowed maximum")
	}

	expected := e.CalculateExpectedCash(ctx, shift)
	variance := closingCash.Sub(expected)

	outsideTolerance := variance.Abs().GreaterThan(tolerance)
	if outsideTolerance && varianceNote == "" {
		return models.Shift{}, errs.Reconciliation("cash variance requires an explanation")
	}

	endTime := e.now().UTC()
	shift.EndTime = &endTime
	shift.ClosingCash = &closingCash
	shift.ExpectedCash = &expected
	shift.Variance = &variance
	shift.VarianceNote = varianceNote
	if outsideTolerance {
		shift.Status = models.ShiftFlagged
	} else {
		shift.Status = models.ShiftClosed
	}

	closed, err := e.shifts.Update(ctx, shift)
	if err != nil {
		return models.Shift{}, err
	}

	e.log.WithFields(logrus.Fields{
		"shift_id":      closed.ID,
		"status":        closed.Status,
		"expected_cash": expected.String(),
		"closing_cash":  closingCash.String(),
		"variance":      variance.String(),
	}).Info("shift closed")
	return closed, nil
}
