// Package client is the interactive cash-terminal front end. It only
// gathers input and renders results; every data operation goes through
// the shift engine and the routers behind it.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/chzyer/readline"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/wurt83ow/poskeeper-client/pkg/errs"
	"github.com/wurt83ow/poskeeper-client/pkg/shift"
)

type Terminal struct {
	rl     *readline.Instance
	engine *shift.Engine
	log    *logrus.Logger
}

func NewTerminal(engine *shift.Engine, log *logrus.Logger) (*Terminal, error) {
	rl, err := readline.New("> ")
	if err != nil {
		return nil, err
	}
	return &Terminal{rl: rl, engine: engine, log: log}, nil
}

func (t *Terminal) Close() {
	t.rl.Close()
}

// OpenShift prompts for the opening float and starts a shift.
func (t *Terminal) OpenShift(ctx context.Context) error {
	opening, err := t.promptAmount("Enter opening cash: ")
	if err != nil {
		return err
	}

	s, err := t.engine.StartShift(ctx, opening)
	if err != nil {
		return err
	}
	fmt.Printf("Shift %s opened with %s in the drawer\n", s.ID, s.OpeningCash.String())
	return nil
}

// CloseShift prompts for the counted cash and closes the active shift.
// If the count is off by more than the tolerance, it asks for an
// explanation and retries the close once.
func (t *Terminal) CloseShift(ctx context.Context) error {
	counted, err := t.promptAmount("Enter counted cash: ")
	if err != nil {
		return err
	}

	s, err := t.engine.EndShift(ctx, counted, "")
	if err == nil {
		fmt.Printf("Shift closed, variance %s\n", s.Variance.String())
		return nil
	}

	var re *errs.ReconciliationError
	if !errors.As(err, &re) {
		return err
	}

	t.rl.SetPrompt("Cash variance detected, enter an explanation: ")
	note, rerr := t.rl.Readline()
	if rerr != nil {
		return rerr
	}

	s, err = t.engine.EndShift(ctx, counted, note)
	if err != nil {
		return err
	}
	fmt.Printf("Shift flagged, variance %s (%s)\n", s.Variance.String(), s.VarianceNote)
	return nil
}

// ShiftStatus prints the active shift and its expected cash so far.
func (t *Terminal) ShiftStatus(ctx context.Context) error {
	s, exists, err := t.engine.ActiveShift(ctx)
	if err != nil {
		return err
	}
	if !exists {
		fmt.Println("No active shift")
		return nil
	}
	expected := t.engine.CalculateExpectedCash(ctx, s)
	fmt.Printf("Shift %s open since %s, expected cash %s\n",
		s.ID, s.StartTime.Format("15:04:05"), expected.String())
	return nil
}

func (t *Terminal) promptAmount(prompt string) (decimal.Decimal, error) {
	t.rl.SetPrompt(prompt)
	line, err := t.rl.Readline()
	if err != nil {
		return decimal.Zero, err
	}
	amount, err := decimal.NewFromString(line)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a valid amount: %q", line)
	}
	return amount, nil
}
