// Package notify defines the outbound notification surface. Dispatch happens
// after the financial operation commits; a delivery failure never rolls the
// operation back.
package notify

import (
	"context"

	"github.com/terangapay/ledger-engine/internal/app/domain/journal"
	"github.com/terangapay/ledger-engine/pkg/logger"
)

// Event names the completed operation a notification describes.
type Event string

const (
	EventTransferCompleted  Event = "transfer.completed"
	EventDebtSettled        Event = "debt.settled"
	EventContributionPaid   Event = "tontine.contribution.paid"
	EventRoundDistributed   Event = "tontine.round.distributed"
	EventRoundBlocked       Event = "tontine.round.blocked"
	EventPenaltyAssessed    Event = "tontine.penalty.assessed"
	EventPenaltyPaid        Event = "tontine.penalty.paid"
)

// Dispatcher delivers best-effort notifications to interested actors.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event, actorID string, entry journal.Entry)
}

// LogDispatcher writes notifications to the log. It stands in for the push
// delivery collaborator, which is outside the engine.
type LogDispatcher struct {
	log *logger.Logger
}

// NewLogDispatcher constructs a logging dispatcher.
func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	if log == nil {
		log = logger.NewDefault("notify")
	}
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Dispatch(_ context.Context, event Event, actorID string, entry journal.Entry) {
	d.log.Info("notification dispatched",
		"event", string(event), "actor", actorID, "entry", entry.ID, "amount", entry.Amount.String())
}

// Noop drops every notification.
type Noop struct{}

func (Noop) Dispatch(context.Context, Event, string, journal.Entry) {}
