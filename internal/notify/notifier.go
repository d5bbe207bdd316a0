// Package notify delivers operator alerts for pipeline failures over
// Telegram and Discord. Alerts are filtered by event type so operators can
// subscribe to only the failures they act on.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Event types emitted by this backend.
const (
	EventFetchFailure  = "fetch_failure"
	EventLedgerCorrupt = "ledger_corrupt"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel in logs, e.g. "telegram".
	Name() string
}

// Notifier fans an alert out to every configured sender. One sender failing
// does not stop delivery to the rest. An empty event filter allows
// everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders, forwarding
// only the listed event types (all types when the list is empty).
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// NotifyFetchFailure alerts operators that a region aggregation cycle
// failed. Delivery errors are logged, not returned: a broken webhook must
// never fail the pipeline.
func (n *Notifier) NotifyFetchFailure(ctx context.Context, regionID int32, err error) {
	n.notify(ctx, EventFetchFailure,
		"Region fetch failed",
		fmt.Sprintf("Region %d could not be aggregated: %v", regionID, err),
	)
}

// NotifyLedgerCorrupt alerts operators that profit matching found an
// inconsistent ledger for a character. This needs manual inspection; the
// engine will keep refusing the affected item types until it is resolved.
func (n *Notifier) NotifyLedgerCorrupt(ctx context.Context, characterID int64, err error) {
	n.notify(ctx, EventLedgerCorrupt,
		"Profit ledger inconsistent",
		fmt.Sprintf("Character %d: %v", characterID, err),
	)
}

func (n *Notifier) notify(ctx context.Context, event, title, message string) {
	if len(n.events) > 0 && !n.events[event] {
		return
	}

	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.Error("sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
}
