package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/chorequest/internal/clock"
	"github.com/dukerupert/chorequest/internal/model"
	"github.com/dukerupert/chorequest/internal/store"
)

// Notifier fans payloads out to every device of a member or of the admins.
// With a nil sender every method is a no-op.
type Notifier struct {
	sender Sender
	subs   *store.PushStore
	tasks  *store.TaskStore
	clock  clock.Clock
	logger *slog.Logger
}

func NewNotifier(sender Sender, subs *store.PushStore, tasks *store.TaskStore, clk clock.Clock, logger *slog.Logger) *Notifier {
	return &Notifier{sender: sender, subs: subs, tasks: tasks, clock: clk, logger: logger}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.sender != nil
}

// deliver sends to each subscription, dropping the ones the push service
// reports as gone. It returns how many sends succeeded.
func (n *Notifier) deliver(ctx context.Context, subs []model.PushSubscription, payload Payload) int {
	sent := 0
	for i := range subs {
		sub := &subs[i]
		err := n.sender.Send(ctx, sub, payload)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, ErrExpired):
			if err := n.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
				n.logger.Warn("delete expired subscription", "subscription_id", sub.ID, "error", err)
			}
		default:
			n.logger.Warn("push send failed", "subscription_id", sub.ID, "error", err)
		}
	}
	return sent
}

func (n *Notifier) NotifyMember(ctx context.Context, memberID int64, payload Payload) (int, error) {
	if !n.Enabled() {
		return 0, nil
	}
	subs, err := n.subs.ListByMember(memberID)
	if err != nil {
		return 0, err
	}
	return n.deliver(ctx, subs, payload), nil
}

func (n *Notifier) NotifyUser(ctx context.Context, userID int64, payload Payload) (int, error) {
	if !n.Enabled() {
		return 0, nil
	}
	subs, err := n.subs.ListByUser(userID)
	if err != nil {
		return 0, err
	}
	return n.deliver(ctx, subs, payload), nil
}

func (n *Notifier) NotifyAdmins(ctx context.Context, payload Payload) (int, error) {
	if !n.Enabled() {
		return 0, nil
	}
	subs, err := n.subs.ListAdmins()
	if err != nil {
		return 0, err
	}
	return n.deliver(ctx, subs, payload), nil
}

// NotifyVoucherUsed tells the admins a member redeemed a voucher.
func (n *Notifier) NotifyVoucherUsed(ctx context.Context, member *model.FamilyMember, item *model.ShopItem) {
	if !n.Enabled() {
		return
	}
	payload := Payload{
		Title: "Voucher redeemed",
		Body:  fmt.Sprintf("%s used %s", member.Name, item.Name),
		URL:   "/admin",
		Tag:   fmt.Sprintf("voucher-%d", item.ID),
	}
	if _, err := n.NotifyAdmins(ctx, payload); err != nil {
		n.logger.Error("voucher notice failed", "member_id", member.ID, "error", err)
	}
}

// SendStreakWarnings warns every member who still has daily tasks open. Each
// member is warned at most once per day.
func (n *Notifier) SendStreakWarnings(ctx context.Context) (int, error) {
	if !n.Enabled() {
		return 0, nil
	}
	memberIDs, err := n.tasks.ListPendingDailyAssignees()
	if err != nil {
		return 0, err
	}

	today := n.clock.Today()
	warned := 0
	for _, id := range memberIDs {
		ref := fmt.Sprintf("streak-%d-%s", id, today)
		sent, err := n.subs.WasSent(model.NotifTypeStreakRisk, ref, 0)
		if err != nil {
			return warned, err
		}
		if sent {
			continue
		}

		payload := Payload{
			Title: "Your streak is at risk",
			Body:  "Finish today's daily tasks before midnight to keep your streak.",
			URL:   "/tasks",
			Tag:   "streak-risk",
		}
		if _, err := n.NotifyMember(ctx, id, payload); err != nil {
			n.logger.Warn("streak warning failed", "member_id", id, "error", err)
			continue
		}
		if err := n.subs.RecordSent(model.NotifTypeStreakRisk, ref, 0); err != nil {
			return warned, err
		}
		warned++
	}
	return warned, nil
}
