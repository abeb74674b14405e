package model

import "time"

// PointReason classifies a ledger row.
type PointReason string

const (
	ReasonTaskCompleted PointReason = "task_completed"
	ReasonTaskReverted  PointReason = "task_reverted"
	ReasonPenalty       PointReason = "penalty"
	ReasonPurchase      PointReason = "purchase"
	ReasonAdminAdjust   PointReason = "admin_adjust"
	ReasonAdminGift     PointReason = "admin_gift"
	ReasonItemUsed      PointReason = "item_used"
)

type PointEvent struct {
	ID        int64       `json:"id"`
	MemberID  int64       `json:"member_id"`
	Delta     int         `json:"delta"`
	Reason    PointReason `json:"reason"`
	TaskID    *int64      `json:"task_id,omitempty"`
	ItemID    *int64      `json:"item_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
