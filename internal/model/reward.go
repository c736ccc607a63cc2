package model

import "time"

type Reward struct {
	ID          int64     `json:"id"`
	ParentID    int64     `json:"parent_id"`
	Description string    `json:"description"`
	PointCost   int       `json:"point_cost"`
	CreatedAt   time.Time `json:"created_at"`
}

// Redemption is an append-only record of a successful reward claim. The
// description and cost are snapshots taken at claim time, not live
// references, so the record survives deletion of the reward.
type Redemption struct {
	ID             int64     `json:"id"`
	RewardID       int64     `json:"reward_id"`
	ChildID        int64     `json:"child_id"`
	ParentID       int64     `json:"parent_id"`
	Description    string    `json:"description"`
	PointCost      int       `json:"point_cost"`
	IdempotencyKey string    `json:"idempotency_key"`
	RedeemedAt     time.Time `json:"redeemed_at"`
}
