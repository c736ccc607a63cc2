package store

import (
	"database/sql"
	"fmt"

	"github.com/emiller/starjar/internal/model"
)

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

// --- Reward methods ---

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	err := scanner.Scan(&r.ID, &r.ParentID, &r.Description, &r.PointCost, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const rewardCols = `id, parent_id, description, point_cost, created_at`

func (s *RewardStore) Create(parentID int64, description string, pointCost int) (*model.Reward, error) {
	result, err := s.db.Exec(
		`INSERT INTO rewards (parent_id, description, point_cost) VALUES (?, ?, ?)`,
		parentID, description, pointCost,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) GetByID(id int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

func (s *RewardStore) ListByParent(parentID int64) ([]model.Reward, error) {
	rows, err := s.db.Query(
		`SELECT `+rewardCols+` FROM rewards WHERE parent_id = ? ORDER BY point_cost ASC, description ASC`,
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

// Delete removes a reward definition. Redemption history snapshots the
// description and cost, so existing records are unaffected.
func (s *RewardStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM rewards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	return nil
}

// --- Redemption methods (reads only; inserts happen in the points workflow) ---

func scanRedemption(scanner interface{ Scan(...any) error }) (*model.Redemption, error) {
	var r model.Redemption
	err := scanner.Scan(
		&r.ID, &r.RewardID, &r.ChildID, &r.ParentID,
		&r.Description, &r.PointCost, &r.IdempotencyKey, &r.RedeemedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const redemptionCols = `id, reward_id, child_id, parent_id, description, point_cost, idempotency_key, redeemed_at`

func (s *RewardStore) GetRedemption(id int64) (*model.Redemption, error) {
	row := s.db.QueryRow(`SELECT `+redemptionCols+` FROM redemptions WHERE id = ?`, id)
	r, err := scanRedemption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	return r, nil
}

func (s *RewardStore) ListRedemptionsByChild(childID int64) ([]model.Redemption, error) {
	rows, err := s.db.Query(
		`SELECT `+redemptionCols+` FROM redemptions WHERE child_id = ? ORDER BY redeemed_at DESC, id DESC`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list redemptions by child: %w", err)
	}
	return collectRedemptions(rows)
}

func (s *RewardStore) ListRedemptionsByParent(parentID int64) ([]model.Redemption, error) {
	rows, err := s.db.Query(
		`SELECT `+redemptionCols+` FROM redemptions WHERE parent_id = ? ORDER BY redeemed_at DESC, id DESC`,
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list redemptions by parent: %w", err)
	}
	return collectRedemptions(rows)
}

func collectRedemptions(rows *sql.Rows) ([]model.Redemption, error) {
	defer rows.Close()

	var redemptions []model.Redemption
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		redemptions = append(redemptions, *r)
	}
	return redemptions, rows.Err()
}

// SumRedeemedPoints returns the total historical cost attributed to a child.
func (s *RewardStore) SumRedeemedPoints(childID int64) (int, error) {
	var sum sql.NullInt64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(point_cost), 0) FROM redemptions WHERE child_id = ?`,
		childID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum redeemed points: %w", err)
	}
	return int(sum.Int64), nil
}
