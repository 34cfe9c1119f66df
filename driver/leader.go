package driver

import (
	"context"
	"fmt"
	"time"
)

// Leader lease SQL. A lease is taken over once it has expired.
const (
	LeaderElectSQL = `
		INSERT INTO tagstream_leader (name, leader_id, elected_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			leader_id = EXCLUDED.leader_id,
			elected_at = EXCLUDED.elected_at,
			expires_at = EXCLUDED.expires_at
		WHERE tagstream_leader.expires_at < EXCLUDED.elected_at
	`

	LeaderReelectSQL = `
		UPDATE tagstream_leader
		SET elected_at = $3, expires_at = $4
		WHERE name = $1 AND leader_id = $2 AND expires_at >= $3
	`

	LeaderResignSQL = `DELETE FROM tagstream_leader WHERE name = $1 AND leader_id = $2`
)

// LeaderAttemptElect takes the named lease for leaderID if it is free or expired.
func LeaderAttemptElect(ctx context.Context, exec Executor, name, leaderID string, ttl time.Duration) (bool, error) {
	now := time.Now()
	n, err := exec.Exec(ctx, LeaderElectSQL, name, leaderID, now, now.Add(ttl))
	if err != nil {
		return false, fmt.Errorf("failed to attempt election: %w", err)
	}
	return n > 0, nil
}

// LeaderAttemptReelect extends the lease if leaderID still holds it.
func LeaderAttemptReelect(ctx context.Context, exec Executor, name, leaderID string, ttl time.Duration) (bool, error) {
	now := time.Now()
	n, err := exec.Exec(ctx, LeaderReelectSQL, name, leaderID, now, now.Add(ttl))
	if err != nil {
		return false, fmt.Errorf("failed to attempt reelection: %w", err)
	}
	return n > 0, nil
}

// LeaderResign releases the lease held by leaderID.
func LeaderResign(ctx context.Context, exec Executor, name, leaderID string) error {
	if _, err := exec.Exec(ctx, LeaderResignSQL, name, leaderID); err != nil {
		return fmt.Errorf("failed to resign leadership: %w", err)
	}
	return nil
}
