package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KevinKickass/airmedia-bridge/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const defaultHistoryLimit = 100

// SaveStatistics stores one poll result.
func (p *PostgresClient) SaveStatistics(ctx context.Context, deviceID uuid.UUID, deviceName string, collectedAt time.Time, stats types.Statistics) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal statistics: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO device_statistics (device_id, device_name, collected_at, statistics)
		VALUES ($1, $2, $3, $4)
	`, deviceID, deviceName, collectedAt, statsJSON)
	if err != nil {
		return fmt.Errorf("failed to insert statistics: %w", err)
	}
	return nil
}

// StatisticsHistory returns the newest snapshots of a device, newest first.
func (p *PostgresClient) StatisticsHistory(ctx context.Context, deviceID uuid.UUID, limit int) ([]StatisticsSnapshot, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, device_id, device_name, collected_at, statistics
		FROM device_statistics
		WHERE device_id = $1
		ORDER BY collected_at DESC
		LIMIT $2
	`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}

	snapshots, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (StatisticsSnapshot, error) {
		var s StatisticsSnapshot
		var raw []byte
		if err := row.Scan(&s.ID, &s.DeviceID, &s.DeviceName, &s.CollectedAt, &raw); err != nil {
			return s, err
		}
		if err := json.Unmarshal(raw, &s.Statistics); err != nil {
			return s, fmt.Errorf("failed to unmarshal statistics: %w", err)
		}
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read statistics: %w", err)
	}
	return snapshots, nil
}

// PruneStatistics deletes snapshots older than before.
func (p *PostgresClient) PruneStatistics(ctx context.Context, before time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM device_statistics WHERE collected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune statistics: %w", err)
	}
	return tag.RowsAffected(), nil
}
