package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RecordControlEvent appends a control request to the audit log.
func (p *PostgresClient) RecordControlEvent(ctx context.Context, event ControlEvent) error {
	propsJSON, err := json.Marshal(event.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal properties: %w", err)
	}

	var errText *string
	if event.Error != "" {
		errText = &event.Error
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO control_events (device_id, device_name, properties, success, error)
		VALUES ($1, $2, $3, $4, $5)
	`, event.DeviceID, event.DeviceName, propsJSON, event.Success, errText)
	if err != nil {
		return fmt.Errorf("failed to insert control event: %w", err)
	}
	return nil
}

// ControlEvents returns the newest control events of a device, newest first.
func (p *PostgresClient) ControlEvents(ctx context.Context, deviceID uuid.UUID, limit int) ([]ControlEvent, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, device_id, device_name, properties, success, COALESCE(error, ''), created_at
		FROM control_events
		WHERE device_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query control events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ControlEvent, error) {
		var e ControlEvent
		var raw []byte
		if err := row.Scan(&e.ID, &e.DeviceID, &e.DeviceName, &raw, &e.Success, &e.Error, &e.CreatedAt); err != nil {
			return e, err
		}
		if err := json.Unmarshal(raw, &e.Properties); err != nil {
			return e, fmt.Errorf("failed to unmarshal properties: %w", err)
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read control events: %w", err)
	}
	return events, nil
}
