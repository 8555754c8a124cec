package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/nexdesk/nexdesk"
	"github.com/nexdesk/nexdesk/hours"
	"github.com/nexdesk/nexdesk/store"
	"github.com/nexdesk/nexdesk/tenant"
)

// GetSchedule loads a queue's config, weekly rules, and holidays from
// the tenant's partition, all inside one transaction so the evaluator
// sees a consistent snapshot.
func (s *Store) GetSchedule(ctx context.Context, b tenant.Binding, queue string) (*hours.Schedule, error) {
	var sched hours.Schedule
	err := s.WithTenant(ctx, b.Partition, func(ctx context.Context, q store.Querier) error {
		row := q.QueryRow(ctx, `
			SELECT queue, timezone, enabled, pre_open_message, closed_message
			FROM queue_config
			WHERE queue = $1`,
			queue,
		)
		err := row.Scan(
			&sched.Config.Queue,
			&sched.Config.Timezone,
			&sched.Config.Enabled,
			&sched.Config.PreOpenMessage,
			&sched.Config.ClosedMessage,
		)
		if err != nil {
			if isNoRows(err) {
				return nexdesk.ErrQueueNotFound
			}
			return fmt.Errorf("nexdesk/postgres: queue config: %w", err)
		}

		rows, err := q.Query(ctx, `
			SELECT queue, weekday, start_minute, end_minute
			FROM queue_schedule_rules
			WHERE queue = $1
			ORDER BY weekday, start_minute`,
			queue,
		)
		if err != nil {
			return fmt.Errorf("nexdesk/postgres: schedule rules: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r hours.Rule
			if err := rows.Scan(&r.Queue, &r.Weekday, &r.StartMinute, &r.EndMinute); err != nil {
				return fmt.Errorf("nexdesk/postgres: scan rule: %w", err)
			}
			sched.Rules = append(sched.Rules, r)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("nexdesk/postgres: schedule rules: %w", err)
		}

		rows, err = q.Query(ctx, `
			SELECT queue, day, label
			FROM queue_holidays
			WHERE queue = $1
			ORDER BY day`,
			queue,
		)
		if err != nil {
			return fmt.Errorf("nexdesk/postgres: holidays: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var h hours.Holiday
			var day time.Time
			if err := rows.Scan(&h.Queue, &day, &h.Label); err != nil {
				return fmt.Errorf("nexdesk/postgres: scan holiday: %w", err)
			}
			h.Date = day.Format("2006-01-02")
			sched.Holidays = append(sched.Holidays, h)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nexdesk.Transient(err)
	}
	return &sched, nil
}

// UpsertQueueConfig writes a queue's availability configuration into
// the tenant's partition.
func (s *Store) UpsertQueueConfig(ctx context.Context, b tenant.Binding, cfg hours.Config) error {
	err := s.WithTenant(ctx, b.Partition, func(ctx context.Context, q store.Querier) error {
		_, err := q.Exec(ctx, `
			INSERT INTO queue_config (queue, timezone, enabled, pre_open_message, closed_message)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (queue) DO UPDATE SET
				timezone = EXCLUDED.timezone,
				enabled = EXCLUDED.enabled,
				pre_open_message = EXCLUDED.pre_open_message,
				closed_message = EXCLUDED.closed_message`,
			cfg.Queue, cfg.Timezone, cfg.Enabled, cfg.PreOpenMessage, cfg.ClosedMessage,
		)
		if err != nil {
			return fmt.Errorf("nexdesk/postgres: upsert queue config: %w", err)
		}
		return nil
	})
	return nexdesk.Transient(err)
}

// ReplaceSchedule replaces a queue's weekly rules and holidays in one
// transaction. Rules are validated before anything is written.
func (s *Store) ReplaceSchedule(ctx context.Context, b tenant.Binding, queue string, rules []hours.Rule, holidays []hours.Holiday) error {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	err := s.WithTenant(ctx, b.Partition, func(ctx context.Context, q store.Querier) error {
		if _, err := q.Exec(ctx, `DELETE FROM queue_schedule_rules WHERE queue = $1`, queue); err != nil {
			return fmt.Errorf("nexdesk/postgres: clear rules: %w", err)
		}
		if _, err := q.Exec(ctx, `DELETE FROM queue_holidays WHERE queue = $1`, queue); err != nil {
			return fmt.Errorf("nexdesk/postgres: clear holidays: %w", err)
		}
		for _, r := range rules {
			_, err := q.Exec(ctx, `
				INSERT INTO queue_schedule_rules (queue, weekday, start_minute, end_minute)
				VALUES ($1, $2, $3, $4)`,
				queue, r.Weekday, r.StartMinute, r.EndMinute,
			)
			if err != nil {
				return fmt.Errorf("nexdesk/postgres: insert rule: %w", err)
			}
		}
		for _, h := range holidays {
			_, err := q.Exec(ctx, `
				INSERT INTO queue_holidays (queue, day, label)
				VALUES ($1, $2, $3)`,
				queue, h.Date, h.Label,
			)
			if err != nil {
				return fmt.Errorf("nexdesk/postgres: insert holiday: %w", err)
			}
		}
		return nil
	})
	return nexdesk.Transient(err)
}
