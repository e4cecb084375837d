package itests

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// seedStatements loads the reference dataset: 3 types, 4 tags (one with
// a parent tag), 4 events, and the join rows between them.
var seedStatements = []string{
	`INSERT INTO type (id, name) VALUES
		(1, 'meeting'), (2, 'party'), (3, 'reminder')`,

	`INSERT INTO tag (id, name, color, tag_id) VALUES
		(1, 'urgent', 'red', NULL),
		(2, 'work', 'blue', 1),
		(3, 'home', 'green', NULL),
		(4, 'idea', 'white', NULL)`,

	`INSERT INTO event (id, summary, description, time) VALUES
		(1, 'standup', 'daily sync', '2026-01-05 09:00:00'),
		(2, 'retrospective', NULL, '2026-01-09 16:00:00'),
		(3, 'housewarming', 'bring drinks', '2026-01-10 19:00:00'),
		(4, 'dentist', NULL, '2026-01-12 08:30:00')`,

	`INSERT INTO nn_event_type (event_id, type_id) VALUES
		(1, 1), (2, 1), (3, 2), (4, 3)`,

	`INSERT INTO nn_event_tag (event_id, tag_id) VALUES
		(1, 1), (1, 2), (2, 2), (3, 3)`,

	`SELECT setval('type_id_seq', (SELECT max(id) FROM type))`,
	`SELECT setval('tag_id_seq', (SELECT max(id) FROM tag))`,
	`SELECT setval('event_id_seq', (SELECT max(id) FROM event))`,
}

func seed(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range seedStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
