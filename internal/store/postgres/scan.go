package postgres

import (
	"database/sql"
	"encoding/json"

	"github.com/alfredjeanlab/dyngraph/internal/model"
)

// eventColumns is the select list eventRow scans, in order.
const eventColumns = "id, topic, run_id, generation, payload, created_at"

// eventRow holds one events row as the driver returns it. run_id is NULL for
// events outside any run, and generation is stored as BIGINT.
type eventRow struct {
	e          model.Event
	runID      sql.NullString
	generation int64
	payload    []byte
}

func (r *eventRow) dest() []any {
	return []any{&r.e.ID, &r.e.Topic, &r.runID, &r.generation, &r.payload, &r.e.CreatedAt}
}

func (r *eventRow) event() *model.Event {
	e := r.e
	e.RunID = r.runID.String
	e.Generation = uint64(r.generation)
	if len(r.payload) > 0 {
		e.Payload = json.RawMessage(r.payload)
	}
	return &e
}

func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var out []*model.Event
	for rows.Next() {
		var r eventRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, err
		}
		out = append(out, r.event())
	}
	return out, rows.Err()
}
