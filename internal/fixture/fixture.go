// Package fixture generates reference database files together with a JSON
// companion listing their exact contents, so independent readers can verify
// a file without trusting the engine that wrote it.
package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jmallard/gdbm"
)

const (
	// basicRecords is the record count of the basic plan.
	basicRecords = 10001

	// contextCheckInterval is how often to check for context cancellation
	// while storing records.
	contextCheckInterval = 1000
)

// Plan names a fixture's contents.
type Plan string

const (
	// PlanBasic holds basicRecords sequential "key N" -> "value N" pairs.
	PlanBasic Plan = "basic"

	// PlanEmpty holds no records.
	PlanEmpty Plan = "empty"
)

// Plans lists every known plan.
var Plans = []Plan{PlanBasic, PlanEmpty}

// Companion is the JSON document written beside each generated database.
type Companion struct {
	GeneratedBy   string      `json:"generated_by"`
	GeneratedTime string      `json:"generated_time"`
	DataRecords   int         `json:"data_records"`
	Data          [][2]string `json:"data"`
}

// records materializes a plan's key/value pairs.
func records(plan Plan) ([][2]string, error) {
	switch plan {
	case PlanBasic:
		data := make([][2]string, basicRecords)
		for i := range data {
			data[i] = [2]string{fmt.Sprintf("key %d", i), fmt.Sprintf("value %d", i)}
		}
		return data, nil
	case PlanEmpty:
		return nil, nil
	default:
		return nil, fmt.Errorf("fixture: unknown plan %q", plan)
	}
}

// Generate creates the database at dbPath with the plan's records and the
// given variant options, syncs it, and writes the JSON companion to
// jsonPath.
func Generate(ctx context.Context, plan Plan, dbPath, jsonPath string, opts ...gdbm.Option) error {
	data, err := records(plan)
	if err != nil {
		return err
	}

	db, err := gdbm.Open(dbPath, gdbm.CreateNew, opts...)
	if err != nil {
		return err
	}

	for i, kv := range data {
		if i%contextCheckInterval == 0 {
			if ctx.Err() != nil {
				db.Close()
				return ctx.Err()
			}
		}
		if err := db.Store([]byte(kv[0]), []byte(kv[1]), false); err != nil {
			db.Close()
			return err
		}
	}
	if err := db.Sync(); err != nil {
		db.Close()
		return err
	}
	if err := db.Close(); err != nil {
		return err
	}

	if data == nil {
		data = [][2]string{}
	}
	companion := Companion{
		GeneratedBy:   "fixturegen",
		GeneratedTime: time.Now().UTC().Format(time.RFC3339),
		DataRecords:   len(data),
		Data:          data,
	}
	buf, err := json.MarshalIndent(&companion, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(jsonPath, buf, 0o644)
}
