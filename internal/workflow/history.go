package workflow

import (
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/regidesk/be-deed-forms/internal/model"
)

// Record appends one entry to the form's verification history and returns it.
// The history is append-only: nothing in this package ever rewrites or drops
// an existing entry.
func Record(f *model.Form, staffLevel, action, notes string, corrections []model.FieldCorrection) *model.HistoryEntry {
	entry := model.HistoryEntry{
		ID:          uuid.NewString(),
		StaffLevel:  staffLevel,
		Action:      action,
		Timestamp:   time.Now().UTC(),
		Notes:       notes,
		Corrections: corrections,
	}
	f.VerificationHistory = append(f.VerificationHistory, entry)
	return &f.VerificationHistory[len(f.VerificationHistory)-1]
}

// DiffFields computes the corrections produced by writing updated over
// original: one record per key of updated whose value differs (deep
// equality), including keys absent from original. Keys only present in
// original are untouched data and produce no record. Output is ordered by
// field name so history entries are deterministic.
func DiffFields(original, updated map[string]any, correctedBy string) []model.FieldCorrection {
	keys := make([]string, 0, len(updated))
	for k := range updated {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var corrections []model.FieldCorrection
	for _, k := range keys {
		newVal := updated[k]
		oldVal, existed := original[k]
		if existed && reflect.DeepEqual(oldVal, newVal) {
			continue
		}
		var origRecorded any
		if existed {
			origRecorded = oldVal
		}
		corrections = append(corrections, model.FieldCorrection{
			Field:          k,
			OriginalValue:  origRecorded,
			CorrectedValue: newVal,
			CorrectedBy:    correctedBy,
		})
	}
	return corrections
}

// ApplyFields writes the updated values through to the form. Field values
// are opaque to the workflow core; no validation happens here.
func ApplyFields(f *model.Form, updated map[string]any) {
	if f.Fields == nil {
		f.Fields = make(map[string]any, len(updated))
	}
	for k, v := range updated {
		f.Fields[k] = v
	}
}
