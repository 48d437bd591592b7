package assemble

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"carbonscope/pkg/domain"
)

var csvHeader = []string{"id", "project_id", "tool_name", "data_type", "timestamp", "source", "data"}

// WriteCSV streams entries as CSV with a fixed header row. Payloads are
// embedded as compact JSON in the data column.
func WriteCSV(w io.Writer, entries []domain.AssessmentDataEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, entry := range entries {
		payload, err := json.Marshal(entry.Data)
		if err != nil {
			return fmt.Errorf("encode entry %d payload: %w", entry.ID, err)
		}
		record := []string{
			strconv.FormatInt(entry.ID, 10),
			strconv.FormatInt(entry.ProjectID, 10),
			entry.ToolName,
			entry.DataType,
			entry.Timestamp.UTC().Format(time.RFC3339Nano),
			entry.Source,
			string(payload),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write entry %d: %w", entry.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

type jsonExport struct {
	Count   int                          `json:"count"`
	Entries []domain.AssessmentDataEntry `json:"entries"`
}

// WriteJSON streams entries as a single JSON document with a count header
// field. A nil slice encodes as an empty entries array.
func WriteJSON(w io.Writer, entries []domain.AssessmentDataEntry) error {
	doc := jsonExport{Count: len(entries), Entries: entries}
	if doc.Entries == nil {
		doc.Entries = []domain.AssessmentDataEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}
