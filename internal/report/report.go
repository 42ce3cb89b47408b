// Package report renders ranking snapshots for export.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nadmax/medrank/internal/ranking"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

var rankingHeader = []string{
	"Rank", "Student ID", "Student Name", "Tasks Assigned", "Tasks Completed", "Average Score", "Acceptance Rate (%)",
}

// Rows renders rankings as a table whose first row is the header.
func Rows(rankings []ranking.StudentRanking) [][]string {
	data := make([][]string, 0, len(rankings)+1)
	data = append(data, rankingHeader)

	for _, r := range rankings {
		data = append(data, []string{
			strconv.Itoa(r.Rank),
			r.StudentID,
			r.StudentName,
			strconv.Itoa(r.TasksAssigned),
			strconv.Itoa(r.TasksCompleted),
			formatFloat(r.AverageScore, 2),
			formatFloat(r.AcceptanceRate, 2),
		})
	}

	return data
}

func Write(w io.Writer, format string, rankings []ranking.StudentRanking, generatedAt time.Time) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, Rows(rankings))
	case FormatJSON:
		return writeJSON(w, Rows(rankings), generatedAt)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// Filename names an export taken at generatedAt.
func Filename(format string, generatedAt time.Time) string {
	return fmt.Sprintf("medrank_rankings_%s.%s", generatedAt.Format("20060102_150405"), format)
}

func writeCSV(w io.Writer, data [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(data); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, data [][]string, generatedAt time.Time) error {
	headers := data[0]
	rows := data[1:]

	records := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		record := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(row) {
				record[header] = row[i]
			}
		}
		records = append(records, record)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]any{
		"generated_at": generatedAt.Format(time.RFC3339),
		"data":         records,
		"total_rows":   len(records),
	})
}

func formatFloat(v float64, precision int) string {
	return strconv.FormatFloat(v, 'f', precision, 64)
}
