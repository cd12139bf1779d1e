package edgar

import (
	"iter"
	"strings"
)

// Row is one decoded table record, keyed by uppercased column header.
type Row map[string]string

// Rows returns a lazy sequence of header-keyed records from a table's lines.
// The first line supplies the column headers (trimmed, uppercased); blank
// lines are skipped; values are trimmed. Each call produces a fresh
// sequence, so at most one table's rows are in flight at a time when the
// caller follows the one-table-at-a-time extraction discipline.
func Rows(lines []string) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		if len(lines) == 0 {
			return
		}

		headers := strings.Split(lines[0], "\t")
		for i, h := range headers {
			headers[i] = strings.ToUpper(strings.TrimSpace(h))
		}

		for _, line := range lines[1:] {
			if strings.TrimSpace(line) == "" {
				continue
			}
			fields := strings.Split(line, "\t")
			row := make(Row, len(headers))
			for i, h := range headers {
				if i < len(fields) {
					row[h] = strings.TrimSpace(fields[i])
				} else {
					row[h] = ""
				}
			}
			if !yield(row) {
				return
			}
		}
	}
}
