package hits

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Query groups the raw hits reported for one query sequence, in input order.
type Query struct {
	ID   string
	Hits []RawHit
}

// DefaultColumns is the tabular layout produced by
// -outfmt "6 qseqid sseqid nident length qstart qend qlen evalue".
var DefaultColumns = []string{"qseqid", "sseqid", "nident", "length", "qstart", "qend", "qlen", "evalue"}

// columnSetters maps tabular column specifiers onto RawHit fields. Columns
// outside this set are read and ignored.
var columnSetters = map[string]func(*RawHit, string){
	"qseqid":  func(h *RawHit, v string) { h.QueryID = v },
	"sseqid":  func(h *RawHit, v string) { h.SubjectID = v },
	"pident":  func(h *RawHit, v string) { h.PercentIdentity = v },
	"nident":  func(h *RawHit, v string) { h.Identities = v },
	"length":  func(h *RawHit, v string) { h.AlignLength = v },
	"qstart":  func(h *RawHit, v string) { h.QueryStart = v },
	"qend":    func(h *RawHit, v string) { h.QueryEnd = v },
	"qlen":    func(h *RawHit, v string) { h.QueryLength = v },
	"qcovs":   func(h *RawHit, v string) { h.QueryCoverage = v },
	"qcovhsp": func(h *RawHit, v string) { h.QueryCoverage = v },
	"evalue":  func(h *RawHit, v string) { h.Evalue = v },
}

// ParseColumns parses an outfmt column list such as
// "6 qseqid sseqid pident qcovs evalue". A leading format number is dropped.
func ParseColumns(spec string) ([]string, error) {
	fields := strings.Fields(spec)
	if len(fields) > 0 && (fields[0] == "6" || fields[0] == "7") {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty column list")
	}

	has := make(map[string]bool, len(fields))
	for _, f := range fields {
		has[f] = true
	}
	var missing []string
	for _, req := range []string{"qseqid", "sseqid", "evalue"} {
		if !has[req] {
			missing = append(missing, req)
		}
	}
	if !has["pident"] && !(has["nident"] && has["length"]) {
		missing = append(missing, "pident or nident+length")
	}
	if !has["qcovs"] && !has["qcovhsp"] && !(has["qstart"] && has["qend"] && has["qlen"]) {
		missing = append(missing, "qcovs or qstart+qend+qlen")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("column list lacks %s", strings.Join(missing, ", "))
	}
	return fields, nil
}

// ReadTabular reads tab-separated search output laid out as columns. Blank
// lines and '#' comment lines are skipped. Queries are returned in the order
// they first appear.
func ReadTabular(r io.Reader, columns []string) ([]Query, error) {
	if len(columns) == 0 {
		columns = DefaultColumns
	}

	var queries []Query
	byID := make(map[string]int)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != len(columns) {
			return nil, fmt.Errorf("line %d: got %d columns, want %d", lineNo, len(fields), len(columns))
		}

		var raw RawHit
		for i, col := range columns {
			if set, ok := columnSetters[col]; ok {
				set(&raw, strings.TrimSpace(fields[i]))
			}
		}
		if raw.QueryID == "" {
			return nil, fmt.Errorf("line %d: empty query id", lineNo)
		}

		idx, ok := byID[raw.QueryID]
		if !ok {
			idx = len(queries)
			byID[raw.QueryID] = idx
			queries = append(queries, Query{ID: raw.QueryID})
		}
		queries[idx].Hits = append(queries[idx].Hits, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tabular hits: %w", err)
	}
	return queries, nil
}

// Normalize converts every raw hit of a query. The first malformed hit aborts
// the conversion with its *FormatError.
func Normalize(raws []RawHit) ([]*Hit, error) {
	out := make([]*Hit, 0, len(raws))
	for i, raw := range raws {
		h, err := New(raw)
		if err != nil {
			return nil, fmt.Errorf("hit %d: %w", i+1, err)
		}
		out = append(out, h)
	}
	return out, nil
}
