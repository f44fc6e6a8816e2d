package hits

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/abhisek/taxassign/internal/taxonomy"
)

// EvalueFloor replaces e-values that underflow to exactly zero, so that the
// ratio of two e-values is always defined.
const EvalueFloor = 2.225074e-308

// RawHit is one alignment record as read from search output. Every field is
// kept as text; derived values are computed by New.
//
// Identity comes from PercentIdentity when set, otherwise from
// Identities/AlignLength. Coverage comes from QueryCoverage when set,
// otherwise from QueryStart/QueryEnd/QueryLength.
type RawHit struct {
	QueryID         string
	SubjectID       string
	PercentIdentity string
	Identities      string
	AlignLength     string
	QueryStart      string
	QueryEnd        string
	QueryLength     string
	QueryCoverage   string
	Evalue          string
}

// FormatError reports a raw hit field that could not be normalized.
type FormatError struct {
	Field string
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed hit field %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

var (
	errMissing    = errors.New("missing value")
	errOutOfRange = errors.New("out of range")
)

// Hit is a normalized alignment hit. Accession, Identity, Coverage and Evalue
// are fixed at construction. Taxonomy and Focus are owned by the
// classification run and point into that run's taxonomy.Tree.
type Hit struct {
	QueryID   string
	SubjectID string
	Accession int64

	// Identity is the percentage of aligned bases that match.
	Identity float64
	// Coverage is the percentage of the query spanned by the alignment.
	Coverage float64
	// Evalue is never zero; see EvalueFloor.
	Evalue float64

	// Taxonomy is the subtree currently standing for this hit.
	Taxonomy taxonomy.NodeRef
	// Focus is the node currently assigned to this hit.
	Focus taxonomy.NodeRef
}

// New normalizes a raw hit. It fails with a *FormatError when the reference
// identifier or any numeric field cannot be parsed.
func New(raw RawHit) (*Hit, error) {
	acc, err := ParseAccession(raw.SubjectID)
	if err != nil {
		return nil, err
	}

	identity, err := identityOf(raw)
	if err != nil {
		return nil, err
	}

	coverage, err := coverageOf(raw)
	if err != nil {
		return nil, err
	}

	evalue, err := ParseEvalue(raw.Evalue)
	if err != nil {
		return nil, err
	}

	return &Hit{
		QueryID:   raw.QueryID,
		SubjectID: raw.SubjectID,
		Accession: acc,
		Identity:  identity,
		Coverage:  coverage,
		Evalue:    evalue,
		Taxonomy:  taxonomy.NoNode,
		Focus:     taxonomy.NoNode,
	}, nil
}

// RefusesParenthood reports whether h does not support candidate: it returns
// false only when candidate's focus lies in h's taxonomy subtree, the subtree
// root included. Hits without a taxonomy position always refuse.
func (h *Hit) RefusesParenthood(tree *taxonomy.Tree, candidate *Hit) bool {
	if h == nil || candidate == nil || h.Taxonomy == taxonomy.NoNode || candidate.Focus == taxonomy.NoNode {
		return true
	}
	return !tree.Covers(h.Taxonomy, tree.ID(candidate.Focus))
}

// Assign places the hit at ref, as both its taxonomy and its focus.
func (h *Hit) Assign(ref taxonomy.NodeRef) {
	h.Taxonomy = ref
	h.Focus = ref
}

// ParseAccession extracts the integer reference id from a subject id. Both
// bare integers and pipe-delimited "gi|123|..." identifiers are accepted.
func ParseAccession(subject string) (int64, error) {
	s := strings.TrimSpace(subject)
	if s == "" {
		return 0, &FormatError{Field: "sseqid", Value: subject, Err: errMissing}
	}

	if strings.Contains(s, "|") {
		parts := strings.Split(s, "|")
		found := false
		for i := 0; i+1 < len(parts); i++ {
			if parts[i] == "gi" {
				s = parts[i+1]
				found = true
				break
			}
		}
		if !found {
			return 0, &FormatError{Field: "sseqid", Value: subject, Err: errors.New("no gi field")}
		}
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &FormatError{Field: "sseqid", Value: subject, Err: err}
	}
	if id < 0 {
		return 0, &FormatError{Field: "sseqid", Value: subject, Err: errOutOfRange}
	}
	return id, nil
}

// ParseEvalue parses an e-value, replacing an exact zero with EvalueFloor.
func ParseEvalue(s string) (float64, error) {
	v, err := parseFloat("evalue", s)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) && errors.Is(fe.Err, strconv.ErrRange) && v == 0 {
			return EvalueFloor, nil
		}
		return 0, err
	}
	if v < 0 {
		return 0, &FormatError{Field: "evalue", Value: s, Err: errOutOfRange}
	}
	if v == 0 {
		return EvalueFloor, nil
	}
	return v, nil
}

func identityOf(raw RawHit) (float64, error) {
	if strings.TrimSpace(raw.PercentIdentity) != "" {
		v, err := parseFloat("pident", raw.PercentIdentity)
		if err != nil {
			return 0, err
		}
		return percent("pident", raw.PercentIdentity, v)
	}

	nident, err := parseFloat("nident", raw.Identities)
	if err != nil {
		return 0, err
	}
	length, err := parseFloat("length", raw.AlignLength)
	if err != nil {
		return 0, err
	}
	if length <= 0 {
		return 0, &FormatError{Field: "length", Value: raw.AlignLength, Err: errOutOfRange}
	}
	return percent("nident", raw.Identities, 100*nident/length)
}

func coverageOf(raw RawHit) (float64, error) {
	if strings.TrimSpace(raw.QueryCoverage) != "" {
		v, err := parseFloat("qcovs", raw.QueryCoverage)
		if err != nil {
			return 0, err
		}
		return percent("qcovs", raw.QueryCoverage, v)
	}

	start, err := parseFloat("qstart", raw.QueryStart)
	if err != nil {
		return 0, err
	}
	end, err := parseFloat("qend", raw.QueryEnd)
	if err != nil {
		return 0, err
	}
	qlen, err := parseFloat("qlen", raw.QueryLength)
	if err != nil {
		return 0, err
	}
	if qlen <= 0 {
		return 0, &FormatError{Field: "qlen", Value: raw.QueryLength, Err: errOutOfRange}
	}
	return percent("qlen", raw.QueryLength, 100*(math.Abs(end-start)+1)/qlen)
}

func parseFloat(field, s string) (float64, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, &FormatError{Field: field, Value: s, Err: errMissing}
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return v, &FormatError{Field: field, Value: s, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &FormatError{Field: field, Value: s, Err: errOutOfRange}
	}
	return v, nil
}

func percent(field, s string, v float64) (float64, error) {
	if v < 0 || v > 100 {
		return 0, &FormatError{Field: field, Value: s, Err: errOutOfRange}
	}
	return v, nil
}
