package taxonomy

import (
	"context"
	"slices"
	"sync"
)

// Fixture is an in-memory Source for tests and small offline runs. Records
// are added with AddTaxon and MapAccession; Fail injects an error for one
// operation.
type Fixture struct {
	mu         sync.Mutex
	taxa       map[TaxID]Record
	children   map[TaxID][]TaxID
	accessions map[int64]TaxID
	failures   map[string]error

	// Calls counts Source calls by operation name.
	Calls map[string]int
}

// NewFixture returns an empty fixture.
func NewFixture() *Fixture {
	return &Fixture{
		taxa:       make(map[TaxID]Record),
		children:   make(map[TaxID][]TaxID),
		accessions: make(map[int64]TaxID),
		failures:   make(map[string]error),
		Calls:      make(map[string]int),
	}
}

// AddTaxon records a taxon. A taxon whose parent is itself is the root.
func (f *Fixture) AddTaxon(id, parent TaxID, rank Rank, name string) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.taxa[id] = Record{ID: id, Parent: parent, Rank: rank, Name: name}
	if parent != id && !slices.Contains(f.children[parent], id) {
		f.children[parent] = append(f.children[parent], id)
	}
	return f
}

// MapAccession files a reference sequence under taxon id.
func (f *Fixture) MapAccession(accession int64, id TaxID) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessions[accession] = id
	return f
}

// Fail makes every later call of op ("taxon", "children", "accession")
// return err. A nil err clears the failure.
func (f *Fixture) Fail(op string, err error) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
	} else {
		f.failures[op] = err
	}
	return f
}

func (f *Fixture) Taxon(_ context.Context, id TaxID) (Record, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["taxon"]++
	if err := f.failures["taxon"]; err != nil {
		return Record{}, false, err
	}
	rec, ok := f.taxa[id]
	return rec, ok, nil
}

func (f *Fixture) ChildrenOf(_ context.Context, id TaxID) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["children"]++
	if err := f.failures["children"]; err != nil {
		return nil, err
	}
	ids := f.children[id]
	out := make([]Record, 0, len(ids))
	for _, cid := range ids {
		out = append(out, f.taxa[cid])
	}
	return out, nil
}

func (f *Fixture) Accession(_ context.Context, accession int64) (TaxID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["accession"]++
	if err := f.failures["accession"]; err != nil {
		return 0, false, err
	}
	id, ok := f.accessions[accession]
	return id, ok, nil
}
