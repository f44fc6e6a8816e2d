package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/taxassign/internal/hits"
	"github.com/abhisek/taxassign/internal/taxonomy"
)

func reference() *taxonomy.Fixture {
	return taxonomy.NewFixture().
		AddTaxon(1, 1, taxonomy.RankRoot, "root").
		AddTaxon(2, 1, taxonomy.RankSuperkingdom, "Bacteria").
		AddTaxon(1224, 2, taxonomy.RankPhylum, "Proteobacteria").
		AddTaxon(1236, 1224, taxonomy.RankClass, "Gammaproteobacteria").
		AddTaxon(91347, 1236, taxonomy.RankOrder, "Enterobacterales").
		AddTaxon(543, 91347, taxonomy.RankFamily, "Enterobacteriaceae").
		AddTaxon(561, 543, taxonomy.RankGenus, "Escherichia").
		AddTaxon(562, 561, taxonomy.RankSpecies, "Escherichia coli").
		AddTaxon(564, 561, taxonomy.RankSpecies, "Escherichia fergusonii").
		AddTaxon(83333, 562, taxonomy.RankNoRank, "Escherichia coli K-12").
		AddTaxon(590, 543, taxonomy.RankGenus, "Salmonella").
		AddTaxon(28901, 590, taxonomy.RankSpecies, "Salmonella enterica").
		AddTaxon(2157, 1, taxonomy.RankSuperkingdom, "Archaea").
		AddTaxon(2287, 2157, taxonomy.RankSpecies, "Saccharolobus solfataricus").
		MapAccession(1001, 562).
		MapAccession(1002, 564).
		MapAccession(1003, 561).
		MapAccession(1004, 28901).
		MapAccession(1005, 83333).
		MapAccession(1007, 2287)
}

func hit(accession int64, evalue float64) *hits.Hit {
	return &hits.Hit{QueryID: "q1", Accession: accession, Identity: 98, Coverage: 95, Evalue: evalue}
}

func newClassifier(t *testing.T, src taxonomy.Source, opts ...Option) *Classifier {
	t.Helper()
	return New(taxonomy.NewResolver(src), mustPolicy(t, 90, 80, 100), opts...)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		hits      []*hits.Hit
		wantTaxID taxonomy.TaxID
		wantRank  taxonomy.Rank
		wantLifts int
	}{
		{
			name:      "single hit keeps its own node",
			hits:      []*hits.Hit{hit(1001, 1e-30)},
			wantTaxID: 562,
			wantRank:  taxonomy.RankSpecies,
		},
		{
			name:      "well separated genus hit is ignored",
			hits:      []*hits.Hit{hit(1001, 1e-50), hit(1003, 1e-10)},
			wantTaxID: 562,
			wantRank:  taxonomy.RankSpecies,
		},
		{
			name:      "close sibling species lift to the genus",
			hits:      []*hits.Hit{hit(1001, 1e-20), hit(1002, 1e-19)},
			wantTaxID: 561,
			wantRank:  taxonomy.RankGenus,
			wantLifts: 1,
		},
		{
			name:      "close genus hit lifts species pivot to the genus",
			hits:      []*hits.Hit{hit(1001, 1e-50), hit(1003, 1e-49)},
			wantTaxID: 561,
			wantRank:  taxonomy.RankGenus,
			wantLifts: 1,
		},
		{
			name:      "descendant candidate is already covered",
			hits:      []*hits.Hit{hit(1003, 1e-40), hit(1001, 1e-40)},
			wantTaxID: 561,
			wantRank:  taxonomy.RankGenus,
		},
		{
			name:      "different genera meet at the family",
			hits:      []*hits.Hit{hit(1001, 1e-40), hit(1004, 1e-39)},
			wantTaxID: 543,
			wantRank:  taxonomy.RankFamily,
			wantLifts: 2,
		},
		{
			name:      "unranked pivot lifts to its species",
			hits:      []*hits.Hit{hit(1005, 1e-40), hit(1001, 1e-40)},
			wantTaxID: 562,
			wantRank:  taxonomy.RankSpecies,
			wantLifts: 1,
		},
		{
			name:      "separated candidate is skipped before a close one",
			hits:      []*hits.Hit{hit(1001, 1e-50), hit(1004, 1e-10), hit(1002, 1e-49)},
			wantTaxID: 561,
			wantRank:  taxonomy.RankGenus,
			wantLifts: 1,
		},
		{
			name:      "input order does not matter when e-values differ",
			hits:      []*hits.Hit{hit(1002, 1e-19), hit(1001, 1e-20)},
			wantTaxID: 561,
			wantRank:  taxonomy.RankGenus,
			wantLifts: 1,
		},
		{
			name:      "divergent domains end at the root",
			hits:      []*hits.Hit{hit(1001, 1e-20), hit(1007, 1e-20), hit(1004, 1e-20)},
			wantTaxID: 1,
			wantRank:  taxonomy.RankRoot,
			wantLifts: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClassifier(t, reference())

			res, err := c.Classify(context.Background(), "q1", tt.hits)
			require.NoError(t, err)
			require.True(t, res.Classified())
			assert.Equal(t, tt.wantTaxID, res.TaxID)
			require.NotNil(t, res.Rank)
			assert.Equal(t, tt.wantRank, *res.Rank)
			assert.Equal(t, tt.wantLifts, res.Lifts)
			assert.Equal(t, len(tt.hits), res.HitsPlaced)
		})
	}
}

func TestClassify_SeparatedHitDoesNotWalkSubtree(t *testing.T) {
	f := taxonomy.NewFixture().
		AddTaxon(1, 1, taxonomy.RankRoot, "root").
		AddTaxon(2, 1, taxonomy.RankSuperkingdom, "Bacteria")
	for g := 0; g < 20; g++ {
		genus := taxonomy.TaxID(1000 + g)
		f.AddTaxon(genus, 2, taxonomy.RankGenus, "genus")
		for s := 0; s < 10; s++ {
			f.AddTaxon(taxonomy.TaxID(100000+g*10+s), genus, taxonomy.RankSpecies, "species")
		}
	}
	f.MapAccession(1, 100000).MapAccession(2, 2)

	res, err := newClassifier(t, f).Classify(context.Background(), "q1",
		[]*hits.Hit{hit(1, 1e-50), hit(2, 1e-10)})
	require.NoError(t, err)
	require.True(t, res.Classified())
	assert.Equal(t, taxonomy.TaxID(100000), res.TaxID)
	assert.Equal(t, 0, res.Lifts)
	assert.LessOrEqual(t, f.Calls["children"], 2, "only direct children per assigned hit")
}

func TestClassify_Lineage(t *testing.T) {
	c := newClassifier(t, reference())

	res, err := c.Classify(context.Background(), "q1", []*hits.Hit{hit(1001, 1e-20), hit(1002, 1e-19)})
	require.NoError(t, err)

	require.Len(t, res.Lineage, 7)
	assert.Equal(t, taxonomy.TaxID(1), res.Lineage[0].TaxID)
	assert.Equal(t, taxonomy.TaxID(561), res.Lineage[6].TaxID)
	assert.Equal(t, "Escherichia", res.Name)
	assert.Equal(t, "genus", res.RankName())
}

func TestClassify_Unclassified(t *testing.T) {
	tests := []struct {
		name       string
		hits       []*hits.Hit
		wantPassed int
	}{
		{"no hits", nil, 0},
		{
			name: "every hit below the cutoffs",
			hits: []*hits.Hit{
				{Accession: 1001, Identity: 70, Coverage: 95, Evalue: 1e-30},
				{Accession: 1002, Identity: 98, Coverage: 40, Evalue: 1e-30},
			},
		},
		{
			name:       "no hit has a taxonomy",
			hits:       []*hits.Hit{hit(9999, 1e-30), hit(9998, 1e-20)},
			wantPassed: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClassifier(t, reference())

			res, err := c.Classify(context.Background(), "q1", tt.hits)
			require.NoError(t, err)
			assert.False(t, res.Classified())
			assert.Equal(t, StatusUnclassified, res.Status)
			assert.Nil(t, res.Rank)
			assert.Empty(t, res.RankName())
			assert.Equal(t, len(tt.hits), res.HitsTotal)
			assert.Equal(t, tt.wantPassed, res.HitsPassed)
			assert.Zero(t, res.HitsPlaced)
		})
	}
}

func TestClassify_QualityFilterRemovesConflict(t *testing.T) {
	c := newClassifier(t, reference())

	weak := hit(1004, 1e-20)
	weak.Identity = 85

	res, err := c.Classify(context.Background(), "q1", []*hits.Hit{hit(1001, 1e-20), weak})
	require.NoError(t, err)
	assert.Equal(t, taxonomy.TaxID(562), res.TaxID)
	assert.Equal(t, 1, res.HitsPassed)
}

func TestClassify_UnplacedHitsAreDropped(t *testing.T) {
	c := newClassifier(t, reference())

	res, err := c.Classify(context.Background(), "q1", []*hits.Hit{hit(9999, 1e-60), hit(1001, 1e-20)})
	require.NoError(t, err)
	assert.Equal(t, taxonomy.TaxID(562), res.TaxID)
	assert.Equal(t, 2, res.HitsPassed)
	assert.Equal(t, 1, res.HitsPlaced)
}

func TestClassify_TiesKeepInputOrder(t *testing.T) {
	c := newClassifier(t, reference())

	genusFirst, err := c.Classify(context.Background(), "q1", []*hits.Hit{hit(1003, 1e-30), hit(1001, 1e-30)})
	require.NoError(t, err)
	speciesFirst, err := c.Classify(context.Background(), "q1", []*hits.Hit{hit(1001, 1e-30), hit(1003, 1e-30)})
	require.NoError(t, err)

	assert.Equal(t, genusFirst.TaxID, speciesFirst.TaxID)
	assert.Equal(t, 0, genusFirst.Lifts, "genus pivot already covers the species")
	assert.Equal(t, 1, speciesFirst.Lifts, "species pivot lifts once")
}

func TestClassify_LookupFailure(t *testing.T) {
	boom := errors.New("connection reset")
	src := reference().Fail("accession", boom)
	c := newClassifier(t, src)

	res, err := c.Classify(context.Background(), "q1", []*hits.Hit{hit(1001, 1e-20)})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)

	var le *taxonomy.LookupError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "assign", le.Op)
	assert.Contains(t, err.Error(), "query q1")
}

func TestClassify_LiftFailure(t *testing.T) {
	src := reference()
	c := newClassifier(t, src)

	// Lineages are loaded while placing hits, so a failure in the taxon
	// lookup aborts before any lift.
	src.Fail("taxon", errors.New("timeout"))
	_, err := c.Classify(context.Background(), "q1", []*hits.Hit{hit(1001, 1e-20), hit(1002, 1e-19)})
	require.Error(t, err)

	var le *taxonomy.LookupError
	assert.ErrorAs(t, err, &le)
}

func TestClassify_Canceled(t *testing.T) {
	c := newClassifier(t, reference())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Classify(ctx, "q1", []*hits.Hit{hit(1001, 1e-20)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassify_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	src := reference()
	c := newClassifier(t, src, WithMetrics(m))
	ctx := context.Background()

	weak := hit(1004, 1e-20)
	weak.Coverage = 10

	_, err := c.Classify(ctx, "q1", []*hits.Hit{hit(1001, 1e-20), hit(1002, 1e-19), weak, hit(9999, 1e-5)})
	require.NoError(t, err)
	_, err = c.Classify(ctx, "q2", nil)
	require.NoError(t, err)

	src.Fail("accession", errors.New("down"))
	_, err = c.Classify(ctx, "q3", []*hits.Hit{hit(1001, 1e-20)})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("classified", "genus")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("unclassified", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedHits.WithLabelValues("quality")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedHits.WithLabelValues("unplaced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failures.WithLabelValues("lookup")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveResult(&Result{Status: StatusClassified}, 0)
		m.IncrementDropped("quality", 3)
		m.IncrementFailure("lookup")
	})
}

func TestClassifyQuery(t *testing.T) {
	c := newClassifier(t, reference())

	q := hits.Query{ID: "read-7", Hits: []hits.RawHit{
		{QueryID: "read-7", SubjectID: "1001", PercentIdentity: "99.1", QueryCoverage: "97", Evalue: "1e-20"},
		{QueryID: "read-7", SubjectID: "gi|1002|ref|NR_1|", PercentIdentity: "98", QueryCoverage: "96", Evalue: "1e-19"},
	}}

	res, err := ClassifyQuery(context.Background(), c, q)
	require.NoError(t, err)
	assert.Equal(t, "read-7", res.QueryID)
	assert.Equal(t, taxonomy.TaxID(561), res.TaxID)
}

func TestClassifyQuery_FormatError(t *testing.T) {
	c := newClassifier(t, reference())

	q := hits.Query{ID: "read-8", Hits: []hits.RawHit{
		{QueryID: "read-8", SubjectID: "1001", PercentIdentity: "99", QueryCoverage: "97", Evalue: "abc"},
	}}

	_, err := ClassifyQuery(context.Background(), c, q)
	var fe *hits.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "evalue", fe.Field)
}

func TestClassifyAll(t *testing.T) {
	c := newClassifier(t, reference())

	queries := []hits.Query{
		{ID: "a", Hits: []hits.RawHit{
			{SubjectID: "1001", PercentIdentity: "99", QueryCoverage: "99", Evalue: "1e-30"},
		}},
		{ID: "b", Hits: []hits.RawHit{
			{SubjectID: "1001", PercentIdentity: "99", QueryCoverage: "99", Evalue: "-1"},
		}},
		{ID: "c"},
	}

	out, err := ClassifyAll(context.Background(), c, queries)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "a", out[0].QueryID)
	require.NoError(t, out[0].Err)
	assert.Equal(t, taxonomy.TaxID(562), out[0].Result.TaxID)

	assert.Equal(t, "b", out[1].QueryID)
	assert.Error(t, out[1].Err)
	assert.Nil(t, out[1].Result)

	require.NoError(t, out[2].Err)
	assert.False(t, out[2].Result.Classified())
}

func TestClassifyAll_Canceled(t *testing.T) {
	c := newClassifier(t, reference())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := ClassifyAll(ctx, c, []hits.Query{{ID: "a"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out)
}
