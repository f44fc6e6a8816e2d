package taxonomy

// enterobacteria returns a fixture holding a small slice of the NCBI
// taxonomy around Escherichia and Salmonella.
func enterobacteria() *Fixture {
	return NewFixture().
		AddTaxon(1, 1, RankRoot, "root").
		AddTaxon(2, 1, RankSuperkingdom, "Bacteria").
		AddTaxon(1224, 2, RankPhylum, "Proteobacteria").
		AddTaxon(1236, 1224, RankClass, "Gammaproteobacteria").
		AddTaxon(91347, 1236, RankOrder, "Enterobacterales").
		AddTaxon(543, 91347, RankFamily, "Enterobacteriaceae").
		AddTaxon(561, 543, RankGenus, "Escherichia").
		AddTaxon(562, 561, RankSpecies, "Escherichia coli").
		AddTaxon(564, 561, RankSpecies, "Escherichia fergusonii").
		AddTaxon(83333, 562, RankNoRank, "Escherichia coli K-12").
		AddTaxon(590, 543, RankGenus, "Salmonella").
		AddTaxon(28901, 590, RankSpecies, "Salmonella enterica").
		AddTaxon(10000, 561, RankNoRank, "unclassified Escherichia").
		AddTaxon(10001, 10000, RankSpecies, "Escherichia sp. X").
		MapAccession(1001, 562).
		MapAccession(1002, 564).
		MapAccession(1003, 561).
		MapAccession(1004, 28901).
		MapAccession(1005, 83333).
		MapAccession(1006, 10001)
}
