package taxonomy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRank is returned by ParseRank for names outside the rank table.
var ErrUnknownRank = errors.New("unknown rank name")

// Rank is a level in the taxonomic hierarchy. Lower values are closer to the
// root of life; the order is fixed.
type Rank int

const (
	RankRoot Rank = iota // Sentinel for the root of life
	RankNoRank
	RankSuperkingdom
	RankKingdom
	RankSubkingdom
	RankSuperphylum
	RankPhylum
	RankSubphylum
	RankSuperclass
	RankClass
	RankSubclass
	RankInfraclass
	RankSuperorder
	RankOrder
	RankSuborder
	RankInfraorder
	RankParvorder
	RankSuperfamily
	RankFamily
	RankSubfamily
	RankTribe
	RankSubtribe
	RankGenus
	RankSubgenus
	RankSpeciesGroup
	RankSpecies
	RankSubspecies
	RankVarietas
	RankForma
)

// rankNames holds the display name of every rank, indexed by Rank.
var rankNames = [...]string{
	RankRoot:         "root of life",
	RankNoRank:       "no rank",
	RankSuperkingdom: "superkingdom",
	RankKingdom:      "kingdom",
	RankSubkingdom:   "subkingdom",
	RankSuperphylum:  "superphylum",
	RankPhylum:       "phylum",
	RankSubphylum:    "subphylum",
	RankSuperclass:   "superclass",
	RankClass:        "class",
	RankSubclass:     "subclass",
	RankInfraclass:   "infraclass",
	RankSuperorder:   "superorder",
	RankOrder:        "order",
	RankSuborder:     "suborder",
	RankInfraorder:   "infraorder",
	RankParvorder:    "parvorder",
	RankSuperfamily:  "superfamily",
	RankFamily:       "family",
	RankSubfamily:    "subfamily",
	RankTribe:        "tribe",
	RankSubtribe:     "subtribe",
	RankGenus:        "genus",
	RankSubgenus:     "subgenus",
	RankSpeciesGroup: "species group",
	RankSpecies:      "species",
	RankSubspecies:   "subspecies",
	RankVarietas:     "varietas",
	RankForma:        "forma",
}

// rankAliases normalizes the spellings found in taxonomy dumps and database
// columns onto the canonical display names.
var rankAliases = map[string]Rank{
	"root":          RankRoot,
	"root_of_life":  RankRoot,
	"no_rank":       RankNoRank,
	"norank":        RankNoRank,
	"class_":        RankClass,
	"order_":        RankOrder,
	"species_group": RankSpeciesGroup,
	"variety":       RankVarietas,
	"form":          RankForma,
}

var ranksByName map[string]Rank

func init() {
	ranksByName = make(map[string]Rank, len(rankNames)+len(rankAliases))
	for r, name := range rankNames {
		ranksByName[name] = Rank(r)
	}
	for alias, r := range rankAliases {
		ranksByName[alias] = r
	}
}

// AllRanks returns every rank from the root sentinel down to forma.
func AllRanks() []Rank {
	ranks := make([]Rank, len(rankNames))
	for i := range rankNames {
		ranks[i] = Rank(i)
	}
	return ranks
}

// String returns the display name of the rank.
func (r Rank) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Rank(%d)", int(r))
	}
	return rankNames[r]
}

// Valid reports whether r is one of the defined ranks.
func (r Rank) Valid() bool {
	return r >= RankRoot && int(r) < len(rankNames)
}

// Previous returns the next less specific rank. The root sentinel is its own
// predecessor.
func (r Rank) Previous() Rank {
	if r <= RankRoot {
		return RankRoot
	}
	return r - 1
}

// MoreSpecificThan reports whether r sits strictly below other in the order.
func (r Rank) MoreSpecificThan(other Rank) bool {
	return r > other
}

// ParseRank maps a display name back to its Rank. Matching is case-insensitive
// and accepts underscores in place of spaces.
func ParseRank(name string) (Rank, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if r, ok := ranksByName[key]; ok {
		return r, nil
	}
	if r, ok := ranksByName[strings.ReplaceAll(key, "_", " ")]; ok {
		return r, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRank, name)
}

// MarshalText implements encoding.TextMarshaler.
func (r Rank) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid rank %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rank) UnmarshalText(text []byte) error {
	parsed, err := ParseRank(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
