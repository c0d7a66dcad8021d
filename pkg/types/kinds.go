package types

// Primary object kinds. Every record in the database is one of these.
const (
	KindPerson     = "person"
	KindFamily     = "family"
	KindEvent      = "event"
	KindPlace      = "place"
	KindSource     = "source"
	KindCitation   = "citation"
	KindRepository = "repository"
	KindMedia      = "media"
	KindNote       = "note"
	KindTag        = "tag"
)

// AllKinds lists every primary object kind for enumeration. Order is the
// order tables are created and bulk passes run in.
var AllKinds = []string{
	KindPerson,
	KindFamily,
	KindEvent,
	KindPlace,
	KindSource,
	KindCitation,
	KindRepository,
	KindMedia,
	KindNote,
	KindTag,
}

// displayIDPrefixes maps each kind to the letter used when minting
// display ids (person → I0001, family → F0001, and so on).
var displayIDPrefixes = map[string]string{
	KindPerson:     "I",
	KindFamily:     "F",
	KindEvent:      "E",
	KindPlace:      "P",
	KindSource:     "S",
	KindCitation:   "C",
	KindRepository: "R",
	KindMedia:      "O",
	KindNote:       "N",
	KindTag:        "T",
}

// DisplayIDPrefix returns the minting prefix for the given kind, or "X"
// for kinds without a registered prefix.
func DisplayIDPrefix(kind string) string {
	if p, ok := displayIDPrefixes[kind]; ok {
		return p
	}
	return "X"
}

// IsKind reports whether name is a recognized primary object kind.
func IsKind(name string) bool {
	_, ok := displayIDPrefixes[name]
	return ok
}
