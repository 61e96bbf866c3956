package reconcile

import "metrotrack/internal/domain"

// Correction tables. These record known operator data errors; keep them as
// data so each entry can be reviewed and tested on its own.

type lineProfile struct {
	// directions is indexed by the primary feed's direction code minus one.
	directions []domain.Direction
	loop       bool

	// secondaryName is the display name the secondary feed is queried by.
	// Lines without one are not corrected from the secondary feed.
	secondaryName string
	// secondaryStationWins lets the secondary feed replace a current station
	// the primary feed already resolved.
	secondaryStationWins bool

	// terminals is the default destination per direction when no source
	// supplied one.
	terminals map[domain.Direction]string
	// loopTerminal stands in for a circular destination with no origin.
	loopTerminal string
}

var (
	upDown = []domain.Direction{domain.DirectionUp, domain.DirectionDown}

	loopDirections = []domain.Direction{
		domain.DirectionInner,
		domain.DirectionOuter,
		domain.DirectionBranch1Inner,
		domain.DirectionBranch1Outer,
		domain.DirectionBranch2Inner,
		domain.DirectionBranch2Outer,
	}
)

var defaultProfile = lineProfile{directions: upDown}

var lineProfiles = map[string]lineProfile{
	"1": {
		directions:    upDown,
		secondaryName: "1호선",
	},
	"2": {
		directions:           loopDirections,
		loop:                 true,
		secondaryName:        "2호선",
		secondaryStationWins: true,
		loopTerminal:         "성수",
	},
	"3": {
		directions:    upDown,
		secondaryName: "3호선",
		terminals: map[domain.Direction]string{
			domain.DirectionUp:   "대화",
			domain.DirectionDown: "오금",
		},
	},
	"4": {
		directions:    upDown,
		secondaryName: "4호선",
		terminals: map[domain.Direction]string{
			domain.DirectionUp:   "당고개",
			domain.DirectionDown: "오이도",
		},
	},
}

func profileFor(line string) lineProfile {
	if p, ok := lineProfiles[line]; ok {
		return p
	}
	return defaultProfile
}

// stationAliases maps shortened names to the canonical station name.
var stationAliases = map[string]map[string]string{
	"1": {"서울": "서울역"},
	"4": {"서울": "서울역"},
}

// loopPlaceholderCodes are destination codes meaning "inner/outer circular".
var loopPlaceholderCodes = map[string]struct{}{
	"88_1": {},
	"88_2": {},
}

// loopDirectionTokens maps the secondary feed's up/down token on the loop
// line to a direction.
var loopDirectionTokens = map[string]domain.Direction{
	"0": domain.DirectionInner,
	"1": domain.DirectionOuter,
}

// ambiguousDestinations are primary-feed destinations the secondary feed may
// replace even when already set.
var ambiguousDestinations = map[string]map[string]struct{}{
	"1": {"동대문": {}},
}

// destinationFixes rewrite long-standing wrong destination names.
var destinationFixes = map[string]map[string]string{
	"1": {
		"서울":  "서울역",
		"수원":  "서동탄",
		"동대문": "구로",
	},
}

func aliasStation(line, name string) string {
	if alias, ok := stationAliases[line][name]; ok {
		return alias
	}
	return name
}

func isAmbiguousDestination(line, name string) bool {
	_, ok := ambiguousDestinations[line][name]
	return ok
}

func fixDestination(line, name string) (string, bool) {
	fixed, ok := destinationFixes[line][name]
	return fixed, ok
}
