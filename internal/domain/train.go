package domain

// Status is the reconciled state of a running train relative to its current station.
type Status int

const (
	StatusNotDeparted Status = 0
	StatusApproaching Status = 1
	StatusArrived     Status = 2
	StatusDeparted    Status = 3
	StatusTerminated  Status = 4
)

func (s Status) String() string {
	switch s {
	case StatusNotDeparted:
		return "not_departed"
	case StatusApproaching:
		return "approaching"
	case StatusArrived:
		return "arrived"
	case StatusDeparted:
		return "departed"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Direction is a line-dependent direction token.
type Direction string

const (
	DirectionUp   Direction = "U"
	DirectionDown Direction = "D"

	// Loop line tokens: circular service plus two branch pairs.
	DirectionInner        Direction = "I"
	DirectionOuter        Direction = "O"
	DirectionBranch1Inner Direction = "SI1"
	DirectionBranch1Outer Direction = "SO1"
	DirectionBranch2Inner Direction = "SI2"
	DirectionBranch2Outer Direction = "SO2"
)

// StationPoint is a station name with its resolved code. Code is nil when the
// name does not resolve for the line.
type StationPoint struct {
	Name string  `json:"name"`
	Code *string `json:"code"`
}

// TrainRecord is the canonical reconciled view of one running train.
type TrainRecord struct {
	TrainNumber     string        `json:"trainNumber"`
	Line            string        `json:"line"`
	FormationNumber *string       `json:"formationNumber"`
	Direction       *Direction    `json:"direction"`
	CurrentStation  *StationPoint `json:"currentStation"`
	Origin          *StationPoint `json:"origin"`
	Destination     *StationPoint `json:"destination"`
	IsExpress       bool          `json:"isExpress"`
	Status          Status        `json:"status"`
}

// DayType selects which schedule a train runs on. Values match the
// reference database encoding.
type DayType int

const (
	DayTypeWeekday          DayType = 0
	DayTypeWeekendOrHoliday DayType = 2
)

func (d DayType) String() string {
	switch d {
	case DayTypeWeekday:
		return "weekday"
	case DayTypeWeekendOrHoliday:
		return "weekend_or_holiday"
	default:
		return "unknown"
	}
}

// ScheduleFact is the static expectation for one train on one day type.
type ScheduleFact struct {
	TrainNumber     string  `json:"trainNumber"`
	DayType         DayType `json:"dayType"`
	IsExpress       bool    `json:"isExpress"`
	OriginName      string  `json:"originName"`
	DestinationName string  `json:"destinationName"`
}

// RawTrain is one per-train object as reported by the primary feed, with
// field names already mapped. Pointer fields are absent when the feed omits them.
type RawTrain struct {
	TrainNumber     string
	FormationNumber *string
	StatusCode      int
	Express         bool
	StationName     *string
	StationCode     *string
	DirectionCode   *int
	OriginName      *string
	OriginCode      *string
	DestinationName *string
	DestinationCode *string
}

// LivePosition is one secondary-feed correction keyed by bare train number.
type LivePosition struct {
	StationName     string
	DestinationName string
	// LoopDirection is the feed's raw up/down token ("0" inner, "1" outer on
	// the loop line).
	LoopDirection *string
	Express       bool
	Status        *Status
}
