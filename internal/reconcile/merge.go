package reconcile

import (
	"metrotrack/internal/domain"
	"metrotrack/internal/stations"
	"metrotrack/internal/trainno"
)

// applySchedule merges a reference-database fact into d. The fact wins over
// the live feed for destination and express.
func applySchedule(ref *stations.Ref, d *draft, fact *domain.ScheduleFact) {
	line := d.rec.Line
	origin := cleanStation(line, fact.OriginName)

	if d.rec.CurrentStation != nil && origin != "" && d.rec.CurrentStation.Name == origin &&
		(d.rec.Status == domain.StatusApproaching || d.rec.Status == domain.StatusArrived) {
		d.rec.Status = domain.StatusNotDeparted
	}

	if d.rec.Origin == nil && origin != "" {
		d.rec.Origin = ref.Point(line, origin)
	}

	if dst := cleanStation(line, fact.DestinationName); dst != "" {
		d.rec.Destination = ref.Point(line, dst)
	}
	d.rec.IsExpress = fact.IsExpress
	d.scheduled = true
}

// applyPositions merges secondary-feed positions into drafts and returns how
// many drafts matched. A nil map leaves drafts untouched.
func applyPositions(ref *stations.Ref, line string, profile lineProfile, drafts []*draft, positions map[string]domain.LivePosition) int {
	if positions == nil {
		return 0
	}

	matched := 0
	for _, d := range drafts {
		bare, err := trainno.Bare(d.rec.TrainNumber)
		if err != nil {
			continue
		}
		pos, ok := positions[bare]
		if !ok {
			continue
		}
		applyPosition(ref, line, profile, d, pos)
		matched++
	}
	return matched
}

func applyPosition(ref *stations.Ref, line string, profile lineProfile, d *draft, pos domain.LivePosition) {
	if !d.scheduled {
		d.rec.IsExpress = pos.Express
	}

	if current := cleanStation(line, pos.StationName); current != "" {
		if d.rec.CurrentStation == nil || profile.secondaryStationWins {
			d.rec.CurrentStation = ref.Point(line, current)
		}
	}

	if d.rec.Direction == nil && profile.loop && pos.LoopDirection != nil {
		if dir, ok := loopDirectionTokens[*pos.LoopDirection]; ok {
			d.rec.Direction = &dir
		}
	}

	if dst := cleanStation(line, pos.DestinationName); dst != "" && !d.scheduled {
		if d.rec.Destination == nil || isAmbiguousDestination(line, d.rec.Destination.Name) {
			d.rec.Destination = ref.Point(line, dst)
		}
	}

	if pos.Status != nil {
		d.rec.Status = *pos.Status
	}
}
