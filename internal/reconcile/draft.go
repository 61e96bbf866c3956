package reconcile

import (
	"strings"

	"metrotrack/internal/domain"
	"metrotrack/internal/stations"
	"metrotrack/internal/trainno"
)

type draft struct {
	rec domain.TrainRecord
	// scheduled marks destination and express as taken from the reference
	// database; later sources may not replace them.
	scheduled bool
}

// buildDrafts constructs one draft per distinct train number, in feed order.
// A repeated train number updates the position of the first draft.
func (e *Engine) buildDrafts(line string, profile lineProfile, raws []domain.RawTrain, queriedStation string) ([]*draft, error) {
	drafts := make([]*draft, 0, len(raws))
	byNumber := make(map[string]*draft, len(raws))

	for _, raw := range raws {
		number, err := trainno.Normalize(line, raw.TrainNumber)
		if err != nil {
			return nil, err
		}

		origin := stationName(line, raw.OriginName)
		current := currentStationName(line, raw.StationName, queriedStation)

		if d, ok := byNumber[number]; ok {
			if current != "" {
				d.rec.CurrentStation = e.stations.Point(line, current)
				e.checkCode(line, number, d.rec.CurrentStation, raw.StationCode)
			}
			d.rec.Status = seedStatus(domain.Status(raw.StatusCode), origin, current, queriedStation)
			continue
		}

		rec := domain.TrainRecord{
			TrainNumber:     number,
			Line:            line,
			FormationNumber: formationNumber(raw.FormationNumber),
			Direction:       direction(profile, raw.DirectionCode),
			IsExpress:       raw.Express,
			Status:          seedStatus(domain.Status(raw.StatusCode), origin, current, queriedStation),
		}
		if current != "" {
			rec.CurrentStation = e.stations.Point(line, current)
			e.checkCode(line, number, rec.CurrentStation, raw.StationCode)
		}
		if origin != "" {
			rec.Origin = e.stations.Point(line, origin)
			e.checkCode(line, number, rec.Origin, raw.OriginCode)
		}
		rec.Destination = destination(e.stations, line, profile, raw, rec.Origin)

		d := &draft{rec: rec}
		drafts = append(drafts, d)
		byNumber[number] = d
	}

	return drafts, nil
}

// checkCode logs a feed station code that disagrees with the station
// reference. The reference code is kept.
func (e *Engine) checkCode(line, train string, p *domain.StationPoint, feedCode *string) {
	if p == nil || feedCode == nil {
		return
	}
	if p.Code != nil && *p.Code == *feedCode {
		return
	}
	ref := ""
	if p.Code != nil {
		ref = *p.Code
	}
	e.logger.Debug("feed station code disagrees with station reference",
		"line", line,
		"train", train,
		"station", p.Name,
		"feed_code", *feedCode,
		"ref_code", ref,
	)
}

// stationName cleans and canonicalizes a feed station name; "" if absent.
func stationName(line string, name *string) string {
	if name == nil {
		return ""
	}
	return cleanStation(line, *name)
}

func cleanStation(line, name string) string {
	name = stations.CleanName(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	return aliasStation(line, name)
}

func currentStationName(line string, name *string, queriedStation string) string {
	if n := stationName(line, name); n != "" {
		return n
	}
	return queriedStation
}

// seedStatus takes the feed status, except that a train still at its origin
// is reported as not yet departed.
func seedStatus(status domain.Status, origin, current, queriedStation string) domain.Status {
	if status != domain.StatusApproaching && status != domain.StatusArrived {
		return status
	}
	if origin == "" {
		return status
	}
	if origin == current || (queriedStation != "" && origin == queriedStation) {
		return domain.StatusNotDeparted
	}
	return status
}

func formationNumber(raw *string) *string {
	if raw == nil {
		return nil
	}
	n := strings.TrimLeft(strings.TrimSpace(*raw), "0")
	if n == "" {
		return nil
	}
	return &n
}

func direction(profile lineProfile, code *int) *domain.Direction {
	if code == nil || *code < 1 || *code > len(profile.directions) {
		return nil
	}
	d := profile.directions[*code-1]
	return &d
}

func destination(ref *stations.Ref, line string, profile lineProfile, raw domain.RawTrain, origin *domain.StationPoint) *domain.StationPoint {
	if profile.loop && raw.DestinationCode != nil {
		if _, ok := loopPlaceholderCodes[*raw.DestinationCode]; ok {
			if origin != nil {
				o := *origin
				return &o
			}
			if profile.loopTerminal != "" {
				return ref.Point(line, profile.loopTerminal)
			}
			return nil
		}
	}

	name := stationName(line, raw.DestinationName)
	if name == "" {
		return nil
	}
	return ref.Point(line, name)
}
