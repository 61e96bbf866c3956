package reconcile

import (
	"metrotrack/internal/domain"
	"metrotrack/internal/stations"
)

// finalize runs the last pass over a draft: destination fixes and defaults,
// then terminal-status derivation. It must run after every merge.
func finalize(ref *stations.Ref, line string, profile lineProfile, d *draft) {
	rec := &d.rec

	if rec.Destination != nil {
		if fixed, ok := fixDestination(line, rec.Destination.Name); ok {
			rec.Destination = ref.Point(line, fixed)
		}
	} else if rec.Direction != nil {
		if terminal, ok := profile.terminals[*rec.Direction]; ok {
			rec.Destination = ref.Point(line, terminal)
		}
	}

	rec.Status = terminalStatus(rec)
}

func terminalStatus(rec *domain.TrainRecord) domain.Status {
	if rec.Destination == nil || rec.CurrentStation == nil {
		return rec.Status
	}
	if rec.Destination.Name != rec.CurrentStation.Name {
		return rec.Status
	}
	switch rec.Status {
	case domain.StatusApproaching, domain.StatusArrived, domain.StatusDeparted:
		return domain.StatusTerminated
	default:
		return rec.Status
	}
}
