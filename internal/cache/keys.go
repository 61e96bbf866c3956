package cache

import "fmt"

func KeyLineTrains(line string) string {
	return fmt.Sprintf("trains:line:%s", line)
}

func KeyStationTrains(line, stationCode string) string {
	return fmt.Sprintf("trains:station:%s:%s", line, stationCode)
}
