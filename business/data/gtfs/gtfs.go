// Package gtfs loads static gtfs reference data used to drive collection.
// Stops, routes and trips are read once per process run from csv files and
// treated as read only afterwards.
package gtfs

import "fmt"

// Stop is a physical stop location where vehicles pick up or drop off riders
type Stop struct {
	// StopId is the numeric gtfs stop identifier
	StopId int
	// StopCode is the rider facing code used to query the realtime api
	StopCode string
	StopName string
	StopLat  float64
	StopLon  float64
}

func (s Stop) String() string {
	return fmt.Sprintf("Stop{ id:%d, code:%s, name:%q }", s.StopId, s.StopCode, s.StopName)
}

// Route is a gtfs route record, loaded only when collection is scoped to named routes
type Route struct {
	RouteId        string
	RouteShortName string
	RouteLongName  string
}

// Trip is a gtfs trip record, used to join routes to the stops they serve
type Trip struct {
	TripId  string
	RouteId string
}

// FilterStopsByBBox returns the stops that fall inside the latitude/longitude bounding box
func FilterStopsByBBox(stops []Stop, minLat, maxLat, minLon, maxLon float64) []Stop {
	filtered := make([]Stop, 0, len(stops))
	for _, stop := range stops {
		if stop.StopLat < minLat || stop.StopLat > maxLat {
			continue
		}
		if stop.StopLon < minLon || stop.StopLon > maxLon {
			continue
		}
		filtered = append(filtered, stop)
	}
	return filtered
}
