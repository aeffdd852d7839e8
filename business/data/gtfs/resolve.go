package gtfs

import (
	"fmt"
)

//Paths locates the gtfs csv files used to resolve the stop set
type Paths struct {
	Stops     string
	Routes    string
	Trips     string
	StopTimes string
}

//BBox bounds stops by coordinate, inclusive on all edges
type BBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

//StopFilter narrows the stop set that will be collected from
type StopFilter struct {
	StopCodes  map[string]bool
	RouteNames map[string]bool
	Limit      int
	BBox       *BBox
}

//ResolveStops loads stops.txt and applies filter, joining through routes.txt,
//trips.txt and stop_times.txt when route names are given. The stop code and
//limit filters apply while reading when no other filter needs the full set.
func ResolveStops(paths Paths, filter StopFilter) ([]Stop, error) {
	if filter.RouteNames == nil && filter.BBox == nil {
		return LoadStops(paths.Stops, filter.StopCodes, filter.Limit)
	}

	stops, err := LoadStops(paths.Stops, filter.StopCodes, 0)
	if err != nil {
		return nil, err
	}

	if filter.BBox != nil {
		stops = FilterStopsByBBox(stops,
			filter.BBox.MinLat, filter.BBox.MaxLat, filter.BBox.MinLon, filter.BBox.MaxLon)
	}

	if filter.RouteNames != nil {
		stops, err = StopsForRoutes(paths.Routes, paths.Trips, paths.StopTimes,
			filter.RouteNames, stops)
		if err != nil {
			return nil, fmt.Errorf("unable to resolve stops for routes: %w", err)
		}
	}

	if filter.Limit > 0 && len(stops) > filter.Limit {
		stops = stops[:filter.Limit]
	}
	return stops, nil
}
