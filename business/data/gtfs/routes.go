package gtfs

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadRoutes loads routes from a gtfs routes csv file, restricted to the
// given route short names. shortNames must be non empty
func LoadRoutes(path string, shortNames map[string]bool) ([]Route, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening routes file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	return loadRoutes(file, path, shortNames)
}

func loadRoutes(r io.Reader, filename string, shortNames map[string]bool) ([]Route, error) {
	parser, err := makeCSVFileParser(r, filename)
	if err != nil {
		return nil, err
	}

	var routes []Route
	for {
		err = parser.nextLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filename, err)
		}

		routeId := strings.TrimSpace(parser.getString("route_id", true))
		shortName := strings.TrimSpace(parser.getString("route_short_name", true))
		if routeId == "" || shortName == "" {
			parser.clearErrors()
			continue
		}
		if !shortNames[shortName] {
			continue
		}
		routes = append(routes, Route{
			RouteId:        routeId,
			RouteShortName: shortName,
			RouteLongName:  strings.TrimSpace(parser.getString("route_long_name", true)),
		})
	}
	if err = parser.getError(); err != nil {
		return nil, err
	}
	return routes, nil
}

// LoadTrips loads trips from a gtfs trips csv file, restricted to the given route ids
func LoadTrips(path string, routeIds map[string]bool) ([]Trip, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trips file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	return loadTrips(file, path, routeIds)
}

func loadTrips(r io.Reader, filename string, routeIds map[string]bool) ([]Trip, error) {
	parser, err := makeCSVFileParser(r, filename)
	if err != nil {
		return nil, err
	}

	var trips []Trip
	for {
		err = parser.nextLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filename, err)
		}

		tripId := strings.TrimSpace(parser.getString("trip_id", true))
		routeId := strings.TrimSpace(parser.getString("route_id", true))
		if tripId == "" || routeId == "" {
			parser.clearErrors()
			continue
		}
		if !routeIds[routeId] {
			continue
		}
		trips = append(trips, Trip{TripId: tripId, RouteId: routeId})
	}
	if err = parser.getError(); err != nil {
		return nil, err
	}
	return trips, nil
}

// LoadStopIdsForTrips reads a gtfs stop_times csv file and collects the set of
// stop ids served by the given trip ids
func LoadStopIdsForTrips(path string, tripIds map[string]bool) (map[int]bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stop_times file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	return loadStopIdsForTrips(file, path, tripIds)
}

func loadStopIdsForTrips(r io.Reader, filename string, tripIds map[string]bool) (map[int]bool, error) {
	parser, err := makeCSVFileParser(r, filename)
	if err != nil {
		return nil, err
	}

	stopIds := make(map[int]bool)
	for {
		err = parser.nextLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filename, err)
		}

		tripId := strings.TrimSpace(parser.getString("trip_id", true))
		stopId := parser.getInt("stop_id", true)
		if tripId == "" || stopId == nil {
			parser.clearErrors()
			continue
		}
		if !tripIds[tripId] {
			continue
		}
		stopIds[*stopId] = true
	}
	if err = parser.getError(); err != nil {
		return nil, err
	}
	return stopIds, nil
}

// StopsForRoutes resolves the unique stops served by the named routes by joining
// routes to trips to stop_times against the full stop list
func StopsForRoutes(routesPath string, tripsPath string, stopTimesPath string,
	shortNames map[string]bool, allStops []Stop) ([]Stop, error) {

	routes, err := LoadRoutes(routesPath, shortNames)
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("no routes found matching route short names")
	}

	routeIds := make(map[string]bool)
	for _, route := range routes {
		routeIds[route.RouteId] = true
	}
	trips, err := LoadTrips(tripsPath, routeIds)
	if err != nil {
		return nil, err
	}

	tripIds := make(map[string]bool)
	for _, trip := range trips {
		tripIds[trip.TripId] = true
	}
	stopIds, err := LoadStopIdsForTrips(stopTimesPath, tripIds)
	if err != nil {
		return nil, err
	}

	var stops []Stop
	for _, stop := range allStops {
		if stopIds[stop.StopId] {
			stops = append(stops, stop)
		}
	}
	return stops, nil
}

// ParseRouteNames splits comma separated route short name arguments into a set.
// returns nil when no names are present
func ParseRouteNames(values []string) map[string]bool {
	names := make(map[string]bool)
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				names[trimmed] = true
			}
		}
	}
	if len(names) == 0 {
		return nil
	}
	return names
}
