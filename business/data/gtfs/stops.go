package gtfs

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadStops loads stops from a gtfs stops csv file.
// stopCodes, when non nil, restricts the result to those codes. limit, when positive,
// stops loading after that many stops. Rows missing a stop code, stop id or
// coordinates are skipped rather than treated as fatal.
func LoadStops(path string, stopCodes map[string]bool, limit int) ([]Stop, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stops file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	return loadStops(file, path, stopCodes, limit)
}

func loadStops(r io.Reader, filename string, stopCodes map[string]bool, limit int) ([]Stop, error) {
	parser, err := makeCSVFileParser(r, filename)
	if err != nil {
		return nil, err
	}

	var stops []Stop
	for {
		err = parser.nextLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filename, err)
		}

		stopCode := strings.TrimSpace(parser.getString("stop_code", true))
		stopId := parser.getInt("stop_id", true)
		stopLat := parser.getFloat64("stop_lat", true)
		stopLon := parser.getFloat64("stop_lon", true)
		if stopCode == "" || stopId == nil || stopLat == nil || stopLon == nil {
			parser.clearErrors()
			continue
		}
		if stopCodes != nil && !stopCodes[stopCode] {
			continue
		}

		stops = append(stops, Stop{
			StopId:   *stopId,
			StopCode: stopCode,
			StopName: strings.TrimSpace(parser.getString("stop_name", true)),
			StopLat:  *stopLat,
			StopLon:  *stopLon,
		})
		if limit > 0 && len(stops) >= limit {
			break
		}
	}
	if err = parser.getError(); err != nil {
		return nil, err
	}
	return stops, nil
}

// ParseStopCodes splits comma separated stop code arguments into a set.
// returns nil when no codes are present so callers can treat nil as "no filter"
func ParseStopCodes(values []string) map[string]bool {
	codes := make(map[string]bool)
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				codes[trimmed] = true
			}
		}
	}
	if len(codes) == 0 {
		return nil
	}
	return codes
}
