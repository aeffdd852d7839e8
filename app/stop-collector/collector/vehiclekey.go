package collector

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
)

const (
	// coordinateDecimalPlaces rounds positions to roughly 1.1 meter precision
	coordinateDecimalPlaces = 5
	vehicleKeyHashLength    = 16
	vehicleKeyPrefixGarage  = "garage"
	vehicleKeyPrefixHash    = "hash"
)

// roundCoordinate rounds a coordinate to decimalPlaces. nil passes through
func roundCoordinate(value *float64, decimalPlaces int) *float64 {
	if value == nil {
		return nil
	}
	factor := math.Pow(10, float64(decimalPlaces))
	rounded := math.Round(*value*factor) / factor
	return &rounded
}

// BuildVehicleKey derives a stable identity for an observed vehicle. The garage
// number wins when present; otherwise the key is a hash of line, direction and
// the rounded position. Rounding happens before hashing so observations
// differing only by sub-meter noise collapse to one key. The querying stop's
// code is folded into the hash whenever either coordinate is missing, so
// unrelated positionless vehicles on the same line don't collide.
func BuildVehicleKey(vehicleId *string, lineNumber *string, direction *string,
	lat *float64, lon *float64, stopCode string) string {

	if vehicleId != nil && *vehicleId != "" {
		return vehicleKeyPrefixGarage + ":" + *vehicleId
	}

	roundedLat := roundCoordinate(lat, coordinateDecimalPlaces)
	roundedLon := roundCoordinate(lon, coordinateDecimalPlaces)

	keyPayload := map[string]interface{}{
		"line_number": lineNumber,
		"direction":   direction,
		"lat":         roundedLat,
		"lon":         roundedLon,
	}
	if roundedLat == nil || roundedLon == nil {
		keyPayload["stop_code"] = stopCode
	}

	// json.Marshal emits map keys in sorted order, giving a canonical encoding
	raw, _ := json.Marshal(keyPayload)
	digest := sha256.Sum256(raw)
	return vehicleKeyPrefixHash + ":" + hex.EncodeToString(digest[:])[:vehicleKeyHashLength]
}
