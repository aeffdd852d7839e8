package collector

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/UrbanObservatory/stopcast/business/data/arrivals"
	"github.com/matryer/is"
)

func TestJsonlRecorder_WritesDatePartitionedFiles(t *testing.T) {
	is := is.New(t)

	outputDir := t.TempDir()
	startedAt := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	recorder, err := makeJsonlRecorder(testLogger(), outputDir, "20260829T120000Z", startedAt)
	is.NoErr(err)

	recorder.prediction(&arrivals.PredictionRecord{
		ObservedAt: "2026-08-29T12:00:00.000Z",
		CycleId:    "20260829T120000Z",
		StopId:     10,
		StopCode:   "1234",
		VehicleKey: "garage:P93123",
	})
	recorder.cycle(&arrivals.CycleRecord{CycleId: "20260829T120000Z"})
	recorder.close()

	dateDir := filepath.Join(outputDir, "2026", "08", "29")
	contents, err := os.ReadFile(filepath.Join(dateDir, "stop_predictions_20260829T120000Z.jsonl"))
	is.NoErr(err)
	is.True(strings.Contains(string(contents), `"vehicle_key":"garage:P93123"`))
	is.True(strings.HasSuffix(string(contents), "\n"))

	contents, err = os.ReadFile(filepath.Join(dateDir, "cycles.jsonl"))
	is.NoErr(err)
	is.True(strings.Contains(string(contents), `"cycle_id":"20260829T120000Z"`))
}

func TestMakeJsonlRecorder_ClosesOpenedFilesOnError(t *testing.T) {
	is := is.New(t)

	outputDir := t.TempDir()
	startedAt := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	dateDir := filepath.Join(outputDir, "2026", "08", "29")

	// a directory squatting on the vehicles file path makes the second open fail
	is.NoErr(os.MkdirAll(filepath.Join(dateDir, "vehicles_20260829T120000Z.jsonl"), 0o755))

	fdsBefore := openFdCount(t)
	recorder, err := makeJsonlRecorder(testLogger(), outputDir, "20260829T120000Z", startedAt)
	is.True(err != nil)
	is.True(recorder == nil)

	if fdsBefore > 0 {
		is.Equal(openFdCount(t), fdsBefore)
	}
}

// openFdCount reports the number of open file descriptors, 0 where /proc is unavailable
func openFdCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		return 0
	}
	return len(entries)
}
