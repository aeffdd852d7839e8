package collector

import (
	"context"
	"encoding/json"
	logger "log"
	"path/filepath"
	"time"

	"github.com/UrbanObservatory/stopcast/business/data/arrivals"
	"github.com/UrbanObservatory/stopcast/foundation/jsonl"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
)

// recorder takes records built during a cycle and sends them to a destination.
// Implementations must never let a sink failure escape, the cycle goes on.
type recorder interface {
	prediction(record *arrivals.PredictionRecord)
	vehicle(record *arrivals.VehicleRecord)
	fetchError(record *arrivals.ErrorRecord)
	cycle(record *arrivals.CycleRecord)

	// close flushes anything buffered and releases resources
	close()
}

// dbRecorder batches records per table and writes them to the analytical store
type dbRecorder struct {
	predictions *batchWriter[arrivals.PredictionRecord]
	vehicles    *batchWriter[arrivals.VehicleRecord]
	errors      *batchWriter[arrivals.ErrorRecord]
	cycles      *batchWriter[arrivals.CycleRecord]
}

func makeDBRecorder(log *logger.Logger, db *sqlx.DB, batchSize int, sinkTimeout time.Duration) *dbRecorder {
	return &dbRecorder{
		predictions: makeBatchWriter(log, arrivals.TablePredictions, batchSize,
			func(records []arrivals.PredictionRecord) error {
				ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
				defer cancel()
				return arrivals.InsertPredictionRecords(ctx, db, records)
			}),
		vehicles: makeBatchWriter(log, arrivals.TableVehicles, batchSize,
			func(records []arrivals.VehicleRecord) error {
				ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
				defer cancel()
				return arrivals.InsertVehicleRecords(ctx, db, records)
			}),
		errors: makeBatchWriter(log, arrivals.TableErrors, batchSize,
			func(records []arrivals.ErrorRecord) error {
				ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
				defer cancel()
				return arrivals.InsertErrorRecords(ctx, db, records)
			}),
		cycles: makeBatchWriter(log, arrivals.TableCycles, batchSize,
			func(records []arrivals.CycleRecord) error {
				ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
				defer cancel()
				return arrivals.InsertCycleRecords(ctx, db, records)
			}),
	}
}

func (d *dbRecorder) prediction(record *arrivals.PredictionRecord) {
	d.predictions.write(*record)
}

func (d *dbRecorder) vehicle(record *arrivals.VehicleRecord) {
	d.vehicles.write(*record)
}

func (d *dbRecorder) fetchError(record *arrivals.ErrorRecord) {
	d.errors.write(*record)
}

func (d *dbRecorder) cycle(record *arrivals.CycleRecord) {
	d.cycles.write(*record)
}

func (d *dbRecorder) close() {
	d.predictions.close()
	d.vehicles.close()
	d.errors.close()
	d.cycles.close()
}

// jsonlRecorder appends records to date partitioned line delimited json files
type jsonlRecorder struct {
	log         *logger.Logger
	predictions *jsonl.Writer
	vehicles    *jsonl.Writer
	errors      *jsonl.Writer
	cycles      *jsonl.Writer
}

// makeJsonlRecorder opens the output files for one cycle under
// outputDir/YYYY/MM/DD. The cycles file is shared across cycles of a day.
func makeJsonlRecorder(log *logger.Logger, outputDir string, cycleId string,
	startedAt time.Time) (*jsonlRecorder, error) {

	dateDir := filepath.Join(outputDir, startedAt.UTC().Format("2006/01/02"))

	var opened []*jsonl.Writer
	closeOpened := func() {
		for _, writer := range opened {
			_ = writer.Close()
		}
	}

	predictions, err := jsonl.OpenWriter(filepath.Join(dateDir, "stop_predictions_"+cycleId+".jsonl"))
	if err != nil {
		return nil, err
	}
	opened = append(opened, predictions)
	vehicles, err := jsonl.OpenWriter(filepath.Join(dateDir, "vehicles_"+cycleId+".jsonl"))
	if err != nil {
		closeOpened()
		return nil, err
	}
	opened = append(opened, vehicles)
	errors, err := jsonl.OpenWriter(filepath.Join(dateDir, "errors_"+cycleId+".jsonl"))
	if err != nil {
		closeOpened()
		return nil, err
	}
	opened = append(opened, errors)
	cycles, err := jsonl.OpenWriter(filepath.Join(dateDir, "cycles.jsonl"))
	if err != nil {
		closeOpened()
		return nil, err
	}
	return &jsonlRecorder{
		log:         log,
		predictions: predictions,
		vehicles:    vehicles,
		errors:      errors,
		cycles:      cycles,
	}, nil
}

func (j *jsonlRecorder) append(writer *jsonl.Writer, record interface{}) {
	if err := writer.Append(record); err != nil {
		j.log.Printf("failed to append record to %s, error:%v", writer.Path(), err)
	}
}

func (j *jsonlRecorder) prediction(record *arrivals.PredictionRecord) {
	j.append(j.predictions, record)
}

func (j *jsonlRecorder) vehicle(record *arrivals.VehicleRecord) {
	j.append(j.vehicles, record)
}

func (j *jsonlRecorder) fetchError(record *arrivals.ErrorRecord) {
	j.append(j.errors, record)
}

func (j *jsonlRecorder) cycle(record *arrivals.CycleRecord) {
	j.append(j.cycles, record)
}

func (j *jsonlRecorder) close() {
	for _, writer := range []*jsonl.Writer{j.predictions, j.vehicles, j.errors, j.cycles} {
		if err := writer.Close(); err != nil {
			j.log.Printf("failed to close %s, error:%v", writer.Path(), err)
		}
	}
}

// natsRecorder publishes records as json messages for live consumers.
// The connection is shared and owned by the caller.
type natsRecorder struct {
	log           *logger.Logger
	natsConn      *nats.Conn
	subjectPrefix string
}

func makeNatsRecorder(log *logger.Logger, natsConn *nats.Conn, subjectPrefix string) *natsRecorder {
	return &natsRecorder{
		log:           log,
		natsConn:      natsConn,
		subjectPrefix: subjectPrefix,
	}
}

func (n *natsRecorder) publish(subject string, record interface{}) {
	jsonData, err := json.Marshal(record)
	if err != nil {
		n.log.Printf("error marshaling record for subject %s, error:%v", subject, err)
		return
	}
	if err = n.natsConn.Publish(n.subjectPrefix+"."+subject, jsonData); err != nil {
		n.log.Printf("error publishing record to subject %s, error:%v", subject, err)
	}
}

func (n *natsRecorder) prediction(record *arrivals.PredictionRecord) {
	n.publish("predictions", record)
}

func (n *natsRecorder) vehicle(record *arrivals.VehicleRecord) {
	n.publish("vehicles", record)
}

func (n *natsRecorder) fetchError(record *arrivals.ErrorRecord) {
	n.publish("errors", record)
}

func (n *natsRecorder) cycle(record *arrivals.CycleRecord) {
	n.publish("cycles", record)
}

func (n *natsRecorder) close() {
	if err := n.natsConn.Flush(); err != nil {
		n.log.Printf("error flushing nats connection, error:%v", err)
	}
}

// multiRecorder fans records out to every configured destination
type multiRecorder []recorder

func (m multiRecorder) prediction(record *arrivals.PredictionRecord) {
	for _, r := range m {
		r.prediction(record)
	}
}

func (m multiRecorder) vehicle(record *arrivals.VehicleRecord) {
	for _, r := range m {
		r.vehicle(record)
	}
}

func (m multiRecorder) fetchError(record *arrivals.ErrorRecord) {
	for _, r := range m {
		r.fetchError(record)
	}
}

func (m multiRecorder) cycle(record *arrivals.CycleRecord) {
	for _, r := range m {
		r.cycle(record)
	}
}

func (m multiRecorder) close() {
	for _, r := range m {
		r.close()
	}
}
