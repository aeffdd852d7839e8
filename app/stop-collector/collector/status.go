package collector

import (
	"context"
	"encoding/json"
	logger "log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/UrbanObservatory/stopcast/business/data/arrivals"
	"github.com/gorilla/mux"
)

//defaultHttpHandler simple default http handler for default route
type defaultHttpHandler struct {
}

//ServeHTTP implements defaultHttpHandler http.Handler interface
func (h *defaultHttpHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Application-Status", "OK")
}

//statusMonitor holds the most recent collection cycle summary for the status endpoint
type statusMonitor struct {
	mu              sync.Mutex
	startedAt       time.Time
	lastCycle       *arrivals.CycleRecord
	trackedVehicles int
}

//makeStatusMonitor statusMonitor factory
func makeStatusMonitor(startedAt time.Time) *statusMonitor {
	return &statusMonitor{
		startedAt: startedAt,
	}
}

//recordCycle stores the latest cycle summary and tracker size
func (s *statusMonitor) recordCycle(cycle arrivals.CycleRecord, trackedVehicles int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCycle = &cycle
	s.trackedVehicles = trackedVehicles
}

//snapshot builds a statusResponse from the current monitor state
func (s *statusMonitor) snapshot(now time.Time) statusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return statusResponse{
		UptimeSeconds:   int64(now.Sub(s.startedAt).Seconds()),
		TrackedVehicles: s.trackedVehicles,
		LastCycle:       s.lastCycle,
	}
}

//statusResponse json response for the status endpoint
type statusResponse struct {
	UptimeSeconds   int64                 `json:"uptime_seconds"`
	TrackedVehicles int                   `json:"tracked_vehicles"`
	LastCycle       *arrivals.CycleRecord `json:"last_cycle"`
}

//statusHandler responds to status requests with the latest cycle summary
type statusHandler struct {
	log     *logger.Logger
	monitor *statusMonitor
}

//ServeHTTP implements statusHandler's http.Handler interface
func (s *statusHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	jsonData, err := json.Marshal(s.monitor.snapshot(time.Now()))
	if err != nil {
		s.log.Printf("Error marshaling status response, error:%v", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(jsonData)
	if err != nil {
		s.log.Printf("Error writing status response, error:%s", err)
	}
}

//createStatusServer creates configured http.Server for responding to status requests
func createStatusServer(log *logger.Logger,
	monitor *statusMonitor,
	httpPort int) *http.Server {

	r := mux.NewRouter()
	r.Handle("/", &defaultHttpHandler{})
	r.Handle("/status", &statusHandler{log: log, monitor: monitor})
	srv := &http.Server{
		Addr: strings.Join([]string{"0.0.0.0", strconv.Itoa(httpPort)}, ":"),
		// Good practice to set timeouts to avoid Slowloris attacks.
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      r,
	}
	return srv
}

//runStatusWebService starts up status web service, and terminates on shutdown signal
func runStatusWebService(log *logger.Logger,
	wg *sync.WaitGroup,
	monitor *statusMonitor,
	httpPort int,
	shutdownSignal chan bool,
) {
	wg.Add(1)
	defer wg.Done()
	srv := createStatusServer(log, monitor, httpPort)
	log.Printf("Starting status server on port %d", httpPort)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Printf("server ListenAndServe ended. %s", err)
		}
	}()
	shutdownCtx, serverCancelFunc := context.WithTimeout(context.Background(), time.Duration(5)*time.Second)
	defer serverCancelFunc()

	<-shutdownSignal
	log.Printf("ending status webservice on shutdown signal")
	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		log.Printf("error shutting down status webservice, error:%s", err)
	}
}
