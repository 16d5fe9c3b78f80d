package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jmylchreest/epgnow/pkg/httpclient"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

const bytesPerMB = 1024 * 1024

// Pinger checks a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerReporter reports per-host circuit breaker states.
type BreakerReporter interface {
	BreakerStates() map[string]httpclient.CircuitState
}

// Availability reports whether guide data can be served.
type Availability interface {
	IsAvailable() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        Pinger
	breakers  BreakerReporter
	guide     Availability
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithDB sets the database checked by readiness and health.
func (h *HealthHandler) WithDB(db Pinger) *HealthHandler {
	h.db = db
	return h
}

// WithBreakers sets the source of circuit breaker states.
func (h *HealthHandler) WithBreakers(b BreakerReporter) *HealthHandler {
	h.breakers = b
	return h
}

// WithGuide sets the guide checked by readiness.
func (h *HealthHandler) WithGuide(g Availability) *HealthHandler {
	h.guide = g
	return h
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getLivez",
		Method:      http.MethodGet,
		Path:        "/livez",
		Summary:     "Liveness probe",
		Tags:        []string{"System"},
	}, h.GetLivez)

	huma.Register(api, huma.Operation{
		OperationID: "getReadyz",
		Method:      http.MethodGet,
		Path:        "/readyz",
		Summary:     "Readiness probe",
		Tags:        []string{"System"},
	}, h.GetReadyz)

	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service health including host metrics, database and circuit breaker state",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// LivezInput is the input for the liveness probe.
type LivezInput struct{}

// LivezOutput is the liveness probe response.
type LivezOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// GetLivez reports the process is up.
func (h *HealthHandler) GetLivez(_ context.Context, _ *LivezInput) (*LivezOutput, error) {
	out := &LivezOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// ReadyzInput is the input for the readiness probe.
type ReadyzInput struct{}

// ReadyzOutput is the readiness probe response.
type ReadyzOutput struct {
	Body struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
}

// GetReadyz reports whether the database answers and guide data is loaded.
func (h *HealthHandler) GetReadyz(ctx context.Context, _ *ReadyzInput) (*ReadyzOutput, error) {
	out := &ReadyzOutput{}
	out.Body.Components = map[string]string{
		"database": h.databaseStatus(ctx),
		"guide":    "not_configured",
	}
	if h.guide != nil {
		if h.guide.IsAvailable() {
			out.Body.Components["guide"] = "ok"
		} else {
			out.Body.Components["guide"] = "loading"
		}
	}

	out.Body.Status = "ready"
	for _, status := range out.Body.Components {
		if status != "ok" {
			out.Body.Status = "not_ready"
		}
	}
	return out, nil
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status          string                 `json:"status"`
	Timestamp       string                 `json:"timestamp"`
	Version         string                 `json:"version"`
	Uptime          string                 `json:"uptime"`
	UptimeSeconds   float64                `json:"uptime_seconds"`
	CPU             CPUInfo                `json:"cpu"`
	Memory          MemoryInfo             `json:"memory"`
	Database        DatabaseHealth         `json:"database"`
	CircuitBreakers []CircuitBreakerStatus `json:"circuit_breakers"`
}

// CPUInfo holds load averages.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo holds system and process memory in megabytes.
type MemoryInfo struct {
	TotalMemoryMB     float64 `json:"total_memory_mb"`
	UsedMemoryMB      float64 `json:"used_memory_mb"`
	AvailableMemoryMB float64 `json:"available_memory_mb"`
	ProcessRSSMB      float64 `json:"process_rss_mb"`
	ProcessPercentage float64 `json:"process_percentage"`
	GoHeapMB          float64 `json:"go_heap_mb"`
}

// DatabaseHealth is the result of a database ping.
type DatabaseHealth struct {
	Status         string  `json:"status"`
	ResponseTimeMS float64 `json:"response_time_ms"`
}

// CircuitBreakerStatus is the state of one host's breaker.
type CircuitBreakerStatus struct {
	Host  string `json:"host"`
	State string `json:"state"`
}

// GetHealth returns the health status of the service.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	resp := HealthResponse{
		Status:          "healthy",
		Timestamp:       now.UTC().Format(time.RFC3339),
		Version:         h.version,
		Uptime:          uptime.Round(time.Second).String(),
		UptimeSeconds:   uptime.Seconds(),
		CPU:             cpuInfo(ctx),
		Memory:          memoryInfo(ctx),
		Database:        h.databaseHealth(ctx),
		CircuitBreakers: h.breakerStatuses(),
	}
	if resp.Database.Status == "error" {
		resp.Status = "degraded"
	}
	for _, b := range resp.CircuitBreakers {
		if b.State == httpclient.CircuitOpen.String() {
			resp.Status = "degraded"
		}
	}
	return &HealthOutput{Body: resp}, nil
}

func cpuInfo(ctx context.Context) CPUInfo {
	info := CPUInfo{Cores: runtime.NumCPU()}
	avg, err := load.AvgWithContext(ctx)
	if err != nil || avg == nil {
		return info
	}
	info.Load1Min = avg.Load1
	info.Load5Min = avg.Load5
	info.Load15Min = avg.Load15
	if info.Cores > 0 {
		info.LoadPercentage1Min = avg.Load1 / float64(info.Cores) * 100
	}
	return info
}

func memoryInfo(ctx context.Context) MemoryInfo {
	var info MemoryInfo

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		info.TotalMemoryMB = float64(vm.Total) / bytesPerMB
		info.UsedMemoryMB = float64(vm.Used) / bytesPerMB
		info.AvailableMemoryMB = float64(vm.Available) / bytesPerMB
	}

	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if mi, err := proc.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			info.ProcessRSSMB = float64(mi.RSS) / bytesPerMB
			if info.TotalMemoryMB > 0 {
				info.ProcessPercentage = info.ProcessRSSMB / info.TotalMemoryMB * 100
			}
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	info.GoHeapMB = float64(ms.HeapAlloc) / bytesPerMB
	return info
}

func (h *HealthHandler) databaseStatus(ctx context.Context) string {
	if h.db == nil {
		return "not_configured"
	}
	if err := h.db.Ping(ctx); err != nil {
		return "error"
	}
	return "ok"
}

func (h *HealthHandler) databaseHealth(ctx context.Context) DatabaseHealth {
	start := time.Now()
	status := h.databaseStatus(ctx)
	health := DatabaseHealth{Status: status}
	if status != "not_configured" {
		health.ResponseTimeMS = float64(time.Since(start).Microseconds()) / 1000
	}
	return health
}

func (h *HealthHandler) breakerStatuses() []CircuitBreakerStatus {
	out := make([]CircuitBreakerStatus, 0)
	if h.breakers == nil {
		return out
	}
	for host, state := range h.breakers.BreakerStates() {
		out = append(out, CircuitBreakerStatus{Host: host, State: state.String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	return out
}
