package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/aristath/papertrail/internal/database"
	"github.com/aristath/papertrail/internal/modules/pricing"
	"github.com/aristath/papertrail/internal/reliability"
	"github.com/aristath/papertrail/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Counter counts rows of one ledger table
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// PriceRefresher updates current prices of open positions
type PriceRefresher interface {
	Refresh(ctx context.Context) (*pricing.RefreshResult, error)
}

// BackupLister lists local backup archives
type BackupLister interface {
	ListLocal() ([]reliability.BackupInfo, error)
}

// SystemStatusResponse represents system status
type SystemStatusResponse struct {
	Status        string   `json:"status"` // "healthy" or "unhealthy"
	StartedAt     string   `json:"started_at"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	CPUPercent    float64  `json:"cpu_percent"`
	MemoryPercent float64  `json:"memory_percent"`
	LedgerEvents  int      `json:"ledger_events"`
	OpenPositions int      `json:"open_positions"`
	Jobs          []string `json:"jobs"`
}

// DatabaseStatsResponse represents database statistics
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// DBInfo represents one database's statistics
type DBInfo struct {
	Name          string  `json:"name"`
	Path          string  `json:"path"`
	SizeMB        float64 `json:"size_mb"`
	WALSizeMB     float64 `json:"wal_size_mb"`
	PageCount     int64   `json:"page_count"`
	FreelistCount int64   `json:"freelist_count"`
}

// SystemHandlers handles system-wide monitoring and operations endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	databases   map[string]*database.DB
	events      Counter
	positions   Counter
	refresher   PriceRefresher
	backups     BackupLister
	scheduler   *scheduler.Scheduler
	jobs        map[string]scheduler.Job
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	databases map[string]*database.DB,
	events Counter,
	positions Counter,
	refresher PriceRefresher,
	backups BackupLister,
) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		startupTime: time.Now(),
		databases:   databases,
		events:      events,
		positions:   positions,
		refresher:   refresher,
		backups:     backups,
		jobs:        make(map[string]scheduler.Job),
	}
}

// SetJobs registers job instances for manual triggering via API
func (h *SystemHandlers) SetJobs(s *scheduler.Scheduler, jobs ...scheduler.Job) {
	h.scheduler = s
	for _, job := range jobs {
		if job != nil {
			h.jobs[job.Name()] = job
		}
	}
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	events, err := h.events.Count(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count ledger events")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	positions, err := h.positions.Count(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count open positions")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}

	cpuPercent, memPercent := h.getSystemStats()

	h.writeJSON(w, http.StatusOK, SystemStatusResponse{
		Status:        "healthy",
		StartedAt:     h.startupTime.UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		LedgerEvents:  events,
		OpenPositions: positions,
		Jobs:          h.jobNames(),
	})
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.databases))
	for name := range h.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	response := DatabaseStatsResponse{
		Databases:   make([]DBInfo, 0, len(names)),
		LastChecked: time.Now().UTC().Format(time.RFC3339),
	}
	for _, name := range names {
		db := h.databases[name]
		if db == nil {
			continue
		}
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to read database stats")
			continue
		}
		info := DBInfo{
			Name:          name,
			Path:          db.Path(),
			SizeMB:        float64(stats.SizeBytes) / 1024 / 1024,
			WALSizeMB:     float64(stats.WALSizeBytes) / 1024 / 1024,
			PageCount:     stats.PageCount,
			FreelistCount: stats.FreelistCount,
		}
		response.TotalSizeMB += info.SizeMB + info.WALSizeMB
		response.Databases = append(response.Databases, info)
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleRefreshPrices handles POST /api/system/prices/refresh
func (h *SystemHandlers) HandleRefreshPrices(w http.ResponseWriter, r *http.Request) {
	result, err := h.refresher.Refresh(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Manual price refresh failed")
		h.writeJSON(w, http.StatusBadGateway, map[string]string{"status": "error", "message": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleListBackups handles GET /api/system/backups
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backups.ListLocal()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": err.Error()})
		return
	}
	if backups == nil {
		backups = []reliability.BackupInfo{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"backups": backups})
}

// HandleTriggerJob handles POST /api/system/jobs/{name}.
// The job runs in the background; failures are logged.
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{
			"status":  "error",
			"message": "unknown job: " + name,
		})
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job triggered")

	go func() {
		var err error
		if h.scheduler != nil {
			err = h.scheduler.RunNow(job)
		} else {
			err = job.Run()
		}
		if err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Manual job failed")
		}
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "success",
		"message": name + " triggered",
	})
}

func (h *SystemHandlers) jobNames() []string {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// getSystemStats calculates CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	// 100ms sample keeps the status call responsive
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
