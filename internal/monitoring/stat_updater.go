package monitoring

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is the latest sample of the machine the API runs on.
type HostStats struct {
	CPUPercent        float64   `json:"cpuPercent"`
	MemoryUsedPercent float64   `json:"memoryUsedPercent"`
	HostUptime        uint64    `json:"hostUptimeSeconds"`
	SampledAt         time.Time `json:"sampledAt"`
}

// StatUpdater periodically samples host statistics for the health endpoint.
type StatUpdater struct {
	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once

	mu        sync.RWMutex
	latest    HostStats
	ok        bool
	lastAlert time.Time

	sample func() (HostStats, error)
}

// NewStatUpdater creates a StatUpdater that samples every interval.
func NewStatUpdater(interval time.Duration) *StatUpdater {
	return &StatUpdater{
		interval: interval,
		done:     make(chan struct{}),
		sample:   sampleHost,
	}
}

// Run starts the periodic sampling. It returns after Stop.
func (su *StatUpdater) Run() {
	log.Info().Dur("interval", su.interval).Msg("Starting background stat updater")
	ticker := time.NewTicker(su.interval)
	defer ticker.Stop()

	// Run once immediately on start
	su.update()

	for {
		select {
		case <-su.done:
			log.Info().Msg("Stopping background stat updater")
			return
		case <-ticker.C:
			su.update()
		}
	}
}

// Stop halts the periodic sampling.
func (su *StatUpdater) Stop() {
	su.stopOnce.Do(func() { close(su.done) })
}

// Latest returns the most recent sample and whether one has been taken.
func (su *StatUpdater) Latest() (HostStats, bool) {
	su.mu.RLock()
	defer su.mu.RUnlock()
	return su.latest, su.ok
}

func (su *StatUpdater) update() {
	stats, err := su.sample()
	if err != nil {
		log.Warn().Err(err).Msg("StatUpdater: Failed to sample host stats")
		return
	}

	su.mu.Lock()
	su.latest = stats
	su.ok = true
	su.mu.Unlock()

	su.checkAndAlertForPressure(stats)
}

func (su *StatUpdater) checkAndAlertForPressure(stats HostStats) {
	const threshold = 90.0
	const alertCooldown = 15 * time.Minute

	if stats.CPUPercent < threshold && stats.MemoryUsedPercent < threshold {
		return
	}
	if !su.lastAlert.IsZero() && stats.SampledAt.Sub(su.lastAlert) < alertCooldown {
		return
	}
	log.Warn().
		Float64("cpu_percent", stats.CPUPercent).
		Float64("memory_used_percent", stats.MemoryUsedPercent).
		Msg("High resource usage on host")
	su.lastAlert = stats.SampledAt
}

func sampleHost() (HostStats, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return HostStats{}, err
	}
	uptime, err := host.Uptime()
	if err != nil {
		return HostStats{}, err
	}
	stats := HostStats{
		MemoryUsedPercent: vm.UsedPercent,
		HostUptime:        uptime,
		SampledAt:         time.Now().UTC(),
	}
	// A zero interval compares against the previous call, so the first sample reads 0.
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	return stats, nil
}
