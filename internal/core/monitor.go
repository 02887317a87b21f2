package core

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/printsmart/printd/internal/db"
)

// CheckSummary reports one pass over the active printer fleet.
type CheckSummary struct {
	Checked    int
	Online     int
	Offline    int
	Errored    int
	Skipped    int
	Transition int
}

// HealthMonitor probes every active printer on a fixed interval and
// reconciles its stored status with what the network reports. A
// printer dropping out of online triggers the job failure cascade and
// a printer coming back triggers recovery.
type HealthMonitor struct {
	registry *Registry
	jobs     *JobManager
	prober   Prober
	clock    Clock

	interval time.Duration

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

func NewHealthMonitor(registry *Registry, jobs *JobManager, prober Prober, clock Clock, interval time.Duration) *HealthMonitor {
	if clock == nil {
		clock = SystemClock()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &HealthMonitor{
		registry: registry,
		jobs:     jobs,
		prober:   prober,
		clock:    clock,
		interval: interval,
	}
}

// Start launches the background check loop. It is a no-op when the
// monitor is already running.
func (h *HealthMonitor) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.stopCh = make(chan struct{})
	h.doneCh = make(chan struct{})
	h.running = true
	go h.loop(h.stopCh, h.doneCh)
	log.Info("printer health monitor started", "interval", h.interval)
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	stopCh, doneCh := h.stopCh, h.doneCh
	h.running = false
	h.mu.Unlock()

	close(stopCh)
	<-doneCh
	log.Info("printer health monitor stopped")
}

func (h *HealthMonitor) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.runPass()
	for {
		select {
		case <-ticker.C:
			h.runPass()
		case <-stopCh:
			return
		}
	}
}

func (h *HealthMonitor) runPass() {
	summary, err := h.CheckAll(context.Background())
	if err != nil {
		log.Error("printer health pass failed", "err", err)
		return
	}
	log.Debug("printer health pass finished",
		"checked", summary.Checked, "online", summary.Online,
		"offline", summary.Offline, "errored", summary.Errored,
		"skipped", summary.Skipped, "transitions", summary.Transition)
}

// CheckAll probes every active printer once. A failure probing or
// updating one printer never prevents the rest from being checked.
func (h *HealthMonitor) CheckAll(ctx context.Context) (CheckSummary, error) {
	printers, err := h.registry.ListActive(ctx)
	if err != nil {
		return CheckSummary{}, err
	}

	var summary CheckSummary
	for _, printer := range printers {
		status, checked, err := h.CheckPrinter(ctx, printer)
		if err != nil {
			log.Error("printer check failed", "printer", printer.Name, "err", err)
			continue
		}
		if !checked {
			summary.Skipped++
			continue
		}
		summary.Checked++
		switch status {
		case PrinterOnline:
			summary.Online++
		case PrinterError:
			summary.Errored++
		default:
			summary.Offline++
		}
		if status != PrinterStatus(printer.Status) {
			summary.Transition++
		}
	}
	return summary, nil
}

// CheckPrinter probes a single printer and persists the observed
// status. Printers without a configured address are skipped entirely
// so manually managed devices keep their hand-set status. The second
// return value reports whether a probe actually ran.
func (h *HealthMonitor) CheckPrinter(ctx context.Context, printer *db.Printer) (PrinterStatus, bool, error) {
	if printer.IPAddress == "" {
		return PrinterStatus(printer.Status), false, nil
	}

	observed := PrinterOnline
	if !h.prober.Reachable(ctx, printer.IPAddress) {
		observed = PrinterOffline
	} else if printer.Port > 0 && !h.prober.PortOpen(ctx, printer.IPAddress, printer.Port) {
		// Host answers but the print service does not.
		observed = PrinterError
	}

	previous, err := h.registry.SetStatus(ctx, printer.ID, observed)
	if err != nil {
		return observed, true, err
	}

	if previous == observed {
		return observed, true, nil
	}

	log.Info("printer status changed", "printer", printer.Name, "from", previous, "to", observed)

	wasHealthy := previous != PrinterOffline && previous != PrinterError
	isHealthy := observed == PrinterOnline

	if wasHealthy && !isHealthy {
		updated := *printer
		updated.Status = string(observed)
		touched := h.jobs.HandlePrinterFailure(ctx, &updated)
		if touched > 0 {
			log.Warn("printer failure cascaded to jobs", "printer", printer.Name, "jobs", touched)
		}
	} else if !wasHealthy && isHealthy {
		updated := *printer
		updated.Status = string(observed)
		requeued := h.jobs.HandlePrinterRecovery(ctx, &updated)
		if requeued > 0 {
			log.Info("printer recovery re-queued jobs", "printer", printer.Name, "jobs", requeued)
		}
	}

	return observed, true, nil
}
