// Package health implements the process liveness probe served at /healthz.
package health

import (
	"context"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const dbPingTimeout = 2 * time.Second

// WorkerCounter is satisfied by the worker supervisor.
type WorkerCounter interface {
	WorkerCount() int
}

type Checker struct {
	db      *pgxpool.Pool
	workers WorkerCounter
}

type Status struct {
	Status     string         `json:"status"`
	Database   DatabaseHealth `json:"database"`
	Workers    int            `json:"workers"`
	Goroutines int            `json:"goroutines"`
	Memory     MemoryStats    `json:"memory"`
}

type DatabaseHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
}

type MemoryStats struct {
	AllocMB float64 `json:"alloc_mb"`
	SysMB   float64 `json:"sys_mb"`
	NumGC   uint32  `json:"num_gc"`
}

func NewChecker(db *pgxpool.Pool, workers WorkerCounter) *Checker {
	return &Checker{db: db, workers: workers}
}

// Check reports overall process health. The database is the only hard
// dependency; worker and runtime figures are informational.
func (c *Checker) Check() Status {
	dbHealth := c.checkDatabase()

	status := "healthy"
	if dbHealth.Status != "healthy" {
		status = "unhealthy"
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	workers := 0
	if c.workers != nil {
		workers = c.workers.WorkerCount()
	}

	return Status{
		Status:     status,
		Database:   dbHealth,
		Workers:    workers,
		Goroutines: runtime.NumGoroutine(),
		Memory: MemoryStats{
			AllocMB: float64(mem.Alloc) / 1024 / 1024,
			SysMB:   float64(mem.Sys) / 1024 / 1024,
			NumGC:   mem.NumGC,
		},
	}
}

func (c *Checker) checkDatabase() DatabaseHealth {
	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	start := time.Now()
	err := c.db.Ping(ctx)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		return DatabaseHealth{Status: "unhealthy", ResponseTime: elapsed}
	}
	return DatabaseHealth{Status: "healthy", ResponseTime: elapsed}
}
