// Package mockmeter serves a simulated three-phase meter in the shape the
// dashboard endpoint returns, for running the monitor without hardware.
package mockmeter

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DashboardPath is the route the monitor polls by default.
const DashboardPath = "/api/dashboard"

// Record is one simulated meter record. Pointer fields encode as null when
// a phase drops out.
type Record struct {
	Slave  int      `json:"Slave"`
	Status string   `json:"status"`
	VR     *float64 `json:"VR"`
	VY     *float64 `json:"VY"`
	VB     *float64 `json:"VB"`
	VAR    *float64 `json:"VAR"`
	VAY    *float64 `json:"VAY"`
	VAB    *float64 `json:"VAB"`
	IR     *float64 `json:"IR"`
	IY     *float64 `json:"IY"`
	IB     *float64 `json:"IB"`
	EIB    *float64 `json:"EIB"`
	EEB    *float64 `json:"EEB"`
	WR     *float64 `json:"WR"`
	WY     *float64 `json:"WY"`
	WB     *float64 `json:"WB"`
	VARR   *float64 `json:"VARR"`
	VARY   *float64 `json:"VARY"`
	VARB   *float64 `json:"VARB"`
	FRE    *float64 `json:"FRE"`
}

// Simulator produces a random walk around nominal mains values with
// occasional excursions. It is safe for concurrent use.
type Simulator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	slave int

	volts    [3]float64
	amps     [3]float64
	freq     float64
	imported float64
	exported float64
}

// NewSimulator creates a simulator for the given slave id. seed makes runs
// reproducible.
func NewSimulator(slave int, seed uint64) *Simulator {
	return &Simulator{
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		slave:    slave,
		volts:    [3]float64{238, 237, 239},
		amps:     [3]float64{30, 28, 32},
		freq:     50,
		imported: 10000,
		exported: 120,
	}
}

// Next advances the simulation by one step and returns the record.
func (s *Simulator) Next() Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.volts {
		s.volts[i] = s.walk(s.volts[i], 238, 1.5, 205, 265)
		s.amps[i] = s.walk(s.amps[i], 30, 1.2, 0, 65)
	}
	s.freq = s.walk(s.freq, 50, 0.05, 49.2, 50.8)

	// occasional sag or surge on one phase
	if s.rng.Float64() < 0.05 {
		p := s.rng.IntN(3)
		s.volts[p] += (s.rng.Float64()*2 - 1) * 18
	}

	var watts [3]float64
	for i := range watts {
		watts[i] = round(s.volts[i]*s.amps[i]*0.95/1000, 3)
	}
	s.imported += (watts[0] + watts[1] + watts[2]) / 720
	s.exported += s.rng.Float64() * 0.01

	rec := Record{
		Slave:  s.slave,
		Status: s.status(),
		VR:     ptr(round(s.volts[0], 2)),
		VY:     ptr(round(s.volts[1], 2)),
		VB:     ptr(round(s.volts[2], 2)),
		VAR:    ptr(round(s.volts[0]*s.amps[0]/1000, 3)),
		VAY:    ptr(round(s.volts[1]*s.amps[1]/1000, 3)),
		VAB:    ptr(round(s.volts[2]*s.amps[2]/1000, 3)),
		IR:     ptr(round(s.amps[0], 2)),
		IY:     ptr(round(s.amps[1], 2)),
		IB:     ptr(round(s.amps[2], 2)),
		EIB:    ptr(round(s.imported, 2)),
		EEB:    ptr(round(s.exported, 2)),
		WR:     ptr(watts[0]),
		WY:     ptr(watts[1]),
		WB:     ptr(watts[2]),
		VARR:   ptr(round(watts[0]*0.31, 3)),
		VARY:   ptr(round(watts[1]*0.31, 3)),
		VARB:   ptr(round(watts[2]*0.31, 3)),
		FRE:    ptr(round(s.freq, 2)),
	}

	// a dropped reading now and then
	if s.rng.Float64() < 0.03 {
		rec.VB = nil
	}
	return rec
}

func (s *Simulator) walk(v, nominal, step, lo, hi float64) float64 {
	v += (s.rng.Float64()*2 - 1) * step
	v += (nominal - v) * 0.1
	return max(lo, min(hi, v))
}

func (s *Simulator) status() string {
	for _, v := range s.volts {
		if v < 220 || v > 250 {
			return "warning"
		}
	}
	return "active"
}

func ptr(f float64) *float64 { return &f }

func round(f float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(f*p) / p
}

// Router returns the gin engine serving the simulator.
func Router(sim *Simulator, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.GET(DashboardPath, func(c *gin.Context) {
		rec := sim.Next()
		log.Debug("served reading",
			zap.String("request_id", c.GetHeader("X-Request-ID")),
			zap.Int("slave", rec.Slave),
			zap.String("status", rec.Status),
		)
		c.JSON(http.StatusOK, []Record{rec})
	})

	return r
}

// Serve runs the simulator on addr until ctx is done.
func Serve(ctx context.Context, addr string, sim *Simulator, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Router(sim, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
