// Package httpapi exposes the backtest service over HTTP: run submission,
// run inspection, bar ingestion, and report rendering.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"simex/internal/backtest"
	"simex/internal/model"
	"simex/internal/store/bars"
	"simex/internal/store/runstore"
)

type Server struct {
	addr        string
	svc         *backtest.Service
	results     *runstore.Store
	barStore    *bars.Store
	reporter    *backtest.Reporter
	instruments []model.Instrument
	router      *gin.Engine
}

type Config struct {
	Addr        string
	Service     *backtest.Service
	Results     *runstore.Store
	BarStore    *bars.Store
	Reporter    *backtest.Reporter
	Instruments []model.Instrument
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("http server requires the backtest service")
	}
	if cfg.Results == nil || cfg.BarStore == nil {
		return nil, errors.New("http server requires result and bar stores")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9972"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:        cfg.Addr,
		svc:         cfg.Service,
		results:     cfg.Results,
		barStore:    cfg.BarStore,
		reporter:    cfg.Reporter,
		instruments: cfg.Instruments,
		router:      router,
	}
	s.registerRoutes()
	return s, nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	api := s.router.Group("/api")
	api.GET("/instruments", s.handleInstruments)
	api.GET("/timeframes", s.handleTimeframes)
	api.GET("/strategies", s.handleStrategies)
	api.POST("/bars", s.handleBarsUpload)
	api.GET("/bars", s.handleBarsQuery)
	api.POST("/runs", s.handleRunStart)
	api.GET("/runs", s.handleRunList)
	api.GET("/runs/:id", s.handleRunDetail)
	api.GET("/runs/:id/events", s.handleRunEvents)
	api.GET("/runs/:id/snapshots", s.handleRunSnapshots)
	api.GET("/runs/:id/report", s.handleRunReport)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleInstruments(c *gin.Context) {
	out := make([]gin.H, 0, len(s.instruments))
	for _, inst := range s.instruments {
		out = append(out, gin.H{
			"symbol":           inst.Symbol,
			"base_currency":    inst.BaseCurrency,
			"quote_currency":   inst.QuoteCurrency,
			"tick_size":        inst.TickSize.String(),
			"price_precision":  inst.PricePrecision,
			"min_quantity":     inst.MinQuantity.String(),
			"commission_class": inst.CommissionClass,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i]["symbol"].(string) < out[j]["symbol"].(string) })
	c.JSON(http.StatusOK, gin.H{"instruments": out})
}

func (s *Server) handleTimeframes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"timeframes": backtest.SupportedTimeframes()})
}

func (s *Server) handleStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": s.svc.StrategyNames()})
}

type barsUploadRequest struct {
	Symbol    string        `json:"symbol" binding:"required"`
	Timeframe string        `json:"timeframe" binding:"required"`
	Side      string        `json:"side" binding:"required"`
	Candles   []bars.Candle `json:"candles" binding:"required"`
}

func (s *Server) handleBarsUpload(c *gin.Context) {
	var req barsUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	side, err := bars.ParseSide(req.Side)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := s.barStore.InsertCandles(c.Request.Context(), req.Symbol, req.Timeframe, side, req.Candles)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"inserted": n})
}

func (s *Server) handleBarsQuery(c *gin.Context) {
	symbol := c.Query("symbol")
	tf := c.Query("timeframe")
	if symbol == "" || tf == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol and timeframe are required"})
		return
	}
	side, err := bars.ParseSide(c.DefaultQuery("side", string(bars.SideBid)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, _ := strconv.ParseInt(c.Query("start_ts"), 10, 64)
	end, _ := strconv.ParseInt(c.Query("end_ts"), 10, 64)
	candles, err := s.barStore.RangeCandles(c.Request.Context(), symbol, tf, side, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"candles": candles})
}

func (s *Server) handleRunStart(c *gin.Context) {
	var req backtest.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	runID, err := s.svc.StartRun(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

func (s *Server) handleRunList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.results.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	run, err := s.results.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (s *Server) handleRunEvents(c *gin.Context) {
	events, err := s.results.ListEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) handleRunSnapshots(c *gin.Context) {
	snaps, err := s.results.ListSnapshots(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps})
}

func (s *Server) handleRunReport(c *gin.Context) {
	if s.reporter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reporting is not enabled"})
		return
	}
	path, err := s.reporter.Render(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.File(path)
}

// Start runs the HTTP server until ctx is cancelled or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
