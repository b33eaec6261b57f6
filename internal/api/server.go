// Package api exposes the REST snapshot endpoints and the push-socket feed
// described in spec §4.9: a read-only window onto the state machine's
// lifecycle context, trade history, and tax/buyback/FDV state.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"launchsentinel/internal/catalog"
	"launchsentinel/internal/config"
	"launchsentinel/internal/domain"
	"launchsentinel/internal/observability"
	"launchsentinel/internal/rpcpool"
)

const (
	tradeRingCapacity = 100
	eventRingCapacity = 100
)

// Snapshotter is the read-only view the state machine exposes to the API
// surface; statemachine.Machine satisfies it.
type Snapshotter interface {
	Snapshot() domain.LifecycleContext
}

// Server serves the REST endpoints and runs the WebSocket broadcast hub.
type Server struct {
	cfg     *config.Config
	machine Snapshotter
	catalog *catalog.Client
	pool    *rpcpool.Pool
	log     *logrus.Entry

	hub    *Hub
	trades *ring
	events *ring

	mu          sync.RWMutex
	latestTax   interface{}
	latestBack  interface{}
	latestFDV   interface{}

	upgrader websocket.Upgrader
	engine   *gin.Engine
}

// New builds a Server that reads lifecycle snapshots from machine; the
// machine's event feed is handed to Consume separately.
func New(cfg *config.Config, machine Snapshotter, cat *catalog.Client, pool *rpcpool.Pool, log *logrus.Entry) *Server {
	s := &Server{
		cfg:     cfg,
		machine: machine,
		catalog: cat,
		pool:    pool,
		log:     log,
		hub:     NewHub(log),
		trades:  newRing(tradeRingCapacity),
		events:  newRing(eventRingCapacity),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.engine = s.buildRouter()
	return s
}

// Consume drains the machine's event channel, folding each event into the
// ring buffers and latest-state cache, and broadcasts it to WS clients.
// Runs until ctx is cancelled.
func (s *Server) Consume(ctx context.Context, events <-chan domain.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			s.ingest(evt)
		}
	}
}

func (s *Server) ingest(evt domain.Event) {
	s.events.push(evt)
	observability.RecordEventBroadcast(string(evt.Kind))

	s.mu.Lock()
	switch evt.Kind {
	case domain.EventWhaleTrade:
		if trade, ok := evt.Payload.(domain.WhaleTrade); ok {
			s.trades.push(newTradeDTO(trade))
		}
	case domain.EventTaxUpdate:
		if counters, ok := evt.Payload.(domain.TaxCounters); ok {
			s.latestTax = newTaxDTO(counters)
		}
	case domain.EventBuybackUpdate:
		if status, ok := evt.Payload.(domain.BuybackStatus); ok {
			s.latestBack = newBuybackDTO(status)
		}
	case domain.EventFDVUpdate:
		s.latestFDV = evt.Payload
	}
	s.mu.Unlock()

	s.hub.Broadcast(evt)
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.API.Addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func corsMiddleware(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware)

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/state", s.handleState)
	r.GET("/api/trades", s.handleTrades)
	r.GET("/api/events", s.handleEvents)
	r.GET("/api/config", s.handleConfig)
	r.GET("/api/upcoming-launches", s.handleUpcomingLaunches)
	r.GET("/ws", s.handleWS)
	r.GET("/metrics", gin.WrapH(observability.Handler()))

	return r
}
