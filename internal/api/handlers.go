package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"launchsentinel/internal/domain"
)

func (s *Server) handleHealth(c *gin.Context) {
	healthy, latencyMS, pushConnected := s.pool.HealthSnapshot(c.Request.Context(), "")
	c.JSON(http.StatusOK, domain.RPCHealthSnapshot{
		Healthy:       healthy,
		LatencyMS:     latencyMS,
		PushConnected: pushConnected,
	})
}

func (s *Server) handleState(c *gin.Context) {
	snapshot := s.machine.Snapshot()

	s.mu.RLock()
	tax, buyback, fdv := s.latestTax, s.latestBack, s.latestFDV
	s.mu.RUnlock()

	now := time.Now()
	body := gin.H{
		"state":   snapshot.Phase,
		"project": snapshot.Project,
		"t0":      snapshot.T0,
		"t1":      snapshot.T1,
		"taxTotal": bigString(snapshot.TaxTotal),
		"startBalance": bigString(snapshot.StartBalance),
		"tax":     tax,
		"buyback": buyback,
		"fdv":     fdv,
	}
	if !snapshot.T0.IsZero() {
		body["elapsedMinutes"] = now.Sub(snapshot.T0).Minutes()
	}
	if !snapshot.T1.IsZero() {
		body["remainingMinutes"] = snapshot.T1.Sub(now).Minutes()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleTrades(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"trades": s.trades.snapshot()})
}

func (s *Server) handleEvents(c *gin.Context) {
	items := s.events.snapshot()
	newestFirst := make([]interface{}, len(items))
	for i, item := range items {
		newestFirst[len(items)-1-i] = item
	}
	c.JSON(http.StatusOK, gin.H{"events": newestFirst})
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"taxWindowMinutes":         s.cfg.Thresholds.TaxWindowMinutes,
		"buybackRateWindowMinutes": s.cfg.Thresholds.BuybackRateWindowMinutes,
		"stallAlertMinutes":        s.cfg.Thresholds.StallAlertMinutes,
		"bigTradeVirtual":          s.cfg.Thresholds.BigTradeVirtual,
	})
}

func (s *Server) handleUpcomingLaunches(c *gin.Context) {
	items, err := s.catalog.UpcomingLaunches(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": items})
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	unregister := s.hub.Register(conn)
	defer unregister()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
