package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"
)

// WebServer exposes run control, results and live progress over HTTP. Runs
// can be triggered by POST, on a cron schedule, or both; progress events are
// pushed to websocket clients as days complete.
type WebServer struct {
	scheduler *Scheduler
	logger    *log.Logger
	server    *http.Server
	port      int
	startTime time.Time

	upgrader  websocket.Upgrader
	clients   sync.Map
	broadcast chan []byte
	done      chan struct{}

	cron *cron.Cron
}

// NewWebServer wires the HTTP API around a scheduler. A port of zero or less
// disables the server and returns nil; callers treat a nil server as a no-op.
func NewWebServer(scheduler *Scheduler, logger *log.Logger, port int) *WebServer {
	if port <= 0 {
		return nil
	}

	ws := &WebServer{
		scheduler: scheduler,
		logger:    logger,
		port:      port,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), corsMiddleware())

	router.GET("/api/health", ws.healthHandler)
	router.GET("/api/status", ws.statusHandler)
	router.POST("/api/run", ws.runHandler)
	router.GET("/api/results", ws.resultsHandler)
	router.GET("/api/summary", ws.summaryHandler)
	router.GET("/api/chart", ws.chartHandler)
	router.GET("/api/ws", ws.wsHandler)

	ws.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	scheduler.SetProgressFunc(ws.broadcastProgress)
	return ws
}

// corsMiddleware allows browser dashboards served from another origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Start brings up the listener, the broadcast fan-out and, when a cron
// schedule is configured, the periodic run trigger.
func (ws *WebServer) Start() error {
	if ws == nil {
		return nil
	}

	go ws.handleBroadcasts()

	if schedule := ws.scheduler.config.CronSchedule; schedule != "" {
		ws.cron = cron.New()
		_, err := ws.cron.AddFunc(schedule, func() {
			if _, err := ws.scheduler.Run(context.Background()); err != nil {
				ws.logger.Printf("Scheduled run failed: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
		}
		ws.cron.Start()
		ws.logger.Printf("Scheduled runs enabled: %s", schedule)
	}

	go func() {
		ws.logger.Printf("HTTP server listening on :%d", ws.port)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.logger.Printf("HTTP server error: %v", err)
		}
	}()
	return nil
}

// Stop shuts the server down, disconnecting websocket clients and draining
// in-flight requests until ctx expires.
func (ws *WebServer) Stop(ctx context.Context) error {
	if ws == nil {
		return nil
	}

	if ws.cron != nil {
		ws.cron.Stop()
	}
	close(ws.done)

	ws.clients.Range(func(key, value any) bool {
		if conn, ok := key.(*websocket.Conn); ok {
			conn.Close()
		}
		return true
	})

	return ws.server.Shutdown(ctx)
}

func (ws *WebServer) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(ws.startTime).Round(time.Second).String(),
	})
}

func (ws *WebServer) statusHandler(c *gin.Context) {
	last := ws.scheduler.LastResult()
	status := gin.H{
		"is_running": ws.scheduler.IsRunning(),
		"has_result": last != nil,
		"objective":  ws.scheduler.config.Objective,
		"date_range": gin.H{
			"start": ws.scheduler.config.StartDate,
			"end":   ws.scheduler.config.EndDate,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if last != nil {
		status["last_run"] = gin.H{
			"status":      last.Status,
			"days":        len(last.Days),
			"failed_days": len(last.FailedDays),
			"cost":        last.Totals.Cost,
		}
	}
	c.JSON(http.StatusOK, status)
}

// runHandler starts a run in the background. A second trigger while one is
// executing gets 409.
func (ws *WebServer) runHandler(c *gin.Context) {
	if ws.scheduler.IsRunning() {
		c.JSON(http.StatusConflict, gin.H{"error": ErrRunInProgress.Error()})
		return
	}
	go func() {
		if _, err := ws.scheduler.Run(context.Background()); err != nil {
			ws.logger.Printf("Triggered run failed: %v", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (ws *WebServer) resultsHandler(c *gin.Context) {
	last := ws.scheduler.LastResult()
	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no completed run"})
		return
	}
	c.JSON(http.StatusOK, last)
}

func (ws *WebServer) summaryHandler(c *gin.Context) {
	last := ws.scheduler.LastResult()
	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no completed run"})
		return
	}
	c.String(http.StatusOK, last.Summary())
}

func (ws *WebServer) chartHandler(c *gin.Context) {
	last := ws.scheduler.LastResult()
	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no completed run"})
		return
	}
	html, err := RenderCharts(last, ws.scheduler.config.DT())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

// wsHandler upgrades the connection and keeps it registered until the client
// goes away. Clients only receive; inbound messages are drained for control
// frames.
func (ws *WebServer) wsHandler(c *gin.Context) {
	conn, err := ws.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ws.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	ws.clients.Store(conn, true)

	defer func() {
		ws.clients.Delete(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ws.logger.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}

func (ws *WebServer) broadcastProgress(ev ProgressEvent) {
	message, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case ws.broadcast <- message:
	default:
		// Drop when the channel is full rather than stall the run loop.
	}
}

func (ws *WebServer) handleBroadcasts() {
	for {
		select {
		case message := <-ws.broadcast:
			ws.clients.Range(func(key, value any) bool {
				conn, ok := key.(*websocket.Conn)
				if !ok {
					return true
				}
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					ws.clients.Delete(conn)
				}
				return true
			})
		case <-ws.done:
			return
		}
	}
}
