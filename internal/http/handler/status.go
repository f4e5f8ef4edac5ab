package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/edirooss/smokers/internal/domain/factory"
	"github.com/edirooss/smokers/internal/infrastructure/tracelog"
	"github.com/edirooss/smokers/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StateSource reads the current shared state under the mutex.
type StateSource interface {
	View(ctx context.Context) (*factory.State, error)
}

// TraceSource returns the latest snapshots, newest → oldest.
type TraceSource interface {
	Trace(ctx context.Context, lines int) ([]factory.Snapshot, error)
}

// ParticipantSource reports participant statuses and their captured logs.
type ParticipantSource interface {
	Participants() []service.ParticipantStatus
	Logs(name string, lines int) ([]string, bool)
}

// StatusHandler serves the read-only status API of a run.
//
// Supported operations:
//   - GET /state                    → current shared state
//   - GET /trace?lines=N            → latest trace rows, newest first
//   - GET /participants             → participant statuses
//   - GET /participants/{name}/logs → captured stderr of one participant
type StatusHandler struct {
	log          *zap.Logger
	state        StateSource
	trace        TraceSource
	participants ParticipantSource
}

func NewStatusHandler(log *zap.Logger, state StateSource, trace TraceSource, participants ParticipantSource) *StatusHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatusHandler{log: log.Named("status"), state: state, trace: trace, participants: participants}
}

type stateView struct {
	Row   string         `json:"row"`
	State *factory.State `json:"state"`
}

// GetState handles GET /state.
//
// Status Codes:
//   - 200 OK → state with its trace row
//   - 503 Service Unavailable → the shared state cannot be read (run over or failed)
func (h *StatusHandler) GetState(c *gin.Context) {
	st, err := h.state.View(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stateView{Row: tracelog.FormatRow(st), State: st})
}

type traceRow struct {
	Seq   uint64         `json:"seq"`
	By    string         `json:"by"`
	Event string         `json:"event"`
	Row   string         `json:"row"`
	State *factory.State `json:"state,omitempty"`
}

// GetTrace handles GET /trace. Without a trace source it answers 404.
//
// Query:
//   - lines: rows to return (default 50; 0 = all kept)
//   - state: "1" includes the full state of every row
func (h *StatusHandler) GetTrace(c *gin.Context) {
	if h.trace == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "trace not served in this mode"})
		return
	}
	lines, ok := parseLines(c, 50)
	if !ok {
		return
	}
	snaps, err := h.trace.Trace(c.Request.Context(), lines)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": err.Error()})
		return
	}

	withState := c.Query("state") == "1"
	rows := make([]traceRow, len(snaps))
	header := ""
	for i, s := range snaps {
		rows[i] = traceRow{Seq: s.Seq, By: s.By, Event: s.Event, Row: tracelog.FormatRow(s.State)}
		if withState {
			rows[i].State = s.State
		}
		if header == "" {
			header = tracelog.FormatHeader(s.State.N())
		}
	}
	c.Header("X-Total-Count", strconv.Itoa(len(rows)))
	c.JSON(http.StatusOK, gin.H{"header": header, "rows": rows})
}

// GetParticipants handles GET /participants.
func (h *StatusHandler) GetParticipants(c *gin.Context) {
	list := h.participants.Participants()
	c.Header("X-Total-Count", strconv.Itoa(len(list)))
	c.JSON(http.StatusOK, list)
}

// GetParticipantLogs handles GET /participants/{name}/logs.
//
// Status Codes:
//   - 200 OK → JSON array of lines, newest first
//   - 400 Bad Request → invalid lines
//   - 404 Not Found → no captured logs for that participant
func (h *StatusHandler) GetParticipantLogs(c *gin.Context) {
	lines, ok := parseLines(c, 0)
	if !ok {
		return
	}
	name := c.Param("name")
	logs, found := h.participants.Logs(name, lines)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"message": "no logs for participant " + name})
		return
	}
	if logs == nil {
		logs = []string{}
	}
	c.JSON(http.StatusOK, logs)
}

func parseLines(c *gin.Context, def int) (int, bool) {
	raw := c.Query("lines")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "lines must be a non-negative integer"})
		return 0, false
	}
	return n, true
}

// Register mounts the status routes on r.
func (h *StatusHandler) Register(r gin.IRoutes) {
	r.GET("/api/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	r.GET("/api/state", h.GetState)
	r.GET("/api/trace", h.GetTrace)
	r.GET("/api/participants", h.GetParticipants)
	r.GET("/api/participants/:name/logs", h.GetParticipantLogs)
}
