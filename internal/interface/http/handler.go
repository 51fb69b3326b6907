package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/mars-clock/internal/domain/marsclock"
	apperrors "github.com/yanqian/mars-clock/pkg/errors"
	"github.com/yanqian/mars-clock/pkg/util"
)

// Handler exposes the clock orchestrator over HTTP.
type Handler struct {
	clock    marsclock.Service
	channels marsclock.Channels
	metrics  http.Handler
	logger   *slog.Logger
}

// NewHandler constructs the status handler. metrics may be nil.
func NewHandler(clock marsclock.Service, channels marsclock.Channels, metrics http.Handler, logger *slog.Logger) *Handler {
	return &Handler{
		clock:    clock,
		channels: channels,
		metrics:  metrics,
		logger:   logger.With("component", "http.handler"),
	}
}

type postRequest struct {
	Mode string `json:"mode"`
}

type deliveryResponse struct {
	Channel string `json:"channel"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

type reportResponse struct {
	EventID    string             `json:"eventId"`
	Mode       string             `json:"mode"`
	Payload    marsclock.Payload  `json:"payload"`
	StartedAt  string             `json:"startedAt"`
	Delivered  int                `json:"delivered"`
	Failed     int                `json:"failed"`
	Deliveries []deliveryResponse `json:"deliveries"`
}

type statusResponse struct {
	HasBaseline   bool                `json:"hasBaseline"`
	LastSeenDay   int                 `json:"lastSeenDay"`
	LastCheckedAt string              `json:"lastCheckedAt"`
	LastSnapshot  *marsclock.Snapshot `json:"lastSnapshot,omitempty"`
	LastReport    *reportResponse     `json:"lastReport,omitempty"`
	Transitions   int                 `json:"transitions"`
	Channels      []string            `json:"channels"`
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "mars-clock"})
}

// Status returns the current loop state.
func (h *Handler) Status(c *gin.Context) {
	st := h.clock.Status()
	resp := statusResponse{
		HasBaseline:   st.HasBaseline,
		LastSeenDay:   st.LastSeenDay,
		LastCheckedAt: util.FormatRFC3339(st.LastCheckedAt),
		LastSnapshot:  st.LastSnapshot,
		Transitions:   st.Transitions,
		Channels:      h.channelNames(),
	}
	if st.LastReport != nil {
		report := toReportResponse(*st.LastReport)
		resp.LastReport = &report
	}
	c.JSON(http.StatusOK, resp)
}

// Post triggers a one-shot notification to every configured channel.
func (h *Handler) Post(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	mode, err := marsclock.ParseMode(req.Mode)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, marsclock.CodeMissingMode, errMessage(err), err))
		return
	}

	report, err := h.clock.PostNow(c.Request.Context(), mode, h.channels)
	if err != nil {
		abortWithError(c, domainHTTPError(err))
		return
	}
	h.logger.Info("manual post completed", "event_id", report.EventID, "mode", mode, "failed", report.Failed())
	c.JSON(http.StatusOK, toReportResponse(report))
}

// Metrics serves the Prometheus registry when one is configured.
func (h *Handler) Metrics(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusNotFound)
		return
	}
	h.metrics.ServeHTTP(c.Writer, c.Request)
}

func (h *Handler) channelNames() []string {
	names := make([]string, 0, len(h.channels))
	for _, ch := range h.channels {
		names = append(names, ch.Name())
	}
	return names
}

func toReportResponse(r marsclock.Report) reportResponse {
	out := reportResponse{
		EventID:    r.EventID,
		Mode:       string(r.Mode),
		Payload:    r.Payload,
		StartedAt:  util.FormatRFC3339(r.StartedAt),
		Delivered:  r.Delivered(),
		Failed:     r.Failed(),
		Deliveries: make([]deliveryResponse, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		d := deliveryResponse{Channel: res.Channel, OK: res.Err == nil}
		if res.Err != nil {
			d.Error = res.Err.Error()
		}
		out.Deliveries = append(out.Deliveries, d)
	}
	return out
}

func errMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
