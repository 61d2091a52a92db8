package v1

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bartime/bartime-api/internal/api/handler/v1/request"
	"github.com/bartime/bartime-api/internal/api/handler/v1/response"
	"github.com/bartime/bartime-api/internal/scan"
)

const (
	defaultScanWait = 25 * time.Second
	maxScanWait     = 60 * time.Second
)

type ScanHub interface {
	Publish(ctx context.Context, associationID uint, station, tagID string) (scan.Event, error)
	Next(ctx context.Context, associationID uint, station string) (scan.Event, error)
	Serve(ctx context.Context, conn *websocket.Conn, associationID uint, station string) error
}

type ScanHandler struct {
	hub      ScanHub
	upgrader websocket.Upgrader
}

// NewScanHandler accepts websocket upgrades from the same origins the CORS
// middleware admits. An empty list admits every origin.
func NewScanHandler(hub ScanHub, allowedOrigins []string) *ScanHandler {
	return &ScanHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}

		return slices.Contains(allowed, origin)
	}
}

// HandlePublish godoc
// @Summary      Report a badge scan
// @Description  Called by a reader. The scan is delivered to whoever waits on the station.
// @Tags         scans
// @Accept       json
// @Produce      json
// @Param        stationID path string true "Station ID"
// @Param        request body request.ScanRequest true "request body"
// @Success      202 {object} scan.Event
// @Failure      400 {object} response.Envelope
// @Router       /stations/{stationID}/scans [post]
// @Security     BearerAuth
func (h *ScanHandler) HandlePublish(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	var req request.ScanRequest
	if !bind(ctx, &req) {
		return
	}

	event, err := h.hub.Publish(ctx.Request.Context(), actor.AssociationID, ctx.Param("stationID"), req.TagID)
	if err != nil {
		renderServiceErr(ctx, "v1.HandlePublish -> h.hub.Publish", err)
		return
	}

	response.Render(ctx, http.StatusAccepted, event)
}

// HandleNext godoc
// @Summary      Wait for the next scan
// @Description  Long-poll. Answers 204 when nothing is scanned before the wait runs out.
// @Tags         scans
// @Produce      json
// @Param        stationID path string true "Station ID"
// @Param        wait query int false "Seconds to wait, at most 60"
// @Success      200 {object} scan.Event
// @Success      204
// @Router       /stations/{stationID}/scans/next [get]
// @Security     BearerAuth
func (h *ScanHandler) HandleNext(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	wait := defaultScanWait
	if raw := ctx.Query("wait"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			response.RenderErr(ctx, response.ErrBadRequest(errors.New("invalid wait")))
			return
		}
		wait = min(time.Duration(seconds)*time.Second, maxScanWait)
	}

	waitCtx, cancel := context.WithTimeout(ctx.Request.Context(), wait)
	defer cancel()

	event, err := h.hub.Next(waitCtx, actor.AssociationID, ctx.Param("stationID"))
	if errors.Is(err, context.DeadlineExceeded) {
		ctx.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		renderServiceErr(ctx, "v1.HandleNext -> h.hub.Next", err)
		return
	}

	response.Render(ctx, http.StatusOK, event)
}

// HandleStream godoc
// @Summary      Stream scans over websocket
// @Description  Pass the token as ?token= since browsers cannot set headers on the upgrade.
// @Tags         scans
// @Param        stationID path string true "Station ID"
// @Param        token query string false "Bearer token"
// @Router       /stations/{stationID}/ws [get]
// @Security     BearerAuth
func (h *ScanHandler) HandleStream(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		zap.L().Warn("scan stream upgrade failed", zap.Error(err))
		return
	}

	if err := h.hub.Serve(ctx.Request.Context(), conn, actor.AssociationID, ctx.Param("stationID")); err != nil {
		zap.L().Warn("scan stream ended", zap.String("station", ctx.Param("stationID")), zap.Error(err))
	}
}
