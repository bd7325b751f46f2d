package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/tvloc02/EventVer1-sub000/internal/apperr"
	"github.com/tvloc02/EventVer1-sub000/internal/attendance"
	"github.com/tvloc02/EventVer1-sub000/internal/logger"
	"github.com/tvloc02/EventVer1-sub000/internal/middleware"
	"github.com/tvloc02/EventVer1-sub000/internal/models"
	"github.com/tvloc02/EventVer1-sub000/internal/realtime"
	"github.com/tvloc02/EventVer1-sub000/internal/report"
	"github.com/tvloc02/EventVer1-sub000/internal/validation"
)

type AttendanceHandler struct {
	tracker  *attendance.Tracker
	hub      *realtime.Hub
	upgrader ws.Upgrader
	log      logger.Logger
	loc      *time.Location
}

type checkInRequest struct {
	Method   models.CheckInMethod `json:"method"`
	Location string               `json:"location"`
	Notes    string               `json:"notes"`
}

type checkOutRequest struct {
	Method models.CheckInMethod `json:"method"`
	Notes  string               `json:"notes"`
}

type qrCheckInRequest struct {
	Payload  string `json:"payload" validate:"notblank"`
	Location string `json:"location"`
	Notes    string `json:"notes"`
}

type bulkCheckInRequest struct {
	UserIDs  []string             `json:"userIds" validate:"required,min=1,max=500,dive,uuid"`
	Method   models.CheckInMethod `json:"method"`
	Location string               `json:"location"`
	Notes    string               `json:"notes"`
}

func NewAttendanceHandler(tracker *attendance.Tracker, hub *realtime.Hub, allowedOrigins []string, log logger.Logger, loc *time.Location) *AttendanceHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceHandler{
		tracker:  tracker,
		hub:      hub,
		upgrader: realtime.Upgrader(allowedOrigins),
		log:      log,
		loc:      loc,
	}
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindPermission:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func (h *AttendanceHandler) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		h.log.Error("request failed", err, map[string]interface{}{"path": c.FullPath(), "method": c.Request.Method})
	}
	body := gin.H{"error": apperr.Message(err)}
	if fields := apperr.FieldsOf(err); len(fields) > 0 {
		body["fields"] = fields
	}
	c.JSON(statusFor(kind), body)
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Validation("invalid input")
	}
	return nil
}

func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func actorFrom(c *gin.Context) attendance.Actor {
	actor := attendance.Actor{Role: c.GetString(middleware.ContextRole)}
	if id, err := uuid.Parse(c.GetString(middleware.ContextUserID)); err == nil {
		actor.UserID = id
	}
	return actor
}

// recorder is the staff member performing the action, nil when the token subject is not a user id.
func recorder(c *gin.Context) *uuid.UUID {
	actor := actorFrom(c)
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &actor.UserID
}

func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req checkInRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	reg, err := h.tracker.CheckIn(c.Request.Context(), id, attendance.CheckInData{
		Method:     req.Method,
		Location:   req.Location,
		Notes:      req.Notes,
		RecordedBy: recorder(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

func (h *AttendanceHandler) CheckOut(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req checkOutRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	res, err := h.tracker.CheckOut(c.Request.Context(), id, attendance.CheckOutData{
		Method:     req.Method,
		Notes:      req.Notes,
		RecordedBy: recorder(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AttendanceHandler) QRCheckIn(c *gin.Context) {
	var req qrCheckInRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	if err := validation.Check(req); err != nil {
		h.respondError(c, err)
		return
	}

	reg, err := h.tracker.CheckInByQRCode(c.Request.Context(), req.Payload, attendance.CheckInData{
		Location:   req.Location,
		Notes:      req.Notes,
		RecordedBy: recorder(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

func (h *AttendanceHandler) BulkCheckIn(c *gin.Context) {
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req bulkCheckInRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	if err := validation.Check(req); err != nil {
		h.respondError(c, err)
		return
	}
	userIDs := make([]uuid.UUID, len(req.UserIDs))
	for i, raw := range req.UserIDs {
		userIDs[i] = uuid.MustParse(raw)
	}

	res, err := h.tracker.BulkCheckIn(c.Request.Context(), eventID, userIDs, attendance.CheckInData{
		Method:     req.Method,
		Location:   req.Location,
		Notes:      req.Notes,
		RecordedBy: recorder(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AttendanceHandler) Summary(c *gin.Context) {
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}
	s, err := h.tracker.GetAttendanceSummary(c.Request.Context(), eventID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *AttendanceHandler) Report(c *gin.Context) {
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}
	rep, err := h.tracker.GetAttendanceReport(c.Request.Context(), eventID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *AttendanceHandler) Analytics(c *gin.Context) {
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}
	granularity := attendance.Granularity(c.DefaultQuery("granularity", string(attendance.GranularityHour)))
	a, err := h.tracker.GetAttendanceAnalytics(c.Request.Context(), eventID, granularity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *AttendanceHandler) Export(c *gin.Context) {
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}
	rep, err := h.tracker.GetAttendanceReport(c.Request.Context(), eventID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteExcel(&buf, rep, h.loc); err != nil {
		h.respondError(c, apperr.Internal(err, "exporting attendance"))
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+report.Filename(rep, time.Now().In(h.loc)))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *AttendanceHandler) History(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	entries, err := h.tracker.GetAttendanceHistory(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *AttendanceHandler) IssueQRCode(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	code, err := h.tracker.IssueQRCode(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, code)
}

func (h *AttendanceHandler) UserAttendance(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	actor := actorFrom(c)
	if !actor.Staff() && actor.UserID != userID {
		h.respondError(c, apperr.Permission("you may only view your own attendance"))
		return
	}
	items, err := h.tracker.GetUserAttendance(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// LiveFeed streams check-ins and check-outs of one event. The first message is the current summary.
func (h *AttendanceHandler) LiveFeed(c *gin.Context) {
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}
	summary, err := h.tracker.GetAttendanceSummary(c.Request.Context(), eventID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	greeting, err := json.Marshal(realtime.Message{Type: "attendance:summary", EventID: eventID, Payload: summary})
	if err != nil {
		h.respondError(c, apperr.Internal(err, "encoding summary"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", err)
		return
	}
	if err := realtime.NewClient(h.hub, conn, eventID).Serve(greeting); err != nil {
		h.log.Warn("live feed unavailable", err)
	}
}
