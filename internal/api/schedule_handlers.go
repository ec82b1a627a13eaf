package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/yegors/class-transcribe/internal/countdown"
	"github.com/yegors/class-transcribe/internal/meeting"
	"github.com/yegors/class-transcribe/pkg/logger"
)

// scheduleMeeting is the wire form of a weekly slot
type scheduleMeeting struct {
	Title           string `json:"title"`
	Weekday         string `json:"weekday"`
	Start           string `json:"start"`
	DurationMinutes int    `json:"duration_minutes"`
}

type scheduleBody struct {
	Enabled  *bool             `json:"enabled"`
	Timezone string            `json:"timezone,omitempty"`
	Meetings []scheduleMeeting `json:"meetings"`
}

func fromSlot(s meeting.Slot) scheduleMeeting {
	return scheduleMeeting{
		Title:           s.Title,
		Weekday:         strings.ToLower(s.Weekday.String()),
		Start:           s.Clock(),
		DurationMinutes: s.DurationMinutes,
	}
}

func (m scheduleMeeting) slot() (meeting.Slot, error) {
	day, err := meeting.ParseWeekday(m.Weekday)
	if err != nil {
		return meeting.Slot{}, err
	}
	hour, minute, err := meeting.ParseClock(m.Start)
	if err != nil {
		return meeting.Slot{}, err
	}
	s := meeting.Slot{Title: m.Title, Weekday: day, Hour: hour, Minute: minute, DurationMinutes: m.DurationMinutes}
	return s, s.Validate()
}

func (h *Handler) scheduleResponse() scheduleBody {
	slots := h.schedule.Slots()
	enabled := h.schedule.IsScheduleEnabled()
	body := scheduleBody{
		Enabled:  &enabled,
		Timezone: h.schedule.Location().String(),
		Meetings: make([]scheduleMeeting, 0, len(slots)),
	}
	for _, s := range slots {
		body.Meetings = append(body.Meetings, fromSlot(s))
	}
	return body
}

// GetSchedule returns the weekly timetable
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.scheduleResponse())
}

// PutSchedule replaces the timetable and restarts the countdown against it
func (h *Handler) PutSchedule(w http.ResponseWriter, r *http.Request) {
	var body scheduleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	slots := make([]meeting.Slot, 0, len(body.Meetings))
	for i, m := range body.Meetings {
		s, err := m.slot()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("meetings[%d]: %v", i, err))
			return
		}
		slots = append(slots, s)
	}

	if err := h.schedule.Replace(slots); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Enabled != nil {
		h.schedule.SetEnabled(*body.Enabled)
	}
	h.logger.Info("Schedule replaced",
		logger.Int("meetings", len(slots)),
		logger.Bool("enabled", h.schedule.IsScheduleEnabled()))

	if !h.onLoop(w, r, h.coord.ScheduleChanged) {
		return
	}
	WriteJSON(w, http.StatusOK, h.scheduleResponse())
}

// GetNextMeeting previews the countdown to the next scheduled meeting
func (h *Handler) GetNextMeeting(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()
	response := map[string]any{
		"timestamp": now,
		"enabled":   h.schedule.IsScheduleEnabled(),
	}

	m, ok := h.schedule.NextMeeting(now)
	if !ok || !h.schedule.IsScheduleEnabled() {
		response["meeting"] = nil
		WriteJSON(w, http.StatusOK, response)
		return
	}

	plan, label := countdown.Preview(now, m)
	response["meeting"] = m
	response["countdown"] = label
	response["plan"] = plan
	response["plan_summary"] = plan.String()
	WriteJSON(w, http.StatusOK, response)
}
