package countdown

import (
	"fmt"
	"time"

	"github.com/yegors/class-transcribe/internal/clock"
	"github.com/yegors/class-transcribe/internal/meeting"
	"github.com/yegors/class-transcribe/internal/notify"
	"github.com/yegors/class-transcribe/pkg/logger"
)

// Listener receives scheduler events on the event loop
type Listener interface {
	CountdownUpdated(label string)
	OverrideChanged(active bool)
	MeetingReached(m meeting.Meeting, notificationID string)
}

// RunState describes the current scheduling run
type RunState struct {
	Meeting                meeting.Meeting `json:"meeting"`
	Plan                   Plan            `json:"plan"`
	Deadline               time.Time       `json:"deadline"`
	Label                  string          `json:"label"`
	Overriding             bool            `json:"overriding"`
	PreStartNotificationID string          `json:"pre_start_notification_id,omitempty"`
	Handles                int             `json:"handles"`
	PendingTimers          int             `json:"pending_timers"`
}

type runState struct {
	meeting    meeting.Meeting
	plan       Plan
	deadline   time.Time
	handles    []clock.Handle
	label      string
	overriding bool
	preStartID string
}

// Scheduler turns the wait for a meeting into a cascade of timers that
// count down in days, hours, minutes and finally seconds.
//
// Scheduler is owned by the event loop. None of its methods may be called
// from other goroutines.
type Scheduler struct {
	clock    clock.Clock
	timers   *clock.Group
	source   meeting.Source
	notifier notify.Notifier
	listener Listener
	logger   *logger.Logger

	run *runState
}

// NewScheduler creates a scheduler. post must deliver callbacks onto the
// goroutine that owns the scheduler.
func NewScheduler(c clock.Clock, post func(func()), source meeting.Source, notifier notify.Notifier, log *logger.Logger) *Scheduler {
	return &Scheduler{
		clock:    c,
		timers:   clock.NewGroup(c, post),
		source:   source,
		notifier: notifier,
		listener: nopListener{},
		logger:   log.Named("scheduler"),
	}
}

// SetListener registers the receiver of countdown events
func (s *Scheduler) SetListener(l Listener) {
	if l == nil {
		l = nopListener{}
	}
	s.listener = l
}

// Schedule starts counting down to m, replacing any current run. A meeting
// that is already due is reported as reached straight away.
func (s *Scheduler) Schedule(m meeting.Meeting) {
	s.Cancel()

	now := s.clock.Now()
	total := secondsUntil(now, m.Start)
	if total <= 0 {
		s.logger.Info("Meeting already due, starting immediately",
			logger.String("meeting", m.Title),
			logger.Time("start", m.Start))
		s.reach(m)
		return
	}

	run := &runState{
		meeting:  m,
		plan:     BuildPlan(total),
		deadline: now.Add(time.Duration(total) * time.Second),
	}
	s.run = run

	s.logger.Info("Meeting scheduled",
		logger.String("meeting", m.Title),
		logger.Time("start", m.Start),
		logger.Int("seconds", total),
		logger.String("plan", run.plan.String()))

	s.emit(run, InitialLabel(run.deadline.Sub(now)))
	s.startSegment(run, 0, now)
}

// Cancel stops the current run. Every outstanding timer is invalidated and
// the pre-start alert, if any, is withdrawn. Safe to call repeatedly.
func (s *Scheduler) Cancel() {
	s.timers.Cancel()
	run := s.run
	s.run = nil
	if run == nil {
		return
	}
	s.notifier.Retract(run.preStartID)
	s.logger.Info("Countdown canceled", logger.String("meeting", run.meeting.Title))
}

// Reschedule cancels the current run and starts a new one. The previous
// meeting is kept if it is still in the future, unless requery is set, in
// which case the meeting source is always consulted.
func (s *Scheduler) Reschedule(requery bool) {
	var previous *meeting.Meeting
	if s.run != nil {
		m := s.run.meeting
		previous = &m
	}
	s.Cancel()

	now := s.clock.Now()
	if previous != nil && !requery && previous.Start.After(now) {
		s.Schedule(*previous)
		return
	}

	if !s.source.IsScheduleEnabled() || s.source.IsScheduleEmpty() {
		s.logger.Info("No schedule active")
		return
	}
	next, ok := s.source.NextMeeting(now)
	if !ok {
		s.logger.Info("Meeting source returned no upcoming meeting")
		return
	}
	s.Schedule(next)
}

// Active returns the meeting being counted down to
func (s *Scheduler) Active() (meeting.Meeting, bool) {
	if s.run == nil {
		return meeting.Meeting{}, false
	}
	return s.run.meeting, true
}

// Overriding reports whether the final window owns the status display
func (s *Scheduler) Overriding() bool {
	return s.run != nil && s.run.overriding
}

// Label returns the most recent countdown label
func (s *Scheduler) Label() string {
	if s.run == nil {
		return ""
	}
	return s.run.label
}

// State returns a snapshot of the current run
func (s *Scheduler) State() (RunState, bool) {
	if s.run == nil {
		return RunState{}, false
	}
	return RunState{
		Meeting:                s.run.meeting,
		Plan:                   s.run.plan,
		Deadline:               s.run.deadline,
		Label:                  s.run.label,
		Overriding:             s.run.overriding,
		PreStartNotificationID: s.run.preStartID,
		Handles:                len(s.run.handles),
		PendingTimers:          s.timers.Pending(),
	}, true
}

// Preview computes the plan and first label for m without scheduling it
func Preview(now time.Time, m meeting.Meeting) (Plan, string) {
	total := secondsUntil(now, m.Start)
	return BuildPlan(total), InitialLabel(time.Duration(total) * time.Second)
}

func (s *Scheduler) startSegment(run *runState, i int, at time.Time) {
	if s.run != run {
		return
	}
	if i >= len(run.plan.Segments) {
		s.reach(run.meeting)
		return
	}

	seg := run.plan.Segments[i]
	end := at.Add(seg.Duration())
	last := i == len(run.plan.Segments)-1

	if seg.Align {
		h := s.timers.At(end, func() {
			if !last {
				next := run.plan.Segments[i+1].Granularity
				s.emit(run, FormatRemaining(next, run.deadline.Sub(end)))
			}
			s.startSegment(run, i+1, end)
		})
		run.handles = append(run.handles, h)
		return
	}

	if seg.Granularity == Second {
		s.enterFinalWindow(run, at)
		if s.run != run {
			return
		}
	}

	unit := seg.Granularity.Unit()
	h := s.timers.Repeat(at, unit, seg.Count, func(n int) {
		tickAt := at.Add(time.Duration(n) * unit)
		s.emit(run, FormatRemaining(seg.Granularity, run.deadline.Sub(tickAt)))
		if n < seg.Count || s.run != run {
			return
		}
		if last {
			s.reach(run.meeting)
			return
		}
		s.startSegment(run, i+1, end)
	})
	run.handles = append(run.handles, h)
}

func (s *Scheduler) enterFinalWindow(run *runState, at time.Time) {
	if run.overriding {
		return
	}
	run.overriding = true
	if run.preStartID == "" {
		run.preStartID = s.notifier.Post(
			fmt.Sprintf("%s Meeting Soon", run.meeting.Title),
			"Your course is meeting soon.")
	}
	s.logger.Info("Final countdown window entered",
		logger.String("meeting", run.meeting.Title),
		logger.Duration("remaining", run.deadline.Sub(at)))

	s.listener.OverrideChanged(true)
	if s.run == run {
		s.emit(run, FormatRemaining(Second, run.deadline.Sub(at)))
	}
}

// reach ends the run and hands the meeting to the listener. All run state
// is cleared first because the listener may schedule the next meeting.
func (s *Scheduler) reach(m meeting.Meeting) {
	preStartID := ""
	if s.run != nil {
		preStartID = s.run.preStartID
	}
	s.timers.Cancel()
	s.run = nil

	id := s.notifier.Post(
		fmt.Sprintf("Recording Started for %s", m.Title),
		"The recording has started for this course.")
	s.notifier.Retract(preStartID)

	s.logger.Info("Meeting reached",
		logger.String("meeting", m.Title),
		logger.String("notification_id", id))
	s.listener.MeetingReached(m, id)
}

func (s *Scheduler) emit(run *runState, label string) {
	if s.run != run || run.label == label {
		return
	}
	run.label = label
	s.logger.Debug("Countdown", logger.String("label", label))
	s.listener.CountdownUpdated(label)
}

// secondsUntil rounds up so the final tick never lands before start
func secondsUntil(now, start time.Time) int {
	d := start.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

type nopListener struct{}

func (nopListener) CountdownUpdated(string)                {}
func (nopListener) OverrideChanged(bool)                   {}
func (nopListener) MeetingReached(meeting.Meeting, string) {}
