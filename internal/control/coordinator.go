package control

import (
	"errors"
	"fmt"
	"sort"

	"github.com/yegors/class-transcribe/internal/capture"
	"github.com/yegors/class-transcribe/internal/clock"
	"github.com/yegors/class-transcribe/internal/countdown"
	"github.com/yegors/class-transcribe/internal/eventloop"
	"github.com/yegors/class-transcribe/internal/job"
	"github.com/yegors/class-transcribe/internal/meeting"
	"github.com/yegors/class-transcribe/internal/notify"
	"github.com/yegors/class-transcribe/internal/status"
	"github.com/yegors/class-transcribe/internal/transcription"
	"github.com/yegors/class-transcribe/pkg/logger"
)

// MessageTypeJobUpdated is the websocket message carrying job snapshots
const MessageTypeJobUpdated = "job_updated"

// ErrJobNotFound is returned for ids that are not in the active set
var ErrJobNotFound = errors.New("job not found")

// Scheduler is the part of the countdown scheduler the coordinator drives
type Scheduler interface {
	Reschedule(requery bool)
	Cancel()
	Active() (meeting.Meeting, bool)
	Overriding() bool
	Label() string
}

// Journal receives a snapshot whenever a job changes state
type Journal interface {
	Record(snap job.Snapshot)
}

// Publisher fans messages out to connected clients
type Publisher interface {
	Publish(messageType string, data map[string]any)
}

// Config tunes the coordinator
type Config struct {
	// AutoStop ends schedule-triggered recordings when the meeting ends
	AutoStop   bool
	SampleRate int
}

// Deps are the coordinator's collaborators. Journal and Publisher may be nil.
type Deps struct {
	Clock       clock.Clock
	Poster      eventloop.Poster
	Scheduler   Scheduler
	Source      meeting.Source
	Status      status.Sink
	Notifier    notify.Notifier
	Capture     capture.Device
	Engine      transcription.Engine
	Destination transcription.Destination
	Journal     Journal
	Publisher   Publisher
	Logger      *logger.Logger
}

// Overview is what the status endpoint reports
type Overview struct {
	Status       status.Label     `json:"status"`
	TrackedJobID string           `json:"tracked_job_id,omitempty"`
	RecordingJob string           `json:"recording_job_id,omitempty"`
	Overriding   bool             `json:"overriding"`
	Meeting      *meeting.Meeting `json:"meeting,omitempty"`
	Countdown    string           `json:"countdown,omitempty"`
	ActiveJobs   int              `json:"active_jobs"`
}

// Coordinator owns the active job set and the recording slot, and decides
// which job the status line tracks. It is owned by the event loop; none of
// its methods may be called from other goroutines.
type Coordinator struct {
	cfg    Config
	deps   Deps
	slot   job.Slot
	jobs   []*job.Job
	seq    uint64
	timers *clock.Group

	tracked   string
	label     status.Label
	journaled map[string]job.State

	logger *logger.Logger
}

// NewCoordinator creates a coordinator. The caller registers it as the
// scheduler's listener.
func NewCoordinator(cfg Config, deps Deps) *Coordinator {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &Coordinator{
		cfg:       cfg,
		deps:      deps,
		timers:    clock.NewGroup(deps.Clock, deps.Poster.Post),
		label:     status.Idle,
		journaled: make(map[string]job.State),
		logger:    deps.Logger.Named("coordinator"),
	}
}

var _ countdown.Listener = (*Coordinator)(nil)
var _ job.Listener = (*Coordinator)(nil)

// Start begins waiting for the next scheduled meeting
func (c *Coordinator) Start() {
	c.logger.Info("Starting coordinator",
		logger.Bool("schedule_enabled", c.deps.Source.IsScheduleEnabled()),
		logger.Bool("auto_stop", c.cfg.AutoStop))
	c.resumeSchedule()
	c.refresh()
}

// Shutdown cancels every active job and the countdown
func (c *Coordinator) Shutdown() {
	c.deps.Scheduler.Cancel()
	c.timers.Cancel()
	for _, j := range append([]*job.Job(nil), c.jobs...) {
		j.Cancel()
	}
}

// RequestRecording toggles recording. If a job holds the slot it is
// stopped and returned; otherwise a manual recording is started.
func (c *Coordinator) RequestRecording() *job.Job {
	if j := c.recordingJob(); j != nil {
		c.logger.Info("Recording already running, treating request as stop",
			logger.String("job_id", j.ID()))
		j.StopRecording()
		c.refresh()
		return j
	}
	return c.startRecording(nil, "")
}

// StopRecording finishes the current recording early
func (c *Coordinator) StopRecording() (*job.Job, bool) {
	j := c.recordingJob()
	if j == nil {
		return nil, false
	}
	ok := j.StopRecording()
	c.refresh()
	return j, ok
}

// SubmitTranscription starts a transcription-only job for an existing file
func (c *Coordinator) SubmitTranscription(path, title string) *job.Job {
	c.seq++
	j := job.NewTranscription(c.jobDeps(), path, job.Options{Seq: c.seq, Title: title})
	c.track(j)
	return j
}

// CancelJob cancels an active job
func (c *Coordinator) CancelJob(id string) error {
	j := c.find(id)
	if j == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if !j.Cancel() {
		return fmt.Errorf("job %s is already being canceled", id)
	}
	c.refresh()
	return nil
}

// ScheduleChanged restarts the countdown against the edited schedule
func (c *Coordinator) ScheduleChanged() {
	c.logger.Info("Schedule changed, rescheduling")
	c.deps.Scheduler.Reschedule(true)
	c.refresh()
}

// Woke realigns the countdown after the host slept
func (c *Coordinator) Woke() {
	c.logger.Info("Host woke from sleep, rescheduling")
	c.deps.Scheduler.Reschedule(false)
	c.refresh()
}

// Overview summarizes the coordinator for the status endpoint
func (c *Coordinator) Overview() Overview {
	o := Overview{
		Status:       c.label,
		TrackedJobID: c.tracked,
		Overriding:   c.deps.Scheduler.Overriding(),
		ActiveJobs:   len(c.jobs),
	}
	if holder, ok := c.slot.Holder(); ok {
		o.RecordingJob = holder
	}
	if m, ok := c.deps.Scheduler.Active(); ok {
		o.Meeting = &m
		o.Countdown = c.deps.Scheduler.Label()
	}
	return o
}

// Jobs returns snapshots of the active jobs, oldest first
func (c *Coordinator) Jobs() []job.Snapshot {
	snaps := c.snapshots()
	sort.Slice(snaps, func(i, k int) bool { return snaps[i].Seq < snaps[k].Seq })
	return snaps
}

// Job returns the snapshot of an active job
func (c *Coordinator) Job(id string) (job.Snapshot, bool) {
	j := c.find(id)
	if j == nil {
		return job.Snapshot{}, false
	}
	return j.Snapshot(), true
}

// Tracked returns the id of the job that owns the status line
func (c *Coordinator) Tracked() (string, bool) {
	return c.tracked, c.tracked != ""
}

// Status returns the label last pushed to the status sink
func (c *Coordinator) Status() status.Label {
	return c.label
}

// CountdownUpdated implements countdown.Listener
func (c *Coordinator) CountdownUpdated(string) {
	c.refresh()
}

// OverrideChanged implements countdown.Listener
func (c *Coordinator) OverrideChanged(active bool) {
	c.logger.Debug("Countdown override changed", logger.Bool("active", active))
	c.refresh()
}

// MeetingReached implements countdown.Listener
func (c *Coordinator) MeetingReached(m meeting.Meeting, notificationID string) {
	c.logger.Info("Meeting reached, starting recording",
		logger.String("meeting", m.Title),
		logger.Time("start", m.Start))
	c.startRecording(&m, notificationID)
}

// JobUpdated implements job.Listener
func (c *Coordinator) JobUpdated(j *job.Job) {
	snap := j.Snapshot()
	c.journal(snap)
	c.publish(snap)
	c.refresh()
}

// JobCompleted implements job.Listener
func (c *Coordinator) JobCompleted(j *job.Job) {
	snap := j.Snapshot()
	c.logger.Info("Job completed",
		logger.String("job_id", snap.ID),
		logger.String("title", snap.Title()),
		logger.String("transcript", snap.TranscriptPath))
	c.deps.Notifier.Post("Transcript Saved", fmt.Sprintf("%s: %s", snap.Title(), snap.TranscriptPath))
	c.finish(j)
}

// JobFailed implements job.Listener. It also runs for recordings that fail
// inside their constructor, before they were ever added to the set.
func (c *Coordinator) JobFailed(j *job.Job) {
	snap := j.Snapshot()
	c.logger.Warn("Job failed",
		logger.String("job_id", snap.ID),
		logger.String("kind", snap.Kind.String()),
		logger.Error(j.Err()))

	j.RetractNotification()
	switch {
	case errors.Is(j.Err(), job.ErrCanceled):
	case errors.Is(j.Err(), job.ErrTranscriptionFailure), errors.Is(j.Err(), job.ErrOutputFailure):
		c.deps.Notifier.Post("Transcription Failed", j.Err().Error())
	default:
		c.deps.Notifier.Post("Recording Failed", j.Err().Error())
	}
	c.finish(j)
}

func (c *Coordinator) startRecording(m *meeting.Meeting, notificationID string) *job.Job {
	c.seq++
	j := job.NewRecording(c.jobDeps(), job.Options{Seq: c.seq, Meeting: m, NotificationID: notificationID})
	if !c.track(j) {
		return j
	}
	if m != nil && c.cfg.AutoStop && m.DurationMinutes > 0 {
		id := j.ID()
		c.timers.At(m.End(), func() { c.autoStop(id) })
	}
	return j
}

// track adds a freshly constructed job unless it already finished
func (c *Coordinator) track(j *job.Job) bool {
	if j.State().Terminal() {
		return false
	}
	c.jobs = append(c.jobs, j)
	snap := j.Snapshot()
	c.journal(snap)
	c.publish(snap)
	c.refresh()
	return true
}

func (c *Coordinator) autoStop(id string) {
	j := c.find(id)
	if j == nil || j.State() != job.StateRecording {
		return
	}
	c.logger.Info("Meeting over, stopping recording", logger.String("job_id", id))
	j.StopRecording()
	c.refresh()
}

func (c *Coordinator) finish(j *job.Job) {
	for i, other := range c.jobs {
		if other == j {
			c.jobs = append(c.jobs[:i], c.jobs[i+1:]...)
			break
		}
	}
	snap := j.Snapshot()
	c.journal(snap)
	delete(c.journaled, snap.ID)
	c.publish(snap)

	c.resumeSchedule()
	c.refresh()
}

// resumeSchedule asks for the next meeting unless a countdown is running
func (c *Coordinator) resumeSchedule() {
	if _, ok := c.deps.Scheduler.Active(); ok {
		return
	}
	if !c.deps.Source.IsScheduleEnabled() || c.deps.Source.IsScheduleEmpty() {
		return
	}
	c.deps.Scheduler.Reschedule(true)
}

func (c *Coordinator) refresh() {
	snaps := c.snapshots()
	winner, ok := Arbitrate(snaps, c.deps.Scheduler.Overriding())

	label := status.Idle
	switch {
	case ok:
		for _, s := range snaps {
			if s.ID != winner {
				continue
			}
			tag := status.TagTranscribing
			if s.State == job.StateRecording {
				tag = status.TagRecording
			}
			label = status.Label{Tag: tag, Percentage: s.PercentageText(), Operation: s.Title()}
		}
	default:
		if m, active := c.deps.Scheduler.Active(); active {
			label = status.Label{Tag: status.TagWaiting, Percentage: c.deps.Scheduler.Label(), Operation: m.Title}
		}
	}

	c.tracked = winner
	c.label = label
	c.deps.Status.SetStatus(label)
}

func (c *Coordinator) snapshots() []job.Snapshot {
	snaps := make([]job.Snapshot, 0, len(c.jobs))
	for _, j := range c.jobs {
		if !j.State().Terminal() {
			snaps = append(snaps, j.Snapshot())
		}
	}
	return snaps
}

func (c *Coordinator) recordingJob() *job.Job {
	holder, ok := c.slot.Holder()
	if !ok {
		return nil
	}
	return c.find(holder)
}

func (c *Coordinator) find(id string) *job.Job {
	for _, j := range c.jobs {
		if j.ID() == id {
			return j
		}
	}
	return nil
}

func (c *Coordinator) jobDeps() job.Deps {
	return job.Deps{
		Slot:        &c.slot,
		Capture:     c.deps.Capture,
		Engine:      c.deps.Engine,
		Destination: c.deps.Destination,
		Notifier:    c.deps.Notifier,
		Poster:      c.deps.Poster,
		Listener:    c,
		Clock:       c.deps.Clock,
		SampleRate:  c.cfg.SampleRate,
		Logger:      c.deps.Logger,
	}
}

// journal records snap when its state differs from the last entry
func (c *Coordinator) journal(snap job.Snapshot) {
	if c.deps.Journal == nil {
		return
	}
	if last, ok := c.journaled[snap.ID]; ok && last == snap.State {
		return
	}
	c.journaled[snap.ID] = snap.State
	c.deps.Journal.Record(snap)
}

func (c *Coordinator) publish(snap job.Snapshot) {
	if c.deps.Publisher == nil {
		return
	}
	c.deps.Publisher.Publish(MessageTypeJobUpdated, map[string]any{"job": snap})
}
