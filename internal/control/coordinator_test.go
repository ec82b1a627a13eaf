package control

import (
	"context"
	"errors"
	"testing"
	"time"

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

var epoch = time.Date(2024, time.September, 2, 8, 0, 0, 0, time.UTC)

type board struct{ labels []status.Label }

func (b *board) SetStatus(l status.Label) { b.labels = append(b.labels, l) }

func (b *board) last() status.Label {
	if len(b.labels) == 0 {
		return status.Label{}
	}
	return b.labels[len(b.labels)-1]
}

type memJournal struct{ entries []job.Snapshot }

func (m *memJournal) Record(s job.Snapshot) { m.entries = append(m.entries, s) }

type stubSource struct {
	enabled bool
	next    []meeting.Meeting
}

func (s *stubSource) NextMeeting(now time.Time) (meeting.Meeting, bool) {
	for _, m := range s.next {
		if m.Start.After(now) {
			return m, true
		}
	}
	return meeting.Meeting{}, false
}

func (s *stubSource) IsScheduleEnabled() bool { return s.enabled }
func (s *stubSource) IsScheduleEmpty() bool   { return len(s.next) == 0 }

type fakeHandle struct{ stops int }

func (h *fakeHandle) Stop() { h.stops++ }

type fakeDevice struct {
	permitErr error
	handles   []*fakeHandle
	callbacks []func([]float32, error)
}

func (d *fakeDevice) Permitted() error { return d.permitErr }

func (d *fakeDevice) Start(_ string, onComplete func([]float32, error)) (capture.Handle, error) {
	h := &fakeHandle{}
	d.handles = append(d.handles, h)
	d.callbacks = append(d.callbacks, onComplete)
	return h, nil
}

type engineCall struct {
	ctx    context.Context
	in     transcription.Input
	onDone func([]transcription.Segment, error)
}

type fakeEngine struct{ calls []*engineCall }

func (e *fakeEngine) Transcribe(ctx context.Context, in transcription.Input, _ func(float64), onDone func([]transcription.Segment, error)) {
	e.calls = append(e.calls, &engineCall{ctx: ctx, in: in, onDone: onDone})
}

type fakeDestination struct{ callbacks []func(string, error) }

func (d *fakeDestination) Save(_ context.Context, _ transcription.Transcript, onDone func(string, error)) {
	d.callbacks = append(d.callbacks, onDone)
}

type harness struct {
	clock     *clock.Fake
	source    *stubSource
	notifier  *notify.Center
	scheduler *countdown.Scheduler
	device    *fakeDevice
	engine    *fakeEngine
	dest      *fakeDestination
	status    *board
	journal   *memJournal
	coord     *Coordinator
}

func newHarness(cfg Config, meetings ...meeting.Meeting) *harness {
	log := logger.NewNop()
	post := eventloop.Inline{}
	h := &harness{
		clock:   clock.NewFake(epoch),
		source:  &stubSource{enabled: len(meetings) > 0, next: meetings},
		device:  &fakeDevice{},
		engine:  &fakeEngine{},
		dest:    &fakeDestination{},
		status:  &board{},
		journal: &memJournal{},
	}
	h.notifier = notify.NewCenter(notify.Config{}, nil, log)
	h.scheduler = countdown.NewScheduler(h.clock, post.Post, h.source, h.notifier, log)
	h.coord = NewCoordinator(cfg, Deps{
		Clock:       h.clock,
		Poster:      post,
		Scheduler:   h.scheduler,
		Source:      h.source,
		Status:      h.status,
		Notifier:    h.notifier,
		Capture:     h.device,
		Engine:      h.engine,
		Destination: h.dest,
		Journal:     h.journal,
		Logger:      log,
	})
	h.scheduler.SetListener(h.coord)
	return h
}

func (h *harness) alerts() []string {
	var titles []string
	for _, n := range h.notifier.Active() {
		titles = append(titles, n.Title)
	}
	return titles
}

func (h *harness) hasAlert(title string) bool {
	for _, t := range h.alerts() {
		if t == title {
			return true
		}
	}
	return false
}

func TestTwoTranscriptionsTrackMostRecent(t *testing.T) {
	h := newHarness(Config{})
	h.coord.Start()

	first := h.coord.SubmitTranscription("/recordings/a.wav", "")
	second := h.coord.SubmitTranscription("/recordings/b.wav", "")

	if id, _ := h.coord.Tracked(); id != second.ID() {
		t.Fatalf("tracked %q, want second job %q", id, second.ID())
	}
	if got := h.status.last(); got.Tag != status.TagTranscribing || got.Operation != "b" {
		t.Fatalf("status = %+v", got)
	}
	if first.State() != job.StateTranscribing {
		t.Fatalf("first job state = %s", first.State())
	}

	h.engine.calls[1].onDone([]transcription.Segment{{Text: "b"}}, nil)
	h.dest.callbacks[0]("/transcripts/b.vtt", nil)

	if second.State() != job.StateComplete {
		t.Fatalf("second job state = %s", second.State())
	}
	if id, _ := h.coord.Tracked(); id != first.ID() {
		t.Fatalf("tracked %q after completion, want first job", id)
	}
	if got := h.status.last(); got.Operation != "a" {
		t.Fatalf("status = %+v, want first job", got)
	}
	if n := len(h.coord.Jobs()); n != 1 {
		t.Fatalf("active jobs = %d, want 1", n)
	}
	if !h.hasAlert("Transcript Saved") {
		t.Fatalf("alerts = %v, want Transcript Saved", h.alerts())
	}
}

func TestSecondRecordingRejected(t *testing.T) {
	h := newHarness(Config{})
	first := h.coord.RequestRecording()

	second := h.coord.startRecording(&meeting.Meeting{Title: "CS 101", Start: epoch}, "")
	if second.State() != job.StateFailed || !errors.Is(second.Err(), job.ErrAlreadyRecording) {
		t.Fatalf("second = %s, %v", second.State(), second.Err())
	}
	if !errors.Is(second.Err(), job.ErrPermissionDenied) {
		t.Fatalf("already-recording error is not a permission error")
	}
	if first.State() != job.StateRecording {
		t.Fatalf("first job disturbed: %s", first.State())
	}
	if id := h.coord.Overview().RecordingJob; id != first.ID() {
		t.Fatalf("slot holder = %q, want first job", id)
	}
	if len(h.device.handles) != 1 {
		t.Fatalf("capture started %d times", len(h.device.handles))
	}
	if n := len(h.coord.Jobs()); n != 1 {
		t.Fatalf("active jobs = %d", n)
	}
	if !h.hasAlert("Recording Failed") {
		t.Fatalf("alerts = %v", h.alerts())
	}
}

func TestRequestRecordingToggles(t *testing.T) {
	h := newHarness(Config{})
	j := h.coord.RequestRecording()

	if got := h.status.last(); got != (status.Label{Tag: status.TagRecording, Percentage: "...", Operation: "Manual recording"}) {
		t.Fatalf("status = %+v", got)
	}

	again := h.coord.RequestRecording()
	if again != j {
		t.Fatalf("second request started a new job")
	}
	if h.device.handles[0].stops != 1 {
		t.Fatalf("capture stops = %d", h.device.handles[0].stops)
	}
	if j.State() != job.StateRecording {
		t.Fatalf("stopped job left recording before capture finished: %s", j.State())
	}

	h.device.callbacks[0](make([]float32, 1600), nil)
	if got := h.status.last(); got.Tag != status.TagTranscribing {
		t.Fatalf("status = %+v, want transcribing", got)
	}

	next := h.coord.RequestRecording()
	if next == j || next.State() != job.StateRecording {
		t.Fatalf("slot not free after capture finished")
	}
	if id, _ := h.coord.Tracked(); id != next.ID() {
		t.Fatalf("recording did not take the status line")
	}
}

func TestMeetingReachedStartsRecording(t *testing.T) {
	m := meeting.Meeting{Title: "CS 101", Start: epoch.Add(30 * time.Second), DurationMinutes: 50}
	h := newHarness(Config{}, m)
	h.coord.Start()

	if got := h.status.last(); got != (status.Label{Tag: status.TagWaiting, Percentage: "0:30", Operation: "CS 101"}) {
		t.Fatalf("status = %+v", got)
	}
	if !h.coord.Overview().Overriding {
		t.Fatalf("final window not overriding")
	}

	h.clock.Advance(29 * time.Second)
	if got := h.status.last(); got.Percentage != "0:01" {
		t.Fatalf("status = %+v", got)
	}
	if len(h.device.handles) != 0 {
		t.Fatalf("recording started early")
	}

	h.clock.Advance(time.Second)
	if len(h.device.handles) != 1 {
		t.Fatalf("recording not started at meeting start")
	}
	if got := h.status.last(); got.Tag != status.TagRecording || got.Operation != "CS 101" {
		t.Fatalf("status = %+v", got)
	}
	if alerts := h.alerts(); len(alerts) != 1 || alerts[0] != "Recording Started for CS 101" {
		t.Fatalf("alerts = %v", alerts)
	}
	jobs := h.coord.Jobs()
	if len(jobs) != 1 || jobs[0].PendingNotificationID == "" {
		t.Fatalf("jobs = %+v", jobs)
	}

	h.coord.StopRecording()
	if len(h.alerts()) != 0 {
		t.Fatalf("recording-started alert survived stop: %v", h.alerts())
	}
}

func TestFailedStartRetractsAlert(t *testing.T) {
	m := meeting.Meeting{Title: "CS 101", Start: epoch.Add(5 * time.Second)}
	h := newHarness(Config{}, m)
	h.device.permitErr = capture.ErrNotPermitted
	h.coord.Start()
	h.clock.Advance(5 * time.Second)

	if alerts := h.alerts(); len(alerts) != 1 || alerts[0] != "Recording Failed" {
		t.Fatalf("alerts = %v", alerts)
	}
	if got := h.status.last(); got != status.Idle {
		t.Fatalf("status = %+v, want idle", got)
	}
	if len(h.journal.entries) != 1 || h.journal.entries[0].Error.Code != "permission_denied" {
		t.Fatalf("journal = %+v", h.journal.entries)
	}
}

func TestCompletionResumesSchedule(t *testing.T) {
	m1 := meeting.Meeting{Title: "CS 101", Start: epoch.Add(30 * time.Second)}
	m2 := meeting.Meeting{Title: "MATH 200", Start: epoch.Add(2 * time.Hour)}
	h := newHarness(Config{}, m1, m2)
	h.coord.Start()
	h.clock.Advance(30 * time.Second)

	if _, active := h.scheduler.Active(); active {
		t.Fatalf("countdown resumed while recording")
	}

	h.coord.StopRecording()
	h.device.callbacks[0](make([]float32, 1600), nil)
	h.engine.calls[0].onDone(nil, nil)
	h.dest.callbacks[0]("/transcripts/cs101.vtt", nil)

	next, active := h.scheduler.Active()
	if !active || next.Title != "MATH 200" {
		t.Fatalf("next meeting = %+v, %v", next, active)
	}
	if got := h.status.last(); got.Tag != status.TagWaiting || got.Operation != "MATH 200" {
		t.Fatalf("status = %+v", got)
	}
}

func TestAutoStopAtMeetingEnd(t *testing.T) {
	m := meeting.Meeting{Title: "CS 101", Start: epoch.Add(10 * time.Second), DurationMinutes: 1}
	h := newHarness(Config{AutoStop: true}, m)
	h.coord.Start()
	h.clock.Advance(10 * time.Second)
	h.clock.Advance(59 * time.Second)
	if h.device.handles[0].stops != 0 {
		t.Fatalf("stopped before the meeting ended")
	}
	h.clock.Advance(time.Second)
	if h.device.handles[0].stops != 1 {
		t.Fatalf("stops = %d at meeting end", h.device.handles[0].stops)
	}
}

func TestNoAutoStopWhenDisabled(t *testing.T) {
	m := meeting.Meeting{Title: "CS 101", Start: epoch.Add(10 * time.Second), DurationMinutes: 1}
	h := newHarness(Config{}, m)
	h.coord.Start()
	h.clock.Advance(5 * time.Minute)
	if h.device.handles[0].stops != 0 {
		t.Fatalf("recording stopped without auto-stop")
	}
}

func TestFinalWindowHidesTranscription(t *testing.T) {
	m := meeting.Meeting{Title: "CS 101", Start: epoch.Add(20 * time.Minute)}
	h := newHarness(Config{}, m)
	h.coord.Start()
	if got := h.status.last(); got.Percentage != "20 mins" {
		t.Fatalf("status = %+v", got)
	}

	tr := h.coord.SubmitTranscription("/recordings/lecture.wav", "Week 1")
	if id, _ := h.coord.Tracked(); id != tr.ID() {
		t.Fatalf("transcription not tracked before the final window")
	}
	if got := h.status.last(); got.Operation != "Week 1" {
		t.Fatalf("status = %+v", got)
	}

	h.clock.Advance(5 * time.Minute)
	if id, ok := h.coord.Tracked(); ok {
		t.Fatalf("job %q tracked during final window", id)
	}
	if got := h.status.last(); got != (status.Label{Tag: status.TagWaiting, Percentage: "15:00", Operation: "CS 101"}) {
		t.Fatalf("status = %+v", got)
	}
	if tr.State() != job.StateTranscribing {
		t.Fatalf("transcription disturbed by override: %s", tr.State())
	}
}

func TestCancelJob(t *testing.T) {
	h := newHarness(Config{})
	if err := h.coord.CancelJob("missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("CancelJob(missing) = %v", err)
	}

	tr := h.coord.SubmitTranscription("/recordings/lecture.wav", "")
	if err := h.coord.CancelJob(tr.ID()); err != nil {
		t.Fatalf("CancelJob() = %v", err)
	}
	call := h.engine.calls[0]
	if call.ctx.Err() == nil {
		t.Fatalf("engine context still live")
	}
	call.onDone(nil, call.ctx.Err())

	if len(h.coord.Jobs()) != 0 {
		t.Fatalf("canceled job still active")
	}
	if len(h.alerts()) != 0 {
		t.Fatalf("cancel posted alerts: %v", h.alerts())
	}
	if got := h.status.last(); got != status.Idle {
		t.Fatalf("status = %+v", got)
	}
}

func TestJournalRecordsStateChanges(t *testing.T) {
	h := newHarness(Config{})
	j := h.coord.RequestRecording()
	h.device.callbacks[0](make([]float32, 1600), nil)
	h.engine.calls[0].onDone(nil, nil)
	h.dest.callbacks[0]("/transcripts/manual.vtt", nil)

	var states []job.State
	for _, e := range h.journal.entries {
		if e.ID != j.ID() {
			t.Fatalf("unexpected job %q in journal", e.ID)
		}
		states = append(states, e.State)
	}
	want := []job.State{job.StateRecording, job.StateTranscribing, job.StateComplete}
	if len(states) != len(want) {
		t.Fatalf("journal states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("journal states = %v, want %v", states, want)
		}
	}
}

func TestScheduleChangedRequeries(t *testing.T) {
	m := meeting.Meeting{Title: "CS 101", Start: epoch.Add(3 * time.Hour)}
	h := newHarness(Config{}, m)
	h.coord.Start()

	h.source.next = []meeting.Meeting{{Title: "BIO 110", Start: epoch.Add(time.Hour)}}
	h.coord.ScheduleChanged()
	got, ok := h.scheduler.Active()
	if !ok || got.Title != "BIO 110" {
		t.Fatalf("active meeting = %+v, %v", got, ok)
	}

	h.source.next = nil
	h.source.enabled = false
	h.coord.ScheduleChanged()
	if _, ok := h.scheduler.Active(); ok {
		t.Fatalf("countdown still running with schedule disabled")
	}
	if got := h.status.last(); got != status.Idle {
		t.Fatalf("status = %+v", got)
	}
}
