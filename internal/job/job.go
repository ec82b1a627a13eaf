package job

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yegors/class-transcribe/internal/capture"
	"github.com/yegors/class-transcribe/internal/clock"
	"github.com/yegors/class-transcribe/internal/eventloop"
	"github.com/yegors/class-transcribe/internal/meeting"
	"github.com/yegors/class-transcribe/internal/notify"
	"github.com/yegors/class-transcribe/internal/transcription"
	"github.com/yegors/class-transcribe/pkg/logger"
)

// Listener is told about every transition. Calls happen on the event loop.
type Listener interface {
	JobUpdated(j *Job)
	JobCompleted(j *Job)
	JobFailed(j *Job)
}

// Deps are the collaborators a job talks to
type Deps struct {
	Slot        *Slot
	Capture     capture.Device
	Engine      transcription.Engine
	Destination transcription.Destination
	Notifier    notify.Notifier
	Poster      eventloop.Poster
	Listener    Listener
	Clock       clock.Clock
	SampleRate  int
	Logger      *logger.Logger
}

// Options describe a new job
type Options struct {
	Seq            uint64
	Meeting        *meeting.Meeting
	Title          string
	NotificationID string
}

// Job is one recording-then-transcription, or transcription-only, unit of
// work. Every method and callback runs on the event loop; collaborator
// callbacks are posted back onto it before touching the job.
type Job struct {
	id      string
	kind    Kind
	state   State
	seq     uint64
	meeting *meeting.Meeting
	name    string
	err     error

	pendingNotificationID string
	progress              float64
	hasProgress           bool
	saving                bool
	canceled              bool

	sourcePath     string
	transcriptPath string
	createdAt      time.Time
	updatedAt      time.Time

	capture capture.Handle
	ctx     context.Context
	cancel  context.CancelFunc

	deps   Deps
	logger *logger.Logger
}

func newJob(deps Deps, kind Kind, state State, opts Options) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	now := deps.Clock.Now()
	id := uuid.NewString()
	return &Job{
		id:                    id,
		kind:                  kind,
		state:                 state,
		seq:                   opts.Seq,
		meeting:               opts.Meeting,
		name:                  opts.Title,
		pendingNotificationID: opts.NotificationID,
		createdAt:             now,
		updatedAt:             now,
		ctx:                   ctx,
		cancel:                cancel,
		deps:                  deps,
		logger:                deps.Logger.Named("job").With(logger.String("job_id", id)),
	}
}

// NewRecording starts a live recording. If the slot is taken or capture is
// not permitted the job is returned already Failed, and the listener has
// been told synchronously; the slot is never touched in that case.
func NewRecording(deps Deps, opts Options) *Job {
	j := newJob(deps, KindRecording, StateRecording, opts)

	if holder, busy := deps.Slot.Holder(); busy {
		j.fail(fmt.Errorf("%w (held by job %s)", ErrAlreadyRecording, holder))
		return j
	}
	if err := deps.Capture.Permitted(); err != nil {
		j.fail(wrap(ErrPermissionDenied, err))
		return j
	}

	deps.Slot.Acquire(j.id)
	handle, err := deps.Capture.Start(j.Snapshot().Title(), func(samples []float32, err error) {
		deps.Poster.Post(func() { j.captureFinished(samples, err) })
	})
	if err != nil {
		deps.Slot.Release(j.id)
		j.fail(wrap(ErrCaptureDevice, err))
		return j
	}
	j.capture = handle

	j.logger.Info("Recording started", logger.String("title", j.Snapshot().Title()))
	return j
}

// NewTranscription transcribes an existing recording. The job starts in
// Transcribing and never holds the recording slot.
func NewTranscription(deps Deps, path string, opts Options) *Job {
	j := newJob(deps, KindTranscribeOnly, StateTranscribing, opts)
	j.sourcePath = path
	j.logger.Info("Transcription job created", logger.String("path", path))
	j.startTranscription(transcription.Input{Path: path})
	return j
}

// ID returns the job's unique id
func (j *Job) ID() string { return j.id }

// Kind returns whether the job records or only transcribes
func (j *Job) Kind() Kind { return j.kind }

// State returns the current lifecycle state
func (j *Job) State() State { return j.state }

// Seq returns the creation sequence number assigned by the coordinator
func (j *Job) Seq() uint64 { return j.seq }

// Err returns the failure cause, if any
func (j *Job) Err() error { return j.err }

// Snapshot copies the job's state
func (j *Job) Snapshot() Snapshot {
	return Snapshot{
		ID:                    j.id,
		Kind:                  j.kind,
		State:                 j.state,
		Seq:                   j.seq,
		Meeting:               j.meeting,
		Name:                  j.name,
		Progress:              j.progress,
		HasProgress:           j.hasProgress,
		Error:                 NewErrorInfo(j.err),
		PendingNotificationID: j.pendingNotificationID,
		SourcePath:            j.sourcePath,
		TranscriptPath:        j.transcriptPath,
		CreatedAt:             j.createdAt,
		UpdatedAt:             j.updatedAt,
	}
}

// StopRecording finishes a recording early. Capture still completes and
// the audio goes on to transcription.
func (j *Job) StopRecording() bool {
	if j.state != StateRecording || j.capture == nil {
		return false
	}
	j.logger.Info("Stopping recording")
	j.capture.Stop()
	j.RetractNotification()
	return true
}

// Cancel abandons the job. It ends Failed with ErrCanceled once the running
// collaborator reports back.
func (j *Job) Cancel() bool {
	if j.state.Terminal() || j.canceled {
		return false
	}
	j.logger.Info("Canceling job", logger.String("state", j.state.String()))
	j.canceled = true
	j.cancel()
	if j.state == StateRecording && j.capture != nil {
		j.capture.Stop()
	}
	j.RetractNotification()
	return true
}

func (j *Job) captureFinished(samples []float32, err error) {
	if j.state != StateRecording {
		return
	}
	j.capture = nil
	j.deps.Slot.Release(j.id)

	switch {
	case j.canceled:
		j.fail(ErrCanceled)
		return
	case err != nil:
		j.fail(wrap(ErrCaptureFailure, err))
		return
	case len(samples) == 0:
		j.fail(fmt.Errorf("%w: no audio captured", ErrCaptureFailure))
		return
	}

	j.logger.Info("Recording finished, transcribing",
		logger.Duration("audio", samplesDuration(len(samples), j.deps.SampleRate)))
	j.setState(StateTranscribing)
	j.deps.Listener.JobUpdated(j)
	j.startTranscription(transcription.Input{Samples: samples, SampleRate: j.deps.SampleRate})
}

func (j *Job) startTranscription(in transcription.Input) {
	in.Title = j.Snapshot().Title()
	post := j.deps.Poster.Post
	j.deps.Engine.Transcribe(j.ctx, in,
		func(p float64) {
			post(func() { j.progressed(p) })
		},
		func(segments []transcription.Segment, err error) {
			post(func() { j.transcribed(segments, err) })
		},
	)
}

func (j *Job) progressed(p float64) {
	if j.state != StateTranscribing || j.saving {
		return
	}
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	j.progress = p
	j.hasProgress = true
	j.updatedAt = j.deps.Clock.Now()
	j.deps.Listener.JobUpdated(j)
}

func (j *Job) transcribed(segments []transcription.Segment, err error) {
	if j.state != StateTranscribing || j.saving {
		return
	}
	switch {
	case j.canceled:
		j.fail(ErrCanceled)
		return
	case err != nil:
		j.fail(wrap(ErrTranscriptionFailure, err))
		return
	}

	j.saving = true
	j.progress = 1
	j.hasProgress = true

	snap := j.Snapshot()
	t := transcription.Transcript{
		JobID:      j.id,
		Title:      snap.Title(),
		SourcePath: j.sourcePath,
		CreatedAt:  j.deps.Clock.Now(),
		Segments:   segments,
	}
	if j.meeting != nil {
		t.MeetingStart = j.meeting.Start
	}

	j.logger.Info("Transcription finished, saving", logger.Int("segments", len(segments)))
	j.deps.Destination.Save(j.ctx, t, func(path string, err error) {
		j.deps.Poster.Post(func() { j.saved(path, err) })
	})
}

func (j *Job) saved(path string, err error) {
	if j.state != StateTranscribing {
		return
	}
	switch {
	case err != nil && j.canceled:
		j.fail(ErrCanceled)
		return
	case err != nil:
		j.fail(wrap(ErrOutputFailure, err))
		return
	}
	j.transcriptPath = path
	j.setState(StateComplete)
	j.cancel()
	j.logger.Info("Job complete", logger.String("transcript", path))
	j.deps.Listener.JobCompleted(j)
}

func (j *Job) fail(err error) {
	j.err = err
	j.setState(StateFailed)
	j.cancel()
	j.logger.Warn("Job failed", logger.Error(err))
	j.deps.Listener.JobFailed(j)
}

func (j *Job) setState(s State) {
	j.state = s
	j.updatedAt = j.deps.Clock.Now()
}

// RetractNotification withdraws the alert tied to this job, if any
func (j *Job) RetractNotification() {
	if j.pendingNotificationID == "" || j.deps.Notifier == nil {
		return
	}
	j.deps.Notifier.Retract(j.pendingNotificationID)
	j.pendingNotificationID = ""
}

func samplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}
