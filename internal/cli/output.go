package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/yegors/class-transcribe/internal/control"
	"github.com/yegors/class-transcribe/internal/countdown"
	"github.com/yegors/class-transcribe/internal/job"
)

// Formatter renders daemon replies for a terminal
type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "%s\n", msg)
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "error: %s\n", msg)
}

func (f *Formatter) Overview(o control.Overview) {
	line := string(o.Status.Tag)
	if o.Status.Percentage != "" {
		line += " " + o.Status.Percentage
	}
	if o.Status.Operation != "" {
		line += " " + o.Status.Operation
	}
	fmt.Fprintf(f.w, "Status:   %s\n", line)
	if o.Meeting != nil {
		fmt.Fprintf(f.w, "Next:     %s at %s (%s)\n", o.Meeting.Title, o.Meeting.Start.Local().Format("Mon 15:04"), o.Countdown)
	}
	if o.RecordingJob != "" {
		fmt.Fprintf(f.w, "Recording job: %s\n", o.RecordingJob)
	}
	fmt.Fprintf(f.w, "Active jobs: %d\n", o.ActiveJobs)
}

// jobView is the subset of a job both the active list and history carry
type jobView struct {
	ID             string          `json:"id"`
	Kind           string          `json:"kind"`
	State          string          `json:"state"`
	Name           string          `json:"name"`
	Title          string          `json:"title"`
	Progress       float64         `json:"progress"`
	HasProgress    bool            `json:"has_progress"`
	Error          *job.ErrorInfo  `json:"error"`
	ErrorMessage   string          `json:"error_message"`
	SourcePath     string          `json:"source_path"`
	TranscriptPath string          `json:"transcript_path"`
	CreatedAt      time.Time       `json:"created_at"`
	Meeting        *meetingSummary `json:"meeting"`
}

type meetingSummary struct {
	Title string `json:"title"`
}

func (v jobView) title() string {
	switch {
	case v.Title != "":
		return v.Title
	case v.Name != "":
		return v.Name
	case v.Meeting != nil:
		return v.Meeting.Title
	case v.SourcePath != "":
		return filepath.Base(v.SourcePath)
	default:
		return "-"
	}
}

func (f *Formatter) Job(v jobView) {
	progress := ""
	if v.HasProgress && v.State == job.StateTranscribing.String() {
		progress = fmt.Sprintf(" %d%%", int(v.Progress*100+0.5))
	}
	fmt.Fprintf(f.w, "%s  %-15s %-13s%s  %s\n", shortID(v.ID), v.Kind, v.State, progress, v.title())
	switch {
	case v.Error != nil:
		fmt.Fprintf(f.w, "    %s: %s\n", v.Error.Code, v.Error.Message)
	case v.ErrorMessage != "":
		fmt.Fprintf(f.w, "    %s\n", v.ErrorMessage)
	}
	if v.TranscriptPath != "" {
		fmt.Fprintf(f.w, "    -> %s\n", v.TranscriptPath)
	}
}

func (f *Formatter) Plan(p countdown.Plan, label string) {
	fmt.Fprintf(f.w, "Wait:   %s\n", time.Duration(p.TotalSeconds)*time.Second)
	fmt.Fprintf(f.w, "Label:  %s\n", label)
	for _, s := range p.Segments {
		fmt.Fprintf(f.w, "  %s\n", s)
	}
}

func (f *Formatter) Schedule(s scheduleView) {
	state := "disabled"
	if s.Enabled {
		state = "enabled"
	}
	fmt.Fprintf(f.w, "Schedule %s (%s)\n", state, s.Timezone)
	if len(s.Meetings) == 0 {
		fmt.Fprintf(f.w, "  no meetings\n")
	}
	for _, m := range s.Meetings {
		fmt.Fprintf(f.w, "  %-9s %s  %3d min  %s\n", m.Weekday, m.Start, m.DurationMinutes, m.Title)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
