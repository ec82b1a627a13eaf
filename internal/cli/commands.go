package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/yegors/class-transcribe/internal/control"
	"github.com/yegors/class-transcribe/internal/countdown"
	"github.com/yegors/class-transcribe/internal/meeting"
)

var now = time.Now

type scheduleMeeting struct {
	Title           string `json:"title"`
	Weekday         string `json:"weekday"`
	Start           string `json:"start"`
	DurationMinutes int    `json:"duration_minutes"`
}

type scheduleView struct {
	Enabled  bool              `json:"enabled"`
	Timezone string            `json:"timezone,omitempty"`
	Meetings []scheduleMeeting `json:"meetings"`
}

type jobReply struct {
	Job jobView `json:"job"`
}

func NewStatusCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the status line and the next meeting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var reply struct {
				Overview control.Overview `json:"overview"`
			}
			if err := client().Do(cmd.Context(), http.MethodGet, "/status", nil, &reply); err != nil {
				return err
			}
			NewFormatter(cmd.OutOrStdout()).Overview(reply.Overview)
			return nil
		},
	}
}

func NewRecordCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Start a manual recording, or stop the one in progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var reply jobReply
			if err := client().Do(cmd.Context(), http.MethodPost, "/recording/toggle", nil, &reply); err != nil {
				return err
			}
			f := NewFormatter(cmd.OutOrStdout())
			if reply.Job.State == "recording" {
				f.Info("Recording started: " + reply.Job.ID)
			} else {
				f.Info("Recording stopped, transcribing: " + reply.Job.ID)
			}
			return nil
		},
	}
}

func NewStopCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the current recording and transcribe it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var reply jobReply
			if err := client().Do(cmd.Context(), http.MethodPost, "/recording/stop", nil, &reply); err != nil {
				return err
			}
			NewFormatter(cmd.OutOrStdout()).Info("Recording stopped: " + reply.Job.ID)
			return nil
		},
	}
}

func NewTranscribeCmd(client func() *Client) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "transcribe <file>",
		Short: "Transcribe an existing audio or video file",
		Long:  "Submit a recording that is already on disk. The path is resolved locally, so the server must run on the same machine.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("failed to resolve %s: %w", args[0], err)
			}
			var reply struct {
				Job       jobView `json:"job"`
				MediaType string  `json:"media_type"`
			}
			body := map[string]string{"path": path, "title": title}
			if err := client().Do(cmd.Context(), http.MethodPost, "/transcriptions", body, &reply); err != nil {
				return err
			}
			NewFormatter(cmd.OutOrStdout()).Info(fmt.Sprintf("Transcribing %s (%s): %s", filepath.Base(path), reply.MediaType, reply.Job.ID))
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Title used in the transcript file name and prompt")
	return cmd
}

func NewJobsCmd(client func() *Client) *cobra.Command {
	var (
		history bool
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List active jobs, or finished ones with --history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/jobs"
			if history {
				path = "/jobs/history?limit=" + strconv.Itoa(limit)
			}
			var reply struct {
				Jobs []jobView `json:"jobs"`
			}
			if err := client().Do(cmd.Context(), http.MethodGet, path, nil, &reply); err != nil {
				return err
			}
			f := NewFormatter(cmd.OutOrStdout())
			if len(reply.Jobs) == 0 {
				f.Info("No jobs")
				return nil
			}
			for _, j := range reply.Jobs {
				f.Job(j)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "Show journaled jobs instead of active ones")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of history entries")
	return cmd
}

func NewCancelCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel an active job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().Do(cmd.Context(), http.MethodDelete, "/jobs/"+url.PathEscape(args[0]), nil, nil); err != nil {
				return err
			}
			NewFormatter(cmd.OutOrStdout()).Info("Canceled " + args[0])
			return nil
		},
	}
}

func NewScheduleCmd(client func() *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show the weekly schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var s scheduleView
			if err := client().Do(cmd.Context(), http.MethodGet, "/schedule", nil, &s); err != nil {
				return err
			}
			NewFormatter(cmd.OutOrStdout()).Schedule(s)
			return nil
		},
	}
	cmd.AddCommand(newScheduleToggleCmd(client, "enable", true))
	cmd.AddCommand(newScheduleToggleCmd(client, "disable", false))
	return cmd
}

func newScheduleToggleCmd(client func() *Client, use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: "Turn automatic recording " + map[bool]string{true: "on", false: "off"}[enabled],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client()
			var s scheduleView
			if err := c.Do(cmd.Context(), http.MethodGet, "/schedule", nil, &s); err != nil {
				return err
			}
			s.Enabled = enabled
			var updated scheduleView
			if err := c.Do(cmd.Context(), http.MethodPut, "/schedule", s, &updated); err != nil {
				return err
			}
			NewFormatter(cmd.OutOrStdout()).Schedule(updated)
			return nil
		},
	}
}

// NewPlanCmd previews a countdown without a server
func NewPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <duration|RFC3339 time>",
		Short: "Show how a countdown would be split into segments",
		Example: "  classctl plan 2h10m\n" +
			"  classctl plan 2024-09-02T09:00:00-04:00",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from := now()
			start, err := parseTarget(from, args[0])
			if err != nil {
				return err
			}
			plan, label := countdown.Preview(from, meeting.Meeting{Start: start})
			NewFormatter(cmd.OutOrStdout()).Plan(plan, label)
			return nil
		},
	}
}

func parseTarget(from time.Time, arg string) (time.Time, error) {
	if d, err := time.ParseDuration(arg); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("duration must not be negative: %s", arg)
		}
		return from.Add(d), nil
	}
	t, err := time.Parse(time.RFC3339, arg)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected a duration like 90m or an RFC3339 time, got %q", arg)
	}
	return t, nil
}
