package control

import "github.com/yegors/class-transcribe/internal/job"

// Arbitrate picks the job whose status is shown. A recording always wins.
// While the countdown overrides the display no transcription wins; otherwise
// the most recently created transcription does. Terminal jobs never win.
func Arbitrate(jobs []job.Snapshot, overriding bool) (string, bool) {
	var recording, transcribing *job.Snapshot
	for i := range jobs {
		s := &jobs[i]
		switch s.State {
		case job.StateRecording:
			if recording == nil || s.Seq > recording.Seq {
				recording = s
			}
		case job.StateTranscribing:
			if transcribing == nil || s.Seq > transcribing.Seq {
				transcribing = s
			}
		}
	}

	switch {
	case recording != nil:
		return recording.ID, true
	case overriding:
		return "", false
	case transcribing != nil:
		return transcribing.ID, true
	default:
		return "", false
	}
}
