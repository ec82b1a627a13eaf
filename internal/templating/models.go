package templating

import "time"

// Template names used by the transcription pipeline
const (
	TranscriptionPrompt = "transcription_prompt"
	TranscriptFileName  = "transcript_file_name"
)

// DefaultTranscriptionPrompt asks the model for timed segments as JSON
const DefaultTranscriptionPrompt = `Transcribe this audio from a class{{if .Title}} titled "{{.Title}}"{{end}}.
{{- if .Language}} The spoken language is {{.Language}}.{{end}}
This is part {{.ChunkIndex}} of {{.ChunkCount}}, starting {{.ChunkStart}} into the recording.
Return a JSON array of objects with "start" and "end" in seconds from the start of this part and "text".
Do not summarize, translate or add commentary.
{{- if .Extra}}
{{.Extra}}{{end}}`

// DefaultTranscriptFileName names transcript files
const DefaultTranscriptFileName = `{{.Date}} {{.Time}} {{.Title}}`

// PromptData is the context for TranscriptionPrompt
type PromptData struct {
	Title      string
	Language   string
	ChunkIndex int
	ChunkCount int
	ChunkStart time.Duration
	// Extra is the free-form prompt from the configuration
	Extra string
}

// FileNameData is the context for TranscriptFileName
type FileNameData struct {
	Title string
	JobID string
	Date  string
	Time  string
}

// NewFileNameData fills the date fields from t
func NewFileNameData(title, jobID string, t time.Time) FileNameData {
	return FileNameData{
		Title: title,
		JobID: jobID,
		Date:  t.Format("2006-01-02"),
		Time:  t.Format("1504"),
	}
}
