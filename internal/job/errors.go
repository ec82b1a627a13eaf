package job

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied means capture is unavailable to this process
	ErrPermissionDenied = errors.New("permission to use the microphone is not granted")
	// ErrAlreadyRecording means the recording slot is held by another job
	ErrAlreadyRecording = fmt.Errorf("%w: a recording is already happening", ErrPermissionDenied)
	// ErrCaptureDevice means the capture device could not be started
	ErrCaptureDevice = errors.New("capture device error")
	// ErrCaptureFailure means capture ended without usable audio
	ErrCaptureFailure = errors.New("capture failed")
	// ErrTranscriptionFailure means the engine reported an error
	ErrTranscriptionFailure = errors.New("transcription failed")
	// ErrOutputFailure means the transcript could not be written
	ErrOutputFailure = errors.New("transcript could not be saved")
	// ErrCanceled means the coordinator canceled the job
	ErrCanceled = errors.New("job canceled")
)

// ErrorInfo is the serializable form of a job error
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorInfo classifies err. A nil error yields nil.
func NewErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	return &ErrorInfo{Code: Code(err), Message: err.Error()}
}

// Code maps an error onto a stable identifier
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAlreadyRecording):
		return "already_recording"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrCaptureDevice):
		return "capture_device"
	case errors.Is(err, ErrCaptureFailure):
		return "capture_failure"
	case errors.Is(err, ErrTranscriptionFailure):
		return "transcription_failure"
	case errors.Is(err, ErrOutputFailure):
		return "output_failure"
	case errors.Is(err, ErrCanceled):
		return "canceled"
	default:
		return "unknown"
	}
}

func wrap(kind error, err error) error {
	if err == nil {
		return kind
	}
	return fmt.Errorf("%w: %v", kind, err)
}
