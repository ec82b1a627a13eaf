package capture

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/yegors/class-transcribe/internal/audio"
	"github.com/yegors/class-transcribe/pkg/logger"
)

type result struct {
	samples []float32
	err     error
}

// fakeFFmpeg writes a shell script that behaves enough like ffmpeg for the
// device: it waits for stdin to close, then leaves src at the output path.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts unavailable")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nfor last; do :; done\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFFmpegDeviceRecordsUntilStopped(t *testing.T) {
	src := filepath.Join(t.TempDir(), "source.wav")
	if err := audio.WriteWAVFile(src, []float32{0.5, -0.5, 0.25}, 16000); err != nil {
		t.Fatal(err)
	}
	bin := fakeFFmpeg(t, `cat > /dev/null
cp "`+src+`" "$last"`)

	dir := t.TempDir()
	d := NewFFmpegDevice(FFmpegConfig{FFmpegPath: bin, InputFormat: "pulse", InputDevice: "default", RecordingsDir: dir}, logger.NewNop())
	d.now = func() time.Time { return time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC) }

	if err := d.Permitted(); err != nil {
		t.Fatalf("Permitted() = %v", err)
	}

	done := make(chan result, 1)
	h, err := d.Start("CS 101: Intro", func(s []float32, err error) { done <- result{s, err} })
	if err != nil {
		t.Fatalf("Start() = %v", err)
	}
	h.Stop()
	h.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("capture error = %v", r.err)
		}
		if len(r.samples) != 3 {
			t.Fatalf("samples = %v", r.samples)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("capture never completed")
	}

	want := filepath.Join(dir, "2024-09-02 090000 CS 101- Intro.wav")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("recording not kept at %s: %v", want, err)
	}
}

func TestFFmpegDeviceReportsCrash(t *testing.T) {
	bin := fakeFFmpeg(t, `echo "device busy" >&2
exit 1`)
	d := NewFFmpegDevice(FFmpegConfig{FFmpegPath: bin, RecordingsDir: t.TempDir()}, logger.NewNop())

	done := make(chan result, 1)
	if _, err := d.Start("", func(s []float32, err error) { done <- result{s, err} }); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	select {
	case r := <-done:
		if r.err == nil || !strings.Contains(r.err.Error(), "device busy") {
			t.Fatalf("capture error = %v, want ffmpeg stderr", r.err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("capture never completed")
	}
}

func TestFFmpegDeviceStoppedWithoutOutput(t *testing.T) {
	bin := fakeFFmpeg(t, `cat > /dev/null
exit 255`)
	d := NewFFmpegDevice(FFmpegConfig{FFmpegPath: bin, RecordingsDir: t.TempDir()}, logger.NewNop())

	done := make(chan result, 1)
	h, err := d.Start("x", func(s []float32, err error) { done <- result{s, err} })
	if err != nil {
		t.Fatalf("Start() = %v", err)
	}
	h.Stop()
	r := <-done
	if r.err == nil {
		t.Fatalf("expected an error when no file was produced")
	}
}

func TestFFmpegDevicePermittedWithoutBinary(t *testing.T) {
	d := NewFFmpegDevice(FFmpegConfig{FFmpegPath: "/nonexistent/ffmpeg", RecordingsDir: t.TempDir()}, logger.NewNop())
	if err := d.Permitted(); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("Permitted() = %v, want ErrNotPermitted", err)
	}
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"":               "recording",
		"  CS 101  ":     "CS 101",
		"a/b\\c:d*e?f":   "a-b-c-d-e-f",
		`"quoted" <x>|y`: "-quoted- -x--y",
		"Week 3 (Lab)":   "Week 3 (Lab)",
	}
	for in, want := range tests {
		if got := sanitize(in); got != want {
			t.Errorf("sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPortAudioStubOrDevice(t *testing.T) {
	d, err := NewPortAudioDevice(PortAudioConfig{RecordingsDir: t.TempDir()}, logger.NewNop())
	if err != nil {
		if !errors.Is(err, ErrPortAudioUnavailable) && !strings.Contains(err.Error(), "portaudio") {
			t.Fatalf("NewPortAudioDevice() = %v", err)
		}
		return
	}
	defer d.Close()
}
