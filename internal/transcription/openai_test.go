package transcription

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yegors/class-transcribe/pkg/logger"
)

func TestOpenAIBackendTranscribesChunk(t *testing.T) {
	var form map[string]string
	var fileName string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() = %v", err)
		}
		form = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			form[k] = v[0]
		}
		if fh := r.MultipartForm.File["file"]; len(fh) == 1 {
			fileName = fh[0].Filename
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"hello there","segments":[{"start":0.5,"end":1.25,"text":" hello "},{"start":1.25,"end":9,"text":"there"}]}`))
	}))
	defer server.Close()

	b := NewOpenAIBackend(Config{APIKey: "sk-test", Model: "whisper-1", BaseURL: server.URL + "/", Language: "en", Prompt: "Calculus"}, logger.NewNop())
	segments, err := b.TranscribeChunk(context.Background(), Chunk{
		Samples: make([]float32, 20), SampleRate: 10, Index: 2, Count: 3, Title: "MATH 200",
	})
	if err != nil {
		t.Fatalf("TranscribeChunk() = %v", err)
	}

	want := []Segment{
		{Start: 500 * time.Millisecond, End: 1250 * time.Millisecond, Text: "hello"},
		{Start: 1250 * time.Millisecond, End: 2 * time.Second, Text: "there"},
	}
	if len(segments) != len(want) {
		t.Fatalf("segments = %v, want %v", segments, want)
	}
	for i := range want {
		if segments[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, segments[i], want[i])
		}
	}

	for k, v := range map[string]string{
		"model":                     "whisper-1",
		"response_format":           "verbose_json",
		"timestamp_granularities[]": "segment",
		"language":                  "en",
		"prompt":                    "MATH 200. Calculus",
	} {
		if form[k] != v {
			t.Errorf("form[%q] = %q, want %q", k, form[k], v)
		}
	}
	if fileName != "chunk-002.wav" {
		t.Errorf("file name = %q", fileName)
	}
}

func TestOpenAIBackendTextOnlyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"  whole chunk  "}`))
	}))
	defer server.Close()

	b := NewOpenAIBackend(Config{Model: "whisper-1", BaseURL: server.URL}, logger.NewNop())
	segments, err := b.TranscribeChunk(context.Background(), Chunk{Samples: make([]float32, 30), SampleRate: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 1 || segments[0].Text != "whole chunk" || segments[0].End != 3*time.Second {
		t.Fatalf("segments = %+v", segments)
	}
}

func TestOpenAIBackendErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	b := NewOpenAIBackend(Config{Model: "whisper-1", BaseURL: server.URL}, logger.NewNop())
	_, err := b.TranscribeChunk(context.Background(), Chunk{Samples: make([]float32, 10), SampleRate: 10})
	if err == nil || !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "bad key") {
		t.Fatalf("err = %v", err)
	}
}

func TestOpenAIBaseURLResolution(t *testing.T) {
	t.Setenv("OPENAI_API_BASE", "http://proxy.local/")
	if b := NewOpenAIBackend(Config{}, logger.NewNop()); b.baseURL != "http://proxy.local" {
		t.Errorf("env base = %q", b.baseURL)
	}
	if b := NewOpenAIBackend(Config{BaseURL: "http://explicit"}, logger.NewNop()); b.baseURL != "http://explicit" {
		t.Errorf("explicit base = %q", b.baseURL)
	}
	t.Setenv("OPENAI_API_BASE", "")
	if b := NewOpenAIBackend(Config{}, logger.NewNop()); b.baseURL != DefaultOpenAIBase {
		t.Errorf("default base = %q", b.baseURL)
	}
}
