package youtube

import (
	"context"
	"errors"
	"testing"
)

type fakeExecutor struct {
	out   string
	err   error
	calls [][]string
}

func (f *fakeExecutor) Execute(_ context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.out, f.err
}

func TestFetchMetadata(t *testing.T) {
	exec := &fakeExecutor{out: `{"id":"abc12345678","title":"A talk","duration":754.6}`}
	client := NewMetadataClient(exec, "")

	meta, err := client.FetchMetadata(context.Background(), "https://youtu.be/abc12345678")
	if err != nil {
		t.Fatalf("FetchMetadata() error = %v", err)
	}
	if meta.Title == nil || *meta.Title != "A talk" {
		t.Errorf("title = %v", meta.Title)
	}
	if meta.Duration == nil || *meta.Duration != 755 {
		t.Errorf("duration = %v, want 755", meta.Duration)
	}

	if len(exec.calls) != 1 || exec.calls[0][0] != "yt-dlp" {
		t.Fatalf("calls = %v", exec.calls)
	}
	last := exec.calls[0][len(exec.calls[0])-1]
	if last != "https://youtu.be/abc12345678" {
		t.Errorf("url argument = %q", last)
	}
}

func TestFetchMetadataMissingFields(t *testing.T) {
	client := NewMetadataClient(&fakeExecutor{out: `{"id":"abc12345678"}`}, "yt-dlp")

	meta, err := client.FetchMetadata(context.Background(), "u")
	if err != nil {
		t.Fatalf("FetchMetadata() error = %v", err)
	}
	if meta.Title != nil || meta.Duration != nil {
		t.Errorf("meta = %+v, want empty", meta)
	}
}

func TestFetchMetadataErrors(t *testing.T) {
	tests := []struct {
		name string
		exec *fakeExecutor
	}{
		{name: "command failure", exec: &fakeExecutor{err: errors.New("exit status 1")}},
		{name: "bad json", exec: &fakeExecutor{out: "ERROR: Video unavailable"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewMetadataClient(tt.exec, "yt-dlp")
			if _, err := client.FetchMetadata(context.Background(), "u"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
