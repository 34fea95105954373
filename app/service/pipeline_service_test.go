package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"video-digest/app/logger"
	"video-digest/app/model"
)

type fakeAcquirer struct {
	segments model.Segments
	source   model.TranscriptSource
	err      error
	calls    int
}

func (f *fakeAcquirer) Acquire(context.Context, *model.Video) (model.Segments, model.TranscriptSource, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return f.segments, f.source, nil
}

type fakeSummarizer struct {
	summary *model.Summary
	err     error
	calls   int
	gotText string
}

func (f *fakeSummarizer) Summarize(_ context.Context, _ model.Segments, text string) (*model.Summary, error) {
	f.calls++
	f.gotText = text
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

// recordingUpdater 记录每次补丁，可在指定次数失败
type recordingUpdater struct {
	patches []model.VideoPatch
	failAt  int
}

func (r *recordingUpdater) Update(_ context.Context, id uint, patch model.VideoPatch) (*model.Video, error) {
	r.patches = append(r.patches, patch)
	if r.failAt == len(r.patches) {
		return nil, errors.New("database is locked")
	}
	v := &model.Video{ID: id}
	patch.Apply(v)
	return v, nil
}

func testSummary() *model.Summary {
	return &model.Summary{Overview: "o", KeyPoints: []model.KeyPoint{{Timestamp: 0, Text: "k"}}}
}

func newPipeline(u VideoUpdater, a TranscriptAcquirer, s Summarizer) *PipelineService {
	p := NewPipelineService(u, a, s, logger.Nop())
	p.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestPipelineRunSuccess(t *testing.T) {
	updater := &recordingUpdater{}
	acquirer := &fakeAcquirer{
		segments: model.Segments{{Start: 0, Text: "hello"}, {Start: 1.5, Text: "world"}},
		source:   model.TranscriptSourceCaptions,
	}
	summarizer := &fakeSummarizer{summary: testSummary()}
	video := &model.Video{ID: 7, VideoID: "abc12345678", Status: model.VideoStatusProcessing}

	if err := newPipeline(updater, acquirer, summarizer).Run(context.Background(), video); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(updater.patches) != 2 {
		t.Fatalf("updates = %d, want 2", len(updater.patches))
	}
	first := updater.patches[0]
	if first.TranscriptSource == nil || first.TranscriptSegments == nil || first.TranscriptText == nil {
		t.Fatalf("transcript fields must be written together: %+v", first)
	}
	if *first.TranscriptText != "hello world" {
		t.Errorf("transcript text = %q", *first.TranscriptText)
	}
	if first.Status != nil || first.Summary != nil {
		t.Errorf("first update touched non-transcript fields: %+v", first)
	}

	second := updater.patches[1]
	if second.Summary == nil || second.Status == nil || *second.Status != model.VideoStatusCompleted || second.CompletedAt == nil {
		t.Fatalf("final update = %+v", second)
	}
	if second.TranscriptSegments != nil {
		t.Error("final update should not rewrite transcript")
	}
	if summarizer.gotText != "hello world" {
		t.Errorf("summarizer text = %q", summarizer.gotText)
	}
	if video.Status != model.VideoStatusCompleted {
		t.Errorf("in-memory video status = %s", video.Status)
	}
}

func TestPipelineRunFailures(t *testing.T) {
	okAcquirer := func() *fakeAcquirer {
		return &fakeAcquirer{segments: model.Segments{{Text: "a"}}, source: model.TranscriptSourceCaptions}
	}

	tests := []struct {
		name        string
		updater     *recordingUpdater
		acquirer    *fakeAcquirer
		summarizer  *fakeSummarizer
		wantStage   string
		wantKind    FailureKind
		wantUpdates int
	}{
		{
			name:        "acquire fails",
			updater:     &recordingUpdater{},
			acquirer:    &fakeAcquirer{err: errors.New("no audio")},
			summarizer:  &fakeSummarizer{summary: testSummary()},
			wantStage:   StageAcquire,
			wantKind:    FailureTransient,
			wantUpdates: 0,
		},
		{
			name:        "transcript write fails",
			updater:     &recordingUpdater{failAt: 1},
			acquirer:    okAcquirer(),
			summarizer:  &fakeSummarizer{summary: testSummary()},
			wantStage:   StageAcquire,
			wantKind:    FailureStore,
			wantUpdates: 1,
		},
		{
			name:        "summarize fails",
			updater:     &recordingUpdater{},
			acquirer:    okAcquirer(),
			summarizer:  &fakeSummarizer{err: errors.New("timeout")},
			wantStage:   StageSummarize,
			wantKind:    FailureTransient,
			wantUpdates: 1,
		},
		{
			name:        "summary malformed",
			updater:     &recordingUpdater{},
			acquirer:    okAcquirer(),
			summarizer:  &fakeSummarizer{err: invalidOutput("bad json")},
			wantStage:   StageSummarize,
			wantKind:    FailureValidation,
			wantUpdates: 1,
		},
		{
			name:        "final write fails",
			updater:     &recordingUpdater{failAt: 2},
			acquirer:    okAcquirer(),
			summarizer:  &fakeSummarizer{summary: testSummary()},
			wantStage:   StageSummarize,
			wantKind:    FailureStore,
			wantUpdates: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(tt.updater, tt.acquirer, tt.summarizer)
			err := p.Run(context.Background(), &model.Video{ID: 1})

			var stageErr *StageError
			if !errors.As(err, &stageErr) {
				t.Fatalf("Run() error = %v, want *StageError", err)
			}
			if stageErr.Stage != tt.wantStage || stageErr.Kind != tt.wantKind {
				t.Errorf("stage error = %s/%s, want %s/%s", stageErr.Stage, stageErr.Kind, tt.wantStage, tt.wantKind)
			}
			if KindOf(err) != tt.wantKind {
				t.Errorf("KindOf() = %s", KindOf(err))
			}
			if len(tt.updater.patches) != tt.wantUpdates {
				t.Errorf("updates = %d, want %d", len(tt.updater.patches), tt.wantUpdates)
			}
		})
	}
}

func TestPipelineResumesFromSavedTranscript(t *testing.T) {
	updater := &recordingUpdater{}
	acquirer := &fakeAcquirer{err: errors.New("should not be called")}
	summarizer := &fakeSummarizer{summary: testSummary()}

	source := model.TranscriptSourceTranscribedAudio
	video := &model.Video{
		ID:                 3,
		TranscriptSource:   &source,
		TranscriptSegments: model.Segments{{Start: 0, Text: "saved"}},
		TranscriptText:     model.Ptr("saved"),
	}

	if err := newPipeline(updater, acquirer, summarizer).Run(context.Background(), video); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if acquirer.calls != 0 {
		t.Errorf("acquirer calls = %d, want 0", acquirer.calls)
	}
	if len(updater.patches) != 1 || updater.patches[0].Summary == nil {
		t.Errorf("patches = %+v", updater.patches)
	}
	if summarizer.gotText != "saved" {
		t.Errorf("summarizer text = %q", summarizer.gotText)
	}
}

func TestKindOfUntaggedError(t *testing.T) {
	if KindOf(errors.New("plain")) != FailureTransient {
		t.Error("untagged errors should be transient")
	}
}
