package model

import (
	"testing"
	"time"
)

func TestSegmentsJoinText(t *testing.T) {
	tests := []struct {
		name string
		segs Segments
		want string
	}{
		{name: "empty", segs: nil, want: ""},
		{name: "single", segs: Segments{{Start: 0, Text: "hello"}}, want: "hello"},
		{
			name: "keeps order",
			segs: Segments{{Start: 0, Text: "a b"}, {Start: 1.5, Text: "c"}, {Start: 3, Text: "d"}},
			want: "a b c d",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.segs.JoinText(); got != tt.want {
				t.Fatalf("JoinText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewSegmentRoundsAndTrims(t *testing.T) {
	seg := NewSegment(12.345, "  hello world \n")
	if seg.Start != 12.3 {
		t.Fatalf("start = %v, want 12.3", seg.Start)
	}
	if seg.Text != "hello world" {
		t.Fatalf("text = %q", seg.Text)
	}

	// 组合字符归一化为 NFC
	seg = NewSegment(0.06, "cafe\u0301")
	if seg.Text != "caf\u00e9" {
		t.Fatalf("text not NFC normalized: %q", seg.Text)
	}
	if seg.Start != 0.1 {
		t.Fatalf("start = %v, want 0.1", seg.Start)
	}
}

func TestSegmentsScanValue(t *testing.T) {
	in := Segments{{Start: 1.5, Text: "x"}}
	v, err := in.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}

	var out Segments
	if err := out.Scan([]byte(v.(string))); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(out) != 1 || out[0] != in[0] {
		t.Fatalf("Scan() = %+v", out)
	}

	if v, _ := Segments(nil).Value(); v != nil {
		t.Fatalf("nil segments should store NULL, got %v", v)
	}
	if err := out.Scan(nil); err != nil || out != nil {
		t.Fatalf("Scan(nil) = %v, %v", out, err)
	}
}

func TestVideoPatchColumns(t *testing.T) {
	if !(VideoPatch{}).IsEmpty() {
		t.Fatal("zero patch should be empty")
	}

	now := time.Now()
	patch := VideoPatch{
		Status:       Ptr(VideoStatusCompleted),
		Summary:      &Summary{Overview: "o"},
		AttemptCount: Ptr(2),
		CompletedAt:  &now,
	}
	cols := patch.Columns()
	if len(cols) != 4 {
		t.Fatalf("columns = %v", cols)
	}
	if cols["status"] != "completed" {
		t.Fatalf("status column = %v", cols["status"])
	}
	if _, ok := cols["transcript_segments"]; ok {
		t.Fatal("unset segments must not be written")
	}

	var v Video
	patch.Apply(&v)
	if v.Status != VideoStatusCompleted || v.AttemptCount != 2 || v.Summary.Overview != "o" {
		t.Fatalf("Apply() = %+v", v)
	}
}

func TestVideoStatus(t *testing.T) {
	if !VideoStatusQueued.Valid() || VideoStatus("done").Valid() {
		t.Fatal("unexpected Valid() result")
	}
	if VideoStatusProcessing.IsTerminal() || !VideoStatusFailed.IsTerminal() {
		t.Fatal("unexpected IsTerminal() result")
	}
}
