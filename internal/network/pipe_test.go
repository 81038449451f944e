package network

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// collectSink records every submitted scalar array and counts pre-decode
// rejections reported by the transport.
type collectSink struct {
	mu       sync.Mutex
	frames   [][]float64
	rejected int
	reject   bool
}

func (s *collectSink) RejectRaw() {
	s.mu.Lock()
	s.rejected++
	s.mu.Unlock()
}

func (s *collectSink) rejects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected
}

func (s *collectSink) SubmitRaw(values []float64, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return context.Canceled
	}
	cp := make([]float64, len(values))
	copy(cp, values)
	s.frames = append(s.frames, cp)
	return nil
}

func (s *collectSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func TestPipeReaderParsesLines(t *testing.T) {
	input := strings.Join([]string{
		"# fixture header",
		"",
		"1.5 2.5 3.5",
		"not a number",
		"4 5 6 7",
	}, "\n")

	sink := &collectSink{}
	p := NewPipeReader(sink)
	if err := p.Run(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sink.count() != 2 {
		t.Fatalf("submitted %d frames, want 2 (comment, blank, bad line skipped)", sink.count())
	}
	if got := sink.frames[0]; len(got) != 3 || got[0] != 1.5 || got[2] != 3.5 {
		t.Errorf("first frame = %v", got)
	}
	if got := sink.frames[1]; len(got) != 4 || got[3] != 7 {
		t.Errorf("second frame = %v", got)
	}
	if sink.rejects() != 1 {
		t.Errorf("parse rejections = %d, want 1", sink.rejects())
	}
}

func TestPipeReaderStopsOnCancelWhileBlocked(t *testing.T) {
	// A reader with no data pending, like an idle stdin.
	pr, pw := io.Pipe()
	defer pw.Close()

	sink := &collectSink{}
	p := NewPipeReader(sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, pr) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestPipeReaderKeepsGoingAfterSinkRejection(t *testing.T) {
	sink := &collectSink{reject: true}
	p := NewPipeReader(sink)
	if err := p.Run(context.Background(), strings.NewReader("1 2 3\n4 5 6\n")); err != nil {
		t.Fatalf("sink rejection must not kill the stream: %v", err)
	}
}

func TestPipeReaderHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeReader(&collectSink{})
	err := p.Run(ctx, strings.NewReader("1 2 3\n"))
	if err == nil {
		t.Error("cancelled context should stop the reader with an error")
	}
}
