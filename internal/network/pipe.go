package network

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lumen-motion/avatar.track/internal/monitoring"
)

// PipeReader ingests frames from a line-oriented text stream: one frame per
// line, scalars as ASCII floats separated by whitespace. Blank lines and
// lines starting with '#' are skipped, so hand-fed fixture files can carry
// commentary.
type PipeReader struct {
	sink FrameSink
}

// NewPipeReader builds a reader feeding the sink.
func NewPipeReader(sink FrameSink) *PipeReader {
	return &PipeReader{sink: sink}
}

// Run consumes the stream until EOF or context cancellation. Unparseable
// lines are dropped with a diagnostic; the stream keeps going.
//
// Scanning happens on its own goroutine so that a reader blocked with no
// data (an idle stdin) cannot pin Run past cancellation. After cancel the
// scan goroutine exits on the next line, EOF, or read error; one blocked
// forever is abandoned and closing the underlying file releases it.
func (p *PipeReader) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	var lineNo int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return err
		case raw := <-lines:
			lineNo++
			p.handleLine(lineNo, raw)
		}
	}
}

func (p *PipeReader) handleLine(lineNo int, raw string) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	values, err := parseLine(line)
	if err != nil {
		if rej, ok := p.sink.(RawRejecter); ok {
			rej.RejectRaw()
		}
		monitoring.Diagf("pipe line %d: %v", lineNo, err)
		return
	}
	if err := p.sink.SubmitRaw(values, time.Now()); err != nil {
		monitoring.Diagf("pipe line %d rejected: %v", lineNo, err)
	}
}

func parseLine(line string) ([]float64, error) {
	fields := strings.Fields(line)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
