package monitoring

import (
	"bytes"
	"strings"
	"testing"
)

func TestStreamsIndependent(t *testing.T) {
	var ops, diag bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag})
	defer SetLogWriters(LogWriters{})

	Opsf("dropped frame: %d floats", 90)
	Diagf("stats line")
	Tracef("per-frame noise")

	if !strings.Contains(ops.String(), "dropped frame: 90 floats") {
		t.Errorf("ops stream missing message: %q", ops.String())
	}
	if !strings.Contains(diag.String(), "stats line") {
		t.Errorf("diag stream missing message: %q", diag.String())
	}
	if strings.Contains(ops.String(), "per-frame noise") {
		t.Error("trace message leaked into ops stream")
	}
}

func TestNilWritersMute(t *testing.T) {
	SetLogWriters(LogWriters{})
	// Must not panic with all streams disabled.
	Opsf("muted")
	Diagf("muted")
	Tracef("muted")
}
