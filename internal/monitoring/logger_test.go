package monitoring

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("cycle %d", 3)
	if got != "cycle 3" {
		t.Errorf("logged %q, want %q", got, "cycle 3")
	}

	// nil installs a no-op
	SetLogger(nil)
	Logf("dropped")
	if got != "cycle 3" {
		t.Errorf("no-op logger wrote %q", got)
	}
}

func TestTeeStandardLog(t *testing.T) {
	defer TeeStandardLog(nil)

	var buf bytes.Buffer
	TeeStandardLog(&buf)
	log.Printf("hello %s", "tee")

	if !strings.Contains(buf.String(), "hello tee") {
		t.Errorf("tee output = %q, want it to contain %q", buf.String(), "hello tee")
	}
}
