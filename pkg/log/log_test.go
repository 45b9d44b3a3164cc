package log

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestErrorWithTraceIDPrefersRequestID(t *testing.T) {
	if got := ErrorWithTraceID(Fields{"request_id": "01HZX"}, "boom"); got != "01HZX" {
		t.Errorf("trace id = %q", got)
	}

	for _, fields := range []Fields{nil, {"request_id": "unknown"}, {"request_id": 42}} {
		got := ErrorWithTraceID(fields, "boom")
		if len(got) != 36 {
			t.Errorf("fields %v: trace id %q is not a uuid", fields, got)
		}
	}
}

func TestJSONFormatter(t *testing.T) {
	l := logrus.New()
	var buf bytes.Buffer
	l.SetOutput(&buf)
	l.SetReportCaller(true)
	l.SetFormatter(newFormatter("JSON"))

	l.WithField("camera_id", "cam-1").Info("belt calibrated")

	out := buf.String()
	for _, want := range []string{`"camera_id":"cam-1"`, `"msg":"belt calibrated"`, `"file":"log_test.go:`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestFileWriterPath(t *testing.T) {
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

	if got := fileWriter("", day).Filename; got != filepath.Join("storage", "logs", "app-2026-05-04.log") {
		t.Errorf("default path = %q", got)
	}
	if got := fileWriter("/var/log/belt", day).Filename; got != "/var/log/belt/app-2026-05-04.log" {
		t.Errorf("custom path = %q", got)
	}
}
