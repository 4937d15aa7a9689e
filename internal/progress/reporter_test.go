package progress

import (
	"bytes"
	"strings"
	"testing"
)

func TestFuncDrivesCIReporter(t *testing.T) {
	var buf bytes.Buffer
	fn := Func(&CIReporter{Out: &buf})

	fn(0, 2, "a.pdf")
	fn(1, 2, "b.pdf")
	fn(2, 2, "")

	want := "Embedding 2 source documents\n[1/2] a.pdf\n[2/2] b.pdf\nEmbedding complete\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestFuncEmptyFolder(t *testing.T) {
	var buf bytes.Buffer
	fn := Func(&CIReporter{Out: &buf})
	fn(0, 0, "")

	if !strings.HasPrefix(buf.String(), "Embedding 0 source documents") || !strings.HasSuffix(buf.String(), "Embedding complete\n") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestNewReporterInCI(t *testing.T) {
	t.Setenv("CI", "true")
	if _, ok := NewReporter("x").(*CIReporter); !ok {
		t.Error("expected CIReporter when CI is set")
	}
}
