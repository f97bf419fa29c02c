package memory

import (
	"bytes"
	"strings"
	"testing"
)

func TestDumpGraphTerminatesOnCycle(t *testing.T) {
	rt := NewRuntime()

	a := rt.NewDynamicRC(1)
	b := rt.NewDynamicRC(1)
	a.MarkAsCyclicType()
	b.MarkAsCyclicType()
	a.SetObject(0, b)
	b.SetObject(0, a)

	var buf bytes.Buffer
	DumpGraph(&buf, a.Obj())

	out := buf.String()
	if strings.Count(out, "ref_count") != 2 {
		t.Errorf("expected one line per object, got:\n%s", out)
	}

	a.Drop()
	b.Drop()
	rt.Collect()
	if rt.LiveObjects() != 0 {
		t.Errorf("expected teardown to zero, %d live", rt.LiveObjects())
	}
}
