package memory

import (
	"fmt"
	"io"
)

// DumpGraph writes a one-line-per-object rendition of the subgraph rooted at
// o: address, current reference count and the addresses of non-nil fields.
// Cycle-safe; intended for debugging only, not synchronized with mutators.
func DumpGraph(w io.Writer, o *HeapObject) {
	seen := make(map[*HeapObject]struct{})
	dumpGraph(w, o, seen)
}

func dumpGraph(w io.Writer, o *HeapObject, seen map[*HeapObject]struct{}) {
	if _, done := seen[o]; done {
		return
	}
	seen[o] = struct{}{}

	fmt.Fprintf(w, "%p | ref_count : %d |", o, o.RefCount())
	var children []*HeapObject
	for _, field := range o.fields {
		if field != nil {
			children = append(children, field)
			fmt.Fprintf(w, " %p", field)
		}
	}
	fmt.Fprintln(w)

	for _, child := range children {
		dumpGraph(w, child, seen)
	}
}
