package kfmt

import (
	"testing"
)

func TestFprintf(t *testing.T) {
	// mute vet warnings about malformed printf formatting strings
	fprintfn := Fprintf

	specs := []struct {
		descr     string
		fn        func(w Writer) int
		expOutput string
	}{
		{
			"no args",
			func(w Writer) int { return fprintfn(w, "no args") },
			"no args",
		},
		{
			"string arg",
			func(w Writer) int { return fprintfn(w, "%s arg", "STRING") },
			"STRING arg",
		},
		{
			"byte slice arg",
			func(w Writer) int { return fprintfn(w, "%s arg", []byte("BYTES")) },
			"BYTES arg",
		},
		{
			"nil string arg",
			func(w Writer) int { return fprintfn(w, "%s", nil) },
			"(null)",
		},
		{
			"char arg",
			func(w Writer) int { return fprintfn(w, "%c%c", byte('o'), 'k') },
			"ok",
		},
		{
			"signed decimal",
			func(w Writer) int { return fprintfn(w, "%d", -1234) },
			"-1234",
		},
		{
			"unsigned decimal",
			func(w Writer) int { return fprintfn(w, "%u", uint32(4294967295)) },
			"4294967295",
		},
		{
			"hex lower",
			func(w Writer) int { return fprintfn(w, "%x", uint32(0xdeadbeef)) },
			"deadbeef",
		},
		{
			"hex upper",
			func(w Writer) int { return fprintfn(w, "%X", uint32(0xbeef)) },
			"BEEF",
		},
		{
			"pointer",
			func(w Writer) int { return fprintfn(w, "%p", uintptr(0xb8000)) },
			"0xb8000",
		},
		{
			"literal percent",
			func(w Writer) int { return fprintfn(w, "100%%") },
			"100%",
		},
		{
			"width digits are skipped",
			func(w Writer) int { return fprintfn(w, "%08x", uint32(0x42)) },
			"42",
		},
		{
			"unknown verb is emitted verbatim",
			func(w Writer) int { return fprintfn(w, "%q", "ignored") },
			"%q",
		},
		{
			"zero value",
			func(w Writer) int { return fprintfn(w, "%d", 0) },
			"0",
		},
	}

	for _, spec := range specs {
		t.Run(spec.descr, func(t *testing.T) {
			var buf [128]byte
			w := BufferWriter{Buf: buf[:]}

			if got := spec.fn(&w); got != len(spec.expOutput) {
				t.Errorf("expected written count %d; got %d", len(spec.expOutput), got)
			}

			if got := string(buf[:w.Pos()]); got != spec.expOutput {
				t.Errorf("expected output %q; got %q", spec.expOutput, got)
			}
		})
	}
}

func TestSprintf(t *testing.T) {
	var buf [32]byte

	n := Sprintf(buf[:], "value: %d", 42)
	if exp := "value: 42"; string(buf[:n]) != exp {
		t.Fatalf("expected output %q; got %q", exp, string(buf[:n]))
	}

	if buf[n] != 0 {
		t.Fatalf("expected output to be null-terminated; got 0x%x", buf[n])
	}
}

func TestSprintfTruncates(t *testing.T) {
	var buf [4]byte

	n := Sprintf(buf[:], "overflowing")
	if n != len(buf)-1 {
		t.Fatalf("expected %d bytes to be written; got %d", len(buf)-1, n)
	}

	if buf[n] != 0 {
		t.Fatalf("expected output to be null-terminated; got 0x%x", buf[n])
	}
}

func TestPrintfBuffersEarlyOutput(t *testing.T) {
	defer func() { outputSink = nil }()
	outputSink = nil

	printfn := Printf
	printfn("early: %d\n", 1)

	var buf [64]byte
	w := BufferWriter{Buf: buf[:]}
	SetOutputSink(&w)

	if exp, got := "early: 1\n", string(buf[:w.Pos()]); got != exp {
		t.Fatalf("expected buffered output %q to be flushed; got %q", exp, got)
	}

	printfn("late: %d\n", 2)
	if exp, got := "early: 1\nlate: 2\n", string(buf[:w.Pos()]); got != exp {
		t.Fatalf("expected output %q; got %q", exp, got)
	}
}

func TestRingBufferWrapAround(t *testing.T) {
	var rb ringBuffer

	for i := 0; i < ringBufferSize+16; i++ {
		rb.PutChar(byte('a' + i%26))
	}

	var buf [2 * ringBufferSize]byte
	w := BufferWriter{Buf: buf[:]}
	rb.DrainTo(&w)

	if got := w.Pos(); got != ringBufferSize {
		t.Fatalf("expected a full buffer to drain %d bytes; got %d", ringBufferSize, got)
	}

	// The oldest 16 bytes must have been overwritten.
	if exp, got := byte('a'+16%26), buf[0]; got != exp {
		t.Fatalf("expected first drained byte to be %q; got %q", exp, got)
	}

	var w2 BufferWriter
	w2.Buf = buf[:]
	rb.DrainTo(&w2)
	if got := w2.Pos(); got != 0 {
		t.Fatalf("expected a drained buffer to be empty; drained %d bytes", got)
	}
}

func TestTeeWriter(t *testing.T) {
	var bufA, bufB [8]byte
	a := BufferWriter{Buf: bufA[:]}
	b := BufferWriter{Buf: bufB[:]}

	tee := TeeWriter{A: &a, B: &b}
	Fprintf(&tee, "dup")

	if got := string(bufA[:a.Pos()]); got != "dup" {
		t.Errorf("expected sink A to receive %q; got %q", "dup", got)
	}
	if got := string(bufB[:b.Pos()]); got != "dup" {
		t.Errorf("expected sink B to receive %q; got %q", "dup", got)
	}
}
