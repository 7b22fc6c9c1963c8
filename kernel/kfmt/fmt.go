package kfmt

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

var nullValue = []byte("(null)")

var (
	// earlyPrintBuffer stores Printf output emitted before the console
	// sinks are initialized.
	earlyPrintBuffer ringBuffer

	// outputSink is the Writer where Printf sends its output. If set to
	// nil, the output is redirected to the earlyPrintBuffer.
	outputSink Writer
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the earlyPrintBuffer to it.
func SetOutputSink(w Writer) {
	outputSink = w
	if w != nil {
		earlyPrintBuffer.DrainTo(w)
	}
}

// GetOutputSink returns the Writer currently registered via SetOutputSink.
func GetOutputSink() Writer {
	return outputSink
}

// Printf formats according to the format specifier and writes the result to
// the currently registered output sink. If no sink is registered yet, the
// output is captured by a ring buffer and replayed once a sink is set. It
// returns the number of bytes written.
//
// Similar to fmt.Printf, this implementation supports a subset of the
// standard formatting verbs:
//
//	%s  string or byte slice; a nil argument prints as "(null)"
//	%c  single character
//	%d  signed base-10 integer
//	%u  unsigned base-10 integer
//	%x  unsigned base-16 integer, lower-case digits
//	%X  unsigned base-16 integer, upper-case digits
//	%p  pointer value, base-16 with a "0x" prefix
//	%%  literal percent sign
//
// Width and precision specifiers are accepted and ignored; the digit run
// following '%' is skipped so that common forms like %08x remain in sync
// with their argument list. An unknown verb is emitted verbatim as '%'
// followed by the verb character.
func Printf(format string, args ...interface{}) int {
	return Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified Writer. A nil Writer targets the early print buffer.
func Fprintf(w Writer, format string, args ...interface{}) int {
	var (
		written      int
		nextArgIndex int
		fmtLen       = len(format)
	)

	if w == nil {
		w = &earlyPrintBuffer
	}

	for index := 0; index < fmtLen; index++ {
		ch := format[index]
		if ch != '%' {
			w.PutChar(ch)
			written++
			continue
		}

		// Skip any width digits following the '%' so forms like %08x
		// do not desynchronize the verb scan.
		index++
		for index < fmtLen && format[index] >= '0' && format[index] <= '9' {
			index++
		}

		if index == fmtLen {
			break
		}

		verb := format[index]
		if verb == '%' {
			w.PutChar('%')
			written++
			continue
		}

		var arg interface{}
		if nextArgIndex < len(args) {
			arg = args[nextArgIndex]
			nextArgIndex++
		}

		switch verb {
		case 's':
			written += fmtString(w, arg)
		case 'c':
			written += fmtChar(w, arg)
		case 'd':
			written += fmtInt(w, arg, 10, false)
		case 'u', 'x', 'X':
			base := uint64(10)
			if verb != 'u' {
				base = 16
			}
			written += fmtUint(w, arg, base, verb == 'X')
		case 'p':
			w.PutChar('0')
			w.PutChar('x')
			written += 2 + fmtUint(w, arg, 16, false)
		default:
			// Unknown format specifier; emit it verbatim.
			w.PutChar('%')
			w.PutChar(verb)
			written += 2
		}
	}

	return written
}

// Sprintf formats according to the format specifier, writes the result into
// buf and null-terminates it. The terminating zero byte is not included in
// the returned count. Output that does not fit in buf is truncated; the
// caller owns the buffer and its size.
func Sprintf(buf []byte, format string, args ...interface{}) int {
	if len(buf) == 0 {
		return 0
	}

	w := BufferWriter{Buf: buf[:len(buf)-1]}
	Fprintf(&w, format, args...)
	buf[w.pos] = 0

	return w.pos
}

// fmtString writes a string or byte-slice value to w.
func fmtString(w Writer, v interface{}) int {
	switch val := v.(type) {
	case string:
		for i := 0; i < len(val); i++ {
			w.PutChar(val[i])
		}
		return len(val)
	case []byte:
		for i := 0; i < len(val); i++ {
			w.PutChar(val[i])
		}
		return len(val)
	default:
		return putBytes(w, nullValue)
	}
}

// fmtChar writes a single character value to w.
func fmtChar(w Writer, v interface{}) int {
	switch val := v.(type) {
	case byte:
		w.PutChar(val)
	case rune:
		w.PutChar(byte(val))
	case int:
		w.PutChar(byte(val))
	default:
		return 0
	}
	return 1
}

// fmtInt writes a signed integer value to w in the requested base.
func fmtInt(w Writer, v interface{}, base uint64, upper bool) int {
	var sval int64

	switch val := v.(type) {
	case int:
		sval = int64(val)
	case int8:
		sval = int64(val)
	case int16:
		sval = int64(val)
	case int32:
		sval = int64(val)
	case int64:
		sval = val
	default:
		// Unsigned arguments are still printable via %d.
		return fmtUint(w, v, base, upper)
	}

	written := 0
	if sval < 0 {
		w.PutChar('-')
		written++
		sval = -sval
	}

	return written + emitUint(w, uint64(sval), base, upper)
}

// fmtUint writes an unsigned integer value to w in the requested base.
func fmtUint(w Writer, v interface{}, base uint64, upper bool) int {
	var uval uint64

	switch val := v.(type) {
	case uint:
		uval = uint64(val)
	case uint8:
		uval = uint64(val)
	case uint16:
		uval = uint64(val)
	case uint32:
		uval = uint64(val)
	case uint64:
		uval = val
	case uintptr:
		uval = uint64(val)
	case int:
		uval = uint64(uint32(val))
	case int32:
		uval = uint64(uint32(val))
	case int64:
		uval = uint64(val)
	default:
		return 0
	}

	return emitUint(w, uval, base, upper)
}

// emitUint converts v to its textual representation using a stack buffer and
// writes it out one byte at a time.
func emitUint(w Writer, v uint64, base uint64, upper bool) int {
	digits := "0123456789abcdef"
	if upper {
		digits = "0123456789ABCDEF"
	}

	var buf [maxBufSize]byte
	pos := maxBufSize

	for {
		pos--
		buf[pos] = digits[v%base]
		v /= base
		if v == 0 {
			break
		}
	}

	return putBytes(w, buf[pos:])
}

func putBytes(w Writer, p []byte) int {
	for _, c := range p {
		w.PutChar(c)
	}
	return len(p)
}
