package console

import "testing"

// testVga returns a console whose frame buffer is backed by plain memory so
// tests can run without the real screen buffer.
func testVga() *Vga {
	cons := &Vga{
		width:  80,
		height: 25,
		attr:   LightGrey,
		fb:     make([]uint16, 80*25),
	}
	cons.Clear()
	return cons
}

func TestVgaPutChar(t *testing.T) {
	cons := testVga()

	cons.PutChar('H')
	cons.PutChar('i')

	if exp, got := cons.cell('H'), cons.fb[0]; got != exp {
		t.Errorf("expected cell 0 to contain 0x%x; got 0x%x", exp, got)
	}
	if exp, got := cons.cell('i'), cons.fb[1]; got != exp {
		t.Errorf("expected cell 1 to contain 0x%x; got 0x%x", exp, got)
	}
	if cons.curX != 2 || cons.curY != 0 {
		t.Errorf("expected cursor at (2, 0); got (%d, %d)", cons.curX, cons.curY)
	}
}

func TestVgaNewline(t *testing.T) {
	cons := testVga()

	cons.PutChar('a')
	cons.PutChar('\n')
	cons.PutChar('b')

	if exp, got := cons.cell('b'), cons.fb[cons.width]; got != exp {
		t.Errorf("expected first cell of row 1 to contain 0x%x; got 0x%x", exp, got)
	}
	if cons.curX != 1 || cons.curY != 1 {
		t.Errorf("expected cursor at (1, 1); got (%d, %d)", cons.curX, cons.curY)
	}
}

func TestVgaLineWrap(t *testing.T) {
	cons := testVga()

	for i := uint16(0); i < cons.width; i++ {
		cons.PutChar('x')
	}

	if cons.curX != 0 || cons.curY != 1 {
		t.Fatalf("expected cursor to wrap to (0, 1); got (%d, %d)", cons.curX, cons.curY)
	}
}

func TestVgaScroll(t *testing.T) {
	cons := testVga()

	for row := uint16(0); row < cons.height; row++ {
		cons.PutChar(byte('A' + row))
		cons.PutChar('\n')
	}

	// Writing 25 newline-terminated rows scrolls the console once.
	if exp, got := cons.cell('B'), cons.fb[0]; got != exp {
		t.Errorf("expected row 0 to start with 0x%x after scrolling; got 0x%x", exp, got)
	}

	lastRowStart := (cons.height - 1) * cons.width
	if exp, got := cons.cell(clearChar), cons.fb[lastRowStart]; got != exp {
		t.Errorf("expected last row to be cleared; got 0x%x", got)
	}

	if cons.curY != cons.height-1 {
		t.Errorf("expected cursor to stay on the last row; got row %d", cons.curY)
	}
}
