// Package console implements the VGA text-mode console used as the kernel's
// primary diagnostic sink.
package console

import "unsafe"

// Attribute describes a foreground/background color pair for a text cell.
type Attribute uint8

// Standard VGA text-mode colors.
const (
	Black Attribute = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGrey
	DarkGrey
	LightBlue
	LightGreen
	LightCyan
	LightRed
	LightMagenta
	LightBrown
	White
)

const (
	fbPhysAddr = uintptr(0xB8000)
	clearChar  = byte(' ')
)

// Vga implements an EGA-compatible 80x25 text console backed by the
// memory-mapped frame buffer at physical address 0xB8000. The console depends
// on the identity mapping of low memory that the virtual memory manager
// establishes at boot.
type Vga struct {
	width  uint16
	height uint16

	curX, curY uint16
	attr       Attribute

	fb []uint16
}

// Init sets up the console and clears the screen.
func (cons *Vga) Init() {
	cons.width = 80
	cons.height = 25
	cons.attr = LightGrey

	// Set up our frame buffer object by overlaying a slice on the
	// physical address of the screen buffer.
	if cons.fb == nil {
		cons.fb = unsafe.Slice(
			(*uint16)(unsafe.Pointer(fbPhysAddr)),
			int(cons.width)*int(cons.height),
		)
	}

	cons.Clear()
}

// Clear clears the screen and moves the cursor to the top-left corner.
func (cons *Vga) Clear() {
	clr := cons.cell(clearChar)
	for i := 0; i < len(cons.fb); i++ {
		cons.fb[i] = clr
	}
	cons.curX, cons.curY = 0, 0
}

// Dimensions returns the console width and height in characters.
func (cons *Vga) Dimensions() (uint16, uint16) {
	return cons.width, cons.height
}

// SetAttr sets the attribute used for subsequently written characters.
func (cons *Vga) SetAttr(attr Attribute) {
	cons.attr = attr
}

// PutChar writes a single character at the current cursor position and
// advances the cursor, scrolling the console up one line when the cursor
// moves past the last row.
func (cons *Vga) PutChar(c byte) {
	switch c {
	case '\r':
		cons.curX = 0
		return
	case '\n':
		cons.curX = 0
		cons.curY++
	default:
		cons.fb[cons.curY*cons.width+cons.curX] = cons.cell(c)
		cons.curX++
		if cons.curX == cons.width {
			cons.curX = 0
			cons.curY++
		}
	}

	if cons.curY == cons.height {
		cons.scrollUp()
		cons.curY = cons.height - 1
	}
}

// scrollUp shifts the console contents up one line and clears the last row.
func (cons *Vga) scrollUp() {
	copy(cons.fb, cons.fb[cons.width:])

	clr := cons.cell(clearChar)
	lastRow := cons.fb[(cons.height-1)*cons.width:]
	for i := 0; i < len(lastRow); i++ {
		lastRow[i] = clr
	}
}

func (cons *Vga) cell(c byte) uint16 {
	return uint16(cons.attr)<<8 | uint16(c)
}
