// Package console provides the text mode console the kernel log is written
// to.
package console

// TextConsole is an EGA-compatible text console that renders a byte stream
// into a character framebuffer. Each cell occupies two bytes: the ASCII code
// and an attribute byte holding the foreground (low nibble) and background
// (high nibble) colors.
//
// The console interprets \n, \r, \b and \t and scrolls up once the cursor
// moves past the last row.
type TextConsole struct {
	width, height uint32
	fb            []uint16

	attr      uint16
	clearChar uint16
	tabWidth  uint32

	// 0-based cursor position.
	cursorX, cursorY uint32
}

// NewTextConsole returns a console of columns x rows cells drawing into fb,
// which must hold at least columns*rows entries. The console starts with
// light gray text on a black background.
func NewTextConsole(columns, rows uint32, fb []uint16) *TextConsole {
	return &TextConsole{
		width:     columns,
		height:    rows,
		fb:        fb[:columns*rows],
		attr:      uint16(0<<4|7) << 8,
		clearChar: uint16(' '),
		tabWidth:  4,
	}
}

// SetColors changes the colors used for subsequent output.
func (cons *TextConsole) SetColors(fg, bg uint8) {
	cons.attr = (uint16(bg&0xf)<<4 | uint16(fg&0xf)) << 8
}

// Clear blanks the console and moves the cursor to the top-left corner.
func (cons *TextConsole) Clear() {
	for i := range cons.fb {
		cons.fb[i] = cons.attr | cons.clearChar
	}
	cons.cursorX, cons.cursorY = 0, 0
}

// Cursor returns the 0-based cursor position.
func (cons *TextConsole) Cursor() (uint32, uint32) {
	return cons.cursorX, cons.cursorY
}

// Write implements io.Writer.
func (cons *TextConsole) Write(data []byte) (int, error) {
	for _, ch := range data {
		switch ch {
		case '\r':
			cons.cursorX = 0
		case '\n':
			cons.cursorX = 0
			cons.lf()
		case '\b':
			if cons.cursorX > 0 {
				cons.cursorX--
				cons.fb[cons.cursorY*cons.width+cons.cursorX] = cons.attr | cons.clearChar
			}
		case '\t':
			for i := uint32(0); i < cons.tabWidth; i++ {
				cons.putc(' ')
			}
		default:
			cons.putc(ch)
		}
	}

	return len(data), nil
}

func (cons *TextConsole) putc(ch byte) {
	cons.fb[cons.cursorY*cons.width+cons.cursorX] = cons.attr | uint16(ch)
	if cons.cursorX++; cons.cursorX == cons.width {
		cons.cursorX = 0
		cons.lf()
	}
}

// lf moves the cursor to the next row, scrolling the contents up if the
// cursor is already on the last row.
func (cons *TextConsole) lf() {
	if cons.cursorY+1 < cons.height {
		cons.cursorY++
		return
	}

	copy(cons.fb, cons.fb[cons.width:])
	last := cons.fb[(cons.height-1)*cons.width:]
	for i := range last {
		last[i] = cons.attr | cons.clearChar
	}
}
