package console

import "testing"

func TestPutChar_AdvancesAndWraps(tt *testing.T) {
	tt.Parallel()

	c := New(0xb8000)

	c.PutChar('a')

	if cur := c.Cursor(); cur != (Cursor{X: 1, Y: 0}) {
		tt.Fatalf("cursor after 'a' = %+v, want {1 0}", cur)
	}

	for x := 1; x < Width; x++ {
		c.PutChar('x')
	}

	if cur := c.Cursor(); cur != (Cursor{X: 0, Y: 1}) {
		tt.Errorf("cursor after filling row 0 = %+v, want {0 1}", cur)
	}
}

func TestPutChar_Newline(tt *testing.T) {
	tt.Parallel()

	c := New(0)
	c.PutChar('a')
	c.PutChar('\n')

	if cur := c.Cursor(); cur != (Cursor{X: 0, Y: 1}) {
		tt.Errorf("cursor after newline = %+v, want {0 1}", cur)
	}
}

func TestPutChar_ScrollsAtBottom(tt *testing.T) {
	tt.Parallel()

	c := New(0)

	for y := 0; y < Height; y++ {
		c.PutChar('\n')
	}

	if cur := c.Cursor(); cur.Y != Height-1 {
		tt.Errorf("cursor.Y after overflowing = %d, want %d", cur.Y, Height-1)
	}
}

func TestBackspace(tt *testing.T) {
	tt.Parallel()

	c := New(0)
	c.PutChar('a')
	c.PutChar('b')
	c.Backspace()

	snap := c.Snapshot()
	if snap[0][1].Char != ' ' {
		tt.Errorf("cell after backspace = %q, want ' '", snap[0][1].Char)
	}

	if cur := c.Cursor(); cur != (Cursor{X: 1, Y: 0}) {
		tt.Errorf("cursor after backspace = %+v, want {1 0}", cur)
	}
}

func TestBackspace_NoopAtOrigin(tt *testing.T) {
	tt.Parallel()

	c := New(0)
	c.Backspace()

	if cur := c.Cursor(); cur != (Cursor{}) {
		tt.Errorf("cursor after backspace at origin = %+v, want zero value", cur)
	}
}

func TestClear(tt *testing.T) {
	tt.Parallel()

	c := New(0)
	c.PutChar('z')
	c.Clear()

	snap := c.Snapshot()
	if snap[0][0].Char != ' ' {
		tt.Errorf("cell after Clear = %q, want ' '", snap[0][0].Char)
	}

	if cur := c.Cursor(); cur != (Cursor{}) {
		tt.Errorf("cursor after Clear = %+v, want zero value", cur)
	}
}

func TestCopyFrom(tt *testing.T) {
	tt.Parallel()

	src := New(1)
	src.PutChar('q')

	dst := New(2)
	dst.CopyFrom(src)

	if got, want := dst.Snapshot(), src.Snapshot(); got != want {
		tt.Error("CopyFrom did not copy the frame buffer")
	}

	if got, want := dst.Cursor(), src.Cursor(); got != want {
		tt.Errorf("CopyFrom cursor = %+v, want %+v", got, want)
	}
}

func TestHardwareCursorFunc(tt *testing.T) {
	tt.Parallel()

	var idx, data []uint8

	fn := HardwareCursorFunc(CRTCPorts{
		Index: func(v uint8) { idx = append(idx, v) },
		Data:  func(v uint8) { data = append(data, v) },
	})

	fn(5, 2) // pos = 2*80+5 = 165 = 0x00a5

	if len(idx) != 2 || len(data) != 2 {
		tt.Fatalf("got %d index writes, %d data writes, want 2 each", len(idx), len(data))
	}

	if idx[0] != 0x0f || data[0] != 0xa5 {
		tt.Errorf("low byte write = (%#x, %#x), want (0x0f, 0xa5)", idx[0], data[0])
	}

	if idx[1] != 0x0e || data[1] != 0x00 {
		tt.Errorf("high byte write = (%#x, %#x), want (0x0e, 0x00)", idx[1], data[1])
	}
}

func TestSetCursor_InvokesHardwareCallback(tt *testing.T) {
	tt.Parallel()

	c := New(0)

	var got Cursor

	c.SetHardwareCursorFunc(func(x, y int) { got = Cursor{X: x, Y: y} })
	c.SetCursor(Cursor{X: 3, Y: 4})

	if got != (Cursor{X: 3, Y: 4}) {
		tt.Errorf("hardware cursor callback saw %+v, want {3 4}", got)
	}
}
