package kernel

import (
	"testing"

	"github.com/cbrewer/trident/internal/fs"
)

func TestDirectoryHandle_ReadReturnsTrimmedNameLength(tt *testing.T) {
	tt.Parallel()

	img := buildImage(tt, []testDentry{
		{name: ".", typ: fs.TypeDirectory},
		{name: "rtc", typ: fs.TypeRTC},
	}, nil)

	f, err := fs.New(img)
	if err != nil {
		tt.Fatalf("fs.New: %v", err)
	}

	h := &directoryHandle{image: f}
	if err := h.Open(-1); err != nil {
		tt.Fatalf("Open: %v", err)
	}

	buf := make([]byte, 32)

	n := h.Read(buf)
	if n != 1 || string(buf[:n]) != "." {
		tt.Errorf("first Read = %d bytes %q, want 1 byte %q", n, buf[:n], ".")
	}

	n = h.Read(buf)
	if n != 3 || string(buf[:n]) != "rtc" {
		tt.Errorf("second Read = %d bytes %q, want 3 bytes %q", n, buf[:n], "rtc")
	}

	n = h.Read(buf)
	if n != 0 {
		tt.Errorf("Read past last dentry = %d, want 0", n)
	}
}
