package fs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// buildImage assembles a minimal filesystem image from the given dentries, inodes, and data
// blocks, following the on-disk layout fs.go decodes: boot block, then one block per inode, then
// one block per data block.
func buildImage(tt *testing.T, entries []Dentry, inodes []Inode, dataBlocks [][]byte) []byte {
	tt.Helper()

	buf := make([]byte, BlockSize*(1+len(inodes)+len(dataBlocks)))

	var boot bytes.Buffer

	header := struct {
		NumDentries   uint32
		NumInodes     uint32
		NumDataBlocks uint32
		_             [52]byte
	}{
		NumDentries:   uint32(len(entries)),
		NumInodes:     uint32(len(inodes)),
		NumDataBlocks: uint32(len(dataBlocks)),
	}

	if err := binary.Write(&boot, binary.LittleEndian, header); err != nil {
		tt.Fatalf("writing boot header: %v", err)
	}

	for _, d := range entries {
		raw := onDiskDentry{Name: d.Name, Type: uint32(d.Type), InodeIdx: d.InodeIdx}
		if err := binary.Write(&boot, binary.LittleEndian, raw); err != nil {
			tt.Fatalf("writing dentry: %v", err)
		}
	}

	copy(buf[:BlockSize], boot.Bytes())

	for i, in := range inodes {
		var ib bytes.Buffer
		if err := binary.Write(&ib, binary.LittleEndian, in); err != nil {
			tt.Fatalf("writing inode %d: %v", i, err)
		}

		copy(buf[BlockSize*(1+i):], ib.Bytes())
	}

	for i, d := range dataBlocks {
		off := BlockSize * (1 + len(inodes) + i)
		copy(buf[off:], d)
	}

	return buf
}

func name(s string) [nameLen]byte {
	var n [nameLen]byte
	copy(n[:], s)

	return n
}

func TestNew(tt *testing.T) {
	tt.Parallel()

	img := buildImage(tt,
		[]Dentry{{Name: name("."), Type: TypeDirectory}},
		nil, nil)

	f, err := New(img)
	if err != nil {
		tt.Fatalf("New: %v", err)
	}

	if f.NumDentries() != 1 {
		tt.Errorf("NumDentries = %d, want 1", f.NumDentries())
	}
}

func TestNew_ShortImage(tt *testing.T) {
	tt.Parallel()

	if _, err := New(make([]byte, 10)); !errors.Is(err, ErrShortImage) {
		tt.Errorf("New: err = %v, want %v", err, ErrShortImage)
	}
}

func TestFindDentryByName(tt *testing.T) {
	tt.Parallel()

	img := buildImage(tt, []Dentry{
		{Name: name("."), Type: TypeDirectory},
		{Name: name("rtc"), Type: TypeRTC},
		{Name: name("shell"), Type: TypeRegular, InodeIdx: 0},
	}, []Inode{{Length: 0}}, nil)

	f, err := New(img)
	if err != nil {
		tt.Fatalf("New: %v", err)
	}

	if d, err := f.FindDentryByName("rtc"); err != nil || d.Type != TypeRTC {
		tt.Errorf("FindDentryByName(rtc) = %+v, %v", d, err)
	}

	if _, err := f.FindDentryByName("nonesuch"); !errors.Is(err, ErrNotFound) {
		tt.Errorf("FindDentryByName(nonesuch): err = %v, want %v", err, ErrNotFound)
	}
}

func TestFindDentryByIndex_OutOfRange(tt *testing.T) {
	tt.Parallel()

	img := buildImage(tt, []Dentry{{Name: name("."), Type: TypeDirectory}}, nil, nil)

	f, err := New(img)
	if err != nil {
		tt.Fatalf("New: %v", err)
	}

	// The boundary index (equal to the dentry count) is out of range, not the last valid one.
	if _, err := f.FindDentryByIndex(1); !errors.Is(err, ErrOutOfRange) {
		tt.Errorf("FindDentryByIndex(1): err = %v, want %v", err, ErrOutOfRange)
	}

	if _, err := f.FindDentryByIndex(0); err != nil {
		tt.Errorf("FindDentryByIndex(0): unexpected err %v", err)
	}
}

func TestReadBytes(tt *testing.T) {
	tt.Parallel()

	content := bytes.Repeat([]byte("hello, trident! "), 10) // 160 bytes, spans one data block.

	var blocks [][]byte

	var dataBlock [BlockSize]byte
	copy(dataBlock[:], content)
	blocks = append(blocks, dataBlock[:])

	inode := Inode{Length: uint32(len(content))}
	inode.Blocks[0] = 0

	img := buildImage(tt,
		[]Dentry{{Name: name("greeting"), Type: TypeRegular, InodeIdx: 0}},
		[]Inode{inode},
		blocks)

	f, err := New(img)
	if err != nil {
		tt.Fatalf("New: %v", err)
	}

	buf := make([]byte, len(content))

	n, err := f.ReadBytes(0, 0, buf)
	if err != nil {
		tt.Fatalf("ReadBytes: %v", err)
	}

	if n != len(content) || !bytes.Equal(buf[:n], content) {
		tt.Errorf("ReadBytes = %q, want %q", buf[:n], content)
	}

	// A second read starting past EOF returns 0 bytes, no error.
	n, err = f.ReadBytes(0, len(content), buf)
	if err != nil || n != 0 {
		tt.Errorf("ReadBytes(past EOF) = %d, %v, want 0, nil", n, err)
	}
}

func TestIsExecutable(tt *testing.T) {
	tt.Parallel()

	elf := append([]byte{0x7f, 'E', 'L', 'F'}, bytes.Repeat([]byte{0}, 28)...)

	var elfBlock, textBlock [BlockSize]byte
	copy(elfBlock[:], elf)
	copy(textBlock[:], "not an executable")

	inodes := []Inode{{Length: uint32(len(elf))}, {Length: 18}}
	inodes[0].Blocks[0] = 0
	inodes[1].Blocks[0] = 1

	img := buildImage(tt,
		[]Dentry{
			{Name: name("prog"), Type: TypeRegular, InodeIdx: 0},
			{Name: name("readme"), Type: TypeRegular, InodeIdx: 1},
		},
		inodes,
		[][]byte{elfBlock[:], textBlock[:]})

	f, err := New(img)
	if err != nil {
		tt.Fatalf("New: %v", err)
	}

	if !f.IsExecutable("prog") {
		tt.Error("IsExecutable(prog) = false, want true")
	}

	if f.IsExecutable("readme") {
		tt.Error("IsExecutable(readme) = true, want false")
	}

	if f.IsExecutable("nonesuch") {
		tt.Error("IsExecutable(nonesuch) = true, want false")
	}
}

func TestLoadImage(tt *testing.T) {
	tt.Parallel()

	body := make([]byte, 64)
	copy(body, []byte{0x7f, 'E', 'L', 'F'})
	binary.LittleEndian.PutUint32(body[entryOffset:], 0x08048000)

	var block [BlockSize]byte
	copy(block[:], body)

	inode := Inode{Length: uint32(len(body))}
	inode.Blocks[0] = 0

	img := buildImage(tt,
		[]Dentry{{Name: name("prog"), Type: TypeRegular, InodeIdx: 0}},
		[]Inode{inode},
		[][]byte{block[:]})

	f, err := New(img)
	if err != nil {
		tt.Fatalf("New: %v", err)
	}

	dest := make([]byte, len(body))

	entry, err := f.LoadImage("prog", dest)
	if err != nil {
		tt.Fatalf("LoadImage: %v", err)
	}

	if entry != 0x08048000 {
		tt.Errorf("entry = %#x, want %#x", entry, 0x08048000)
	}

	if !bytes.Equal(dest, body) {
		tt.Errorf("dest = %q, want %q", dest, body)
	}

	if _, err := f.LoadImage("prog", make([]byte, 4)); err == nil {
		tt.Error("LoadImage into undersized dest: want error, got nil")
	}
}
