// Package fs implements the read-only filesystem reader: a contiguous image of 4 KiB blocks -- a
// boot block of directory entries, indexed nodes, then data blocks -- parsed with encoding/binary
// the way a flat object-file loader would parse a word stream, generalized here into a
// three-level block structure.
package fs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cbrewer/trident/internal/log"
)

// BlockSize is the fixed size of every block in the image: boot block, inode blocks, data blocks.
const BlockSize = 4096

// Type identifies what kind of file a dentry names.
type Type uint32

const (
	TypeRTC       Type = 0
	TypeDirectory Type = 1
	TypeRegular   Type = 2
)

func (t Type) String() string {
	switch t {
	case TypeRTC:
		return "rtc"
	case TypeDirectory:
		return "directory"
	case TypeRegular:
		return "regular"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// MaxDentries is the number of directory-entry slots a boot block reserves.
const MaxDentries = 63

// MaxBlocksPerInode is the number of data-block indices an inode's block array holds.
const MaxBlocksPerInode = 1023

// nameLen is the fixed width of a dentry's name field; a name may occupy all 32
// bytes with no terminating NUL.
const nameLen = 32

// Dentry is one directory entry: a name, a type, and the index of the inode it names.
type Dentry struct {
	Name     [nameLen]byte
	Type     Type
	InodeIdx uint32
}

// NameString returns the dentry's name, trimmed at the first NUL if one is present.
func (d Dentry) NameString() string {
	if i := bytes.IndexByte(d.Name[:], 0); i >= 0 {
		return string(d.Name[:i])
	}

	return string(d.Name[:])
}

// onDiskDentry is the 64-byte wire layout: 32-byte name, u32 type, u32 inode index, 24
// reserved bytes.
type onDiskDentry struct {
	Name     [nameLen]byte
	Type     uint32
	InodeIdx uint32
	_        [24]byte
}

const dentrySize = 64

// Inode is an indexed node: a byte length and the data-block indices spanning it.
type Inode struct {
	Length uint32
	Blocks [MaxBlocksPerInode]uint32
}

var (
	// ErrNotFound is returned when a name or index does not resolve to a dentry.
	ErrNotFound = errors.New("fs: not found")
	// ErrOutOfRange is returned by FindDentryByIndex for an index ≥ the boot block's dentry
	// count, and by ReadBytes when an inode's block array names a data block ≥ n_data_blocks.
	ErrOutOfRange = errors.New("fs: index out of range")
	// ErrShortImage is returned when the supplied image is smaller than its own header claims.
	ErrShortImage = errors.New("fs: truncated image")
)

// FS is a parsed, read-only filesystem image.
type FS struct {
	image []byte

	numDentries   uint32
	numInodes     uint32
	numDataBlocks uint32
	dentries      [MaxDentries]Dentry

	log *log.Logger
}

// New parses image's boot block. The image itself is retained (not copied) for read_bytes and
// load_image's later block lookups.
func New(image []byte) (*FS, error) {
	if len(image) < BlockSize {
		return nil, fmt.Errorf("%w: image shorter than one block", ErrShortImage)
	}

	f := &FS{image: image, log: log.DefaultLogger()}

	r := bytes.NewReader(image[:BlockSize])

	var header struct {
		NumDentries   uint32
		NumInodes     uint32
		NumDataBlocks uint32
		_             [52]byte
	}

	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("fs: reading boot block: %w", err)
	}

	f.numDentries = header.NumDentries
	f.numInodes = header.NumInodes
	f.numDataBlocks = header.NumDataBlocks

	if f.numDentries > MaxDentries {
		return nil, fmt.Errorf("fs: boot block claims %d dentries, max %d", f.numDentries, MaxDentries)
	}

	need := BlockSize + int(f.numInodes)*BlockSize + int(f.numDataBlocks)*BlockSize
	if len(image) < need {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrShortImage, need, len(image))
	}

	for i := uint32(0); i < f.numDentries; i++ {
		var raw onDiskDentry
		if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
			return nil, fmt.Errorf("fs: reading dentry %d: %w", i, err)
		}

		f.dentries[i] = Dentry{Name: raw.Name, Type: Type(raw.Type), InodeIdx: raw.InodeIdx}
	}

	return f, nil
}

// FindDentryByName linearly scans the boot block's dentries for a byte-equal name, comparing
// min(len(name), 32) bytes.
func (f *FS) FindDentryByName(name string) (Dentry, error) {
	n := len(name)
	if n > nameLen {
		n = nameLen
	}

	for i := uint32(0); i < f.numDentries; i++ {
		d := f.dentries[i]
		if string(d.Name[:n]) == name[:n] && (n == nameLen || d.Name[n] == 0) {
			return d, nil
		}
	}

	return Dentry{}, ErrNotFound
}

// FindDentryByIndex returns the i'th dentry, or ErrOutOfRange if i ≥ the boot block's count.
func (f *FS) FindDentryByIndex(i int) (Dentry, error) {
	if i < 0 || uint32(i) >= f.numDentries {
		return Dentry{}, ErrOutOfRange
	}

	return f.dentries[i], nil
}

// NumDentries returns the boot block's directory-entry count, for the directory fd vtable's
// end-of-directory bookkeeping.
func (f *FS) NumDentries() int { return int(f.numDentries) }

func (f *FS) inode(idx uint32) (Inode, error) {
	if idx >= f.numInodes {
		return Inode{}, ErrOutOfRange
	}

	off := BlockSize * (1 + int(idx))
	r := bytes.NewReader(f.image[off : off+BlockSize])

	var in Inode
	if err := binary.Read(r, binary.LittleEndian, &in); err != nil {
		return Inode{}, fmt.Errorf("fs: reading inode %d: %w", idx, err)
	}

	return in, nil
}

func (f *FS) dataBlock(idx uint32) ([]byte, error) {
	if idx >= f.numDataBlocks {
		return nil, ErrOutOfRange
	}

	off := BlockSize*(1+int(f.numInodes)) + BlockSize*int(idx)

	return f.image[off : off+BlockSize], nil
}

// ReadBytes copies up to len(buf) bytes from inode inodeIdx starting at virtual file offset
// offset, stopping at end of file. It returns the count copied.
func (f *FS) ReadBytes(inodeIdx uint32, offset int, buf []byte) (int, error) {
	in, err := f.inode(inodeIdx)
	if err != nil {
		return 0, err
	}

	copied := 0

	for copied < len(buf) {
		pos := offset + copied
		if uint32(pos) >= in.Length {
			break
		}

		blockNum := pos / BlockSize
		if blockNum >= MaxBlocksPerInode {
			return copied, fmt.Errorf("%w: file longer than %d blocks", ErrOutOfRange, MaxBlocksPerInode)
		}

		data, err := f.dataBlock(in.Blocks[blockNum])
		if err != nil {
			return copied, err
		}

		start := pos % BlockSize

		n := BlockSize - start
		if remaining := int(in.Length) - pos; n > remaining {
			n = remaining
		}

		if n > len(buf)-copied {
			n = len(buf) - copied
		}

		copy(buf[copied:copied+n], data[start:start+n])
		copied += n
	}

	return copied, nil
}

// elfMagic is the four-byte signature load_image and IsExecutable check for.
var elfMagic = [4]byte{0x7f, 'E', 'L', 'F'}

// IsExecutable reports whether name names a regular file whose first four bytes are the ELF
// magic number.
func (f *FS) IsExecutable(name string) bool {
	d, err := f.FindDentryByName(name)
	if err != nil || d.Type != TypeRegular {
		return false
	}

	var magic [4]byte
	if n, err := f.ReadBytes(d.InodeIdx, 0, magic[:]); err != nil || n < 4 {
		return false
	}

	return magic == elfMagic
}

// entryOffset is the byte offset within a file at which load_image finds the four-byte entry
// point.
const entryOffset = 24

// LoadImage finds name, checks that it is a regular file long enough to hold the entry point (it
// does not check the ELF magic; see IsExecutable), and copies its entire contents into dest (the
// caller's user page, or a bounded slice of it), returning the entry address read from byte
// offset 24. A file larger than the destination is an error reported before anything is copied,
// matching a load bounded by the user page size.
func (f *FS) LoadImage(name string, dest []byte) (entry uint32, err error) {
	d, err := f.FindDentryByName(name)
	if err != nil {
		return 0, err
	}

	if d.Type != TypeRegular {
		return 0, fmt.Errorf("%w: %q is not a regular file", ErrNotFound, name)
	}

	in, err := f.inode(d.InodeIdx)
	if err != nil {
		return 0, err
	}

	if in.Length < entryOffset+4 {
		return 0, fmt.Errorf("fs: %q too short to hold an entry point", name)
	}

	if int(in.Length) > len(dest) {
		return 0, fmt.Errorf("fs: %q (%d bytes) exceeds destination (%d bytes)", name, in.Length, len(dest))
	}

	var hdr [entryOffset + 4]byte
	if _, err := f.ReadBytes(d.InodeIdx, 0, hdr[:]); err != nil {
		return 0, err
	}

	entry = binary.LittleEndian.Uint32(hdr[entryOffset:])

	n, err := f.ReadBytes(d.InodeIdx, 0, dest[:in.Length])
	if err != nil {
		return 0, err
	}

	if uint32(n) != in.Length {
		return 0, fmt.Errorf("fs: %q: short read (%d of %d bytes)", name, n, in.Length)
	}

	return entry, nil
}
