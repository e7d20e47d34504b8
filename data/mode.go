package data

// FileMode represents file mode and permission bits.
// The layout follows the conventional POSIX encoding: the upper type
// bits tag the object variant, the lower nine bits carry permissions.
type FileMode uint32

const (
	// Type bits (S_IFMT range)
	ModeTypeMask FileMode = 0170000

	ModeTypeFifo      FileMode = 0010000 // p: named pipe
	ModeTypeCharDev   FileMode = 0020000 // c: character device
	ModeTypeDirectory FileMode = 0040000 // d: directory
	ModeTypeBlockDev  FileMode = 0060000 // b: block device
	ModeTypeRegular   FileMode = 0100000 // -: regular file
	ModeTypeSymlink   FileMode = 0120000 // L: symbolic link
	ModeTypeSocket    FileMode = 0140000 // S: socket

	// Permission bits
	ModePerm FileMode = 0777
)

// IsDir reports whether m is tagged as a directory.
func (m FileMode) IsDir() bool {
	return m&ModeTypeMask == ModeTypeDirectory
}

// IsRegular reports whether m is tagged as a regular file.
func (m FileMode) IsRegular() bool {
	return m&ModeTypeMask == ModeTypeRegular
}

// IsSymlink reports whether m is tagged as a symbolic link.
func (m FileMode) IsSymlink() bool {
	return m&ModeTypeMask == ModeTypeSymlink
}

// IsDevice reports whether m is tagged as a character or block device.
func (m FileMode) IsDevice() bool {
	typ := m & ModeTypeMask
	return typ == ModeTypeCharDev || typ == ModeTypeBlockDev
}

// Perm returns the permission bits in m (the lower 9 bits).
func (m FileMode) Perm() FileMode {
	return m & ModePerm
}

// Type returns only the type bits in m.
func (m FileMode) Type() FileMode {
	return m & ModeTypeMask
}

// WithType replaces the type bits of m with the tag matching t.
func (m FileMode) WithType(t ObjectType) FileMode {
	m &^= ModeTypeMask
	switch t {
	case ObjectTypeDirectory:
		return m | ModeTypeDirectory
	case ObjectTypeSymlink:
		return m | ModeTypeSymlink
	case ObjectTypeFile:
		return m | ModeTypeRegular
	default:
		return m
	}
}

// String returns a textual representation in ls -l format,
// for example "drwxr-xr-x" for a directory with 755 permissions.
func (m FileMode) String() string {
	var buf [10]byte

	switch m & ModeTypeMask {
	case ModeTypeDirectory:
		buf[0] = 'd'
	case ModeTypeSymlink:
		buf[0] = 'l'
	case ModeTypeCharDev:
		buf[0] = 'c'
	case ModeTypeBlockDev:
		buf[0] = 'b'
	case ModeTypeFifo:
		buf[0] = 'p'
	case ModeTypeSocket:
		buf[0] = 's'
	default:
		buf[0] = '-'
	}

	const rwx = "rwxrwxrwx"
	for i, c := range rwx {
		if m&(1<<uint(9-1-i)) != 0 {
			buf[i+1] = byte(c)
		} else {
			buf[i+1] = '-'
		}
	}

	return string(buf[:])
}
