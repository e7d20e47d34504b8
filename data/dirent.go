package data

// MaxNameLength is the longest component name the walker stores.
// Longer components are truncated into the lookup buffer while the
// remaining bytes are still consumed from the path.
const MaxNameLength = 255

// DirentSize is the fixed record size used for directory reads.
// A read request for count bytes yields up to count/DirentSize
// entries. The value mirrors a conventional struct dirent layout
// (ino + off + reclen + namlen + name buffer).
const DirentSize = 280

// Dirent is one directory-entry record yielded by a directory read.
// Ino is the identifier of the hardlink-resolved target and Off is
// always zero from this filesystem.
type Dirent struct {
	Ino     uint64 `json:"ino"`
	Off     int64  `json:"off"`
	Reclen  int    `json:"reclen"`
	Name    string `json:"name"`
	NameLen int    `json:"namelen"`
}

// NewDirent builds a record for the given target identifier and name,
// truncating the name to MaxNameLength.
func NewDirent(ino uint64, name string) Dirent {
	if len(name) > MaxNameLength {
		name = name[:MaxNameLength]
	}

	return Dirent{
		Ino:     ino,
		Off:     0,
		Reclen:  DirentSize,
		Name:    name,
		NameLen: len(name),
	}
}
