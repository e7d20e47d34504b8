package data

// ObjectType identifies the variant of an object in the filesystem tree.
type ObjectType int

const (
	ObjectTypeUnknown ObjectType = iota
	ObjectTypeFile
	ObjectTypeSymlink
	ObjectTypeDirectory
	ObjectTypeHardlink
	ObjectTypeSpecial
)

func (t ObjectType) String() string {
	switch t {
	case ObjectTypeFile:
		return "file"
	case ObjectTypeSymlink:
		return "symlink"
	case ObjectTypeDirectory:
		return "directory"
	case ObjectTypeHardlink:
		return "hardlink"
	case ObjectTypeSpecial:
		return "special"
	default:
		return "unknown"
	}
}
