package flashfs

import (
	"strings"

	"github.com/mwantia/flashfs/data"
	"github.com/mwantia/flashfs/object"
)

// maxLinkDepth bounds symlink following so that alias cycles
// terminate. A chain deeper than this resolves as not found.
const maxLinkDepth = 32

type resolutionKind int

const (
	resolutionFound resolutionKind = iota
	resolutionNotFound
	resolutionBoundary
)

// resolution is the tagged outcome of one walk: a resolved object,
// "not found inside this tree", or "resolution left the tree" with
// the unconsumed path suffix. The walker never raises errors itself;
// bridge operations translate these outcomes.
type resolution struct {
	kind      resolutionKind
	obj       *object.Object
	remainder string
}

func found(obj *object.Object) resolution {
	return resolution{kind: resolutionFound, obj: obj}
}

var notFound = resolution{kind: resolutionNotFound}

// findObject walks path starting at dir (the device root when dir is
// nil). Must be called with the device lock held; symlink recursion
// stays within the one acquisition.
func (fs *FileSystem) findObject(dir *object.Object, path string, depth int) resolution {
	// The host sometimes evaluates with the location already pointing
	// at the entry being looked up and the path being just its name.
	if dir != nil && !strings.Contains(path, "/") && dir.Name() == path {
		return found(dir)
	}

	if !fs.dev.Mounted {
		return notFound
	}
	if dir == nil {
		dir = fs.dev.Root
	}

	for dir != nil {
		// Collapse runs of separators: "a///b" walks like "a/b".
		path = strings.TrimLeft(path, "/")

		j := strings.IndexByte(path, '/')
		if j < 0 {
			j = len(path)
		}
		comp := path[:j]
		path = path[j:]
		if len(comp) > data.MaxNameLength {
			// Oversized components are truncated, not rejected; the
			// excess bytes are consumed all the same.
			comp = comp[:data.MaxNameLength]
		}

		switch comp {
		case ".":
			// Nothing to do.
		case "..":
			if dir.Parent != nil {
				dir = dir.Parent
			} else {
				// Walked past the root: resolution continues at
				// whatever is mounted above this filesystem.
				return resolution{
					kind:      resolutionBoundary,
					remainder: strings.TrimLeft(path, "/"),
				}
			}
		default:
			if comp != "" {
				if dir.Type != data.ObjectTypeDirectory {
					return notFound
				}
				dir = dir.Dir.Find(comp)
			}

			res := fs.followLink(dir, depth)
			if res.kind == resolutionBoundary {
				return res
			}
			dir = res.obj
		}

		if len(path) == 0 {
			if dir == nil {
				return notFound
			}
			return found(dir)
		}
	}

	return notFound
}

// followLink resolves hardlink indirection once, then re-enters the
// walker for every symlink alias until something that is not a link
// comes out. An absolute alias scans again from the root; a relative
// one starts at the symlink's own parent. Boundary signals from alias
// resolution propagate outward unchanged.
func (fs *FileSystem) followLink(obj *object.Object, depth int) resolution {
	obj = obj.Equivalent()

	for obj != nil && obj.Type == data.ObjectTypeSymlink {
		if depth >= maxLinkDepth {
			fs.log.Debug("followLink: alias depth exceeded at %q", obj.Symlink.Alias)
			return notFound
		}
		depth++

		alias := obj.Symlink.Alias

		var res resolution
		if strings.HasPrefix(alias, "/") {
			res = fs.findObject(nil, alias, depth)
		} else {
			res = fs.findObject(obj.Parent, alias, depth)
		}

		if res.kind == resolutionBoundary {
			return res
		}
		obj = res.obj
	}

	if obj == nil {
		return notFound
	}
	return found(obj)
}
