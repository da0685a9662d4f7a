package repo

import (
	"io/fs"

	"github.com/odvcencio/gitodb/pkg/object"
)

// modeFromFileInfo maps lstat results to a tree entry mode. ok is false for
// entries that have no tree representation (sockets, devices, pipes).
func modeFromFileInfo(info fs.FileInfo) (mode string, ok bool) {
	m := info.Mode()
	switch {
	case m.IsDir():
		return object.TreeModeDir, true
	case m&fs.ModeSymlink != 0:
		return object.TreeModeSymlink, true
	case !m.IsRegular():
		return "", false
	case m&0o111 != 0:
		return object.TreeModeExecutable, true
	default:
		return object.TreeModeFile, true
	}
}
