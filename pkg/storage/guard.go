package storage

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// guardFile implements spec.md §6 "Guard file": a sentinel written at
// startup and removed on clean shutdown, whose presence on the next
// startup signals the previous process crashed. The file holds a
// per-process instance id so multiple opens of the same directory over
// time can be told apart in logs, though detection itself only depends
// on the file's existence.
type guardFile struct {
	path string
}

func guardPath(dir, name string) string {
	return filepath.Join(dir, "__ncbi_netcache_started__"+name)
}

// openGuard reports whether the guard file was already present (unclean
// shutdown) and, if so, returns without creating anything new — the
// caller decides whether to drop existing state before calling create.
func openGuard(dir, name string) (g *guardFile, dirty bool, err error) {
	path := guardPath(dir, name)
	g = &guardFile{path: path}
	if _, statErr := os.Stat(path); statErr == nil {
		return g, true, nil
	} else if !os.IsNotExist(statErr) {
		return nil, false, newError("openGuard", IOError, statErr)
	}
	return g, false, nil
}

// create writes a fresh guard file, to be called once the directory is
// known to be in a clean, caching-ready state.
func (g *guardFile) create() error {
	id := uuid.NewString()
	if err := os.WriteFile(g.path, []byte(id), 0600); err != nil {
		return newError("guard.create", IOError, err)
	}
	return nil
}

// release removes the guard file on clean shutdown.
func (g *guardFile) release() error {
	if err := os.Remove(g.path); err != nil && !os.IsNotExist(err) {
		return newError("guard.release", IOError, err)
	}
	return nil
}
