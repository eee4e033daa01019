package search

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/MJE43/daihinmin-arena/internal/entry"
)

// Workspace is a private directory for one trial: a copy of the entries
// plus the target, and the param.json the target reads.
type Workspace struct {
	Root string
}

// EntriesDir is where the trial's copy of the entries lives.
func (w *Workspace) EntriesDir() string { return filepath.Join(w.Root, "entries") }

// NewWorkspace creates a unique temp directory and copies every regular file
// of src into it. The target is added when its content is not among them.
func NewWorkspace(src string, target entry.Entry) (_ *Workspace, err error) {
	catalog, err := entry.Scan(src)
	if err != nil {
		return nil, err
	}

	root, err := os.MkdirTemp("", "arena-trial-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	ws := &Workspace{Root: root}
	defer func() {
		if err != nil {
			err = multierr.Append(err, ws.Remove())
		}
	}()

	if err := os.Mkdir(ws.EntriesDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	used := make(map[string]bool, catalog.Len())
	for _, en := range catalog.Entries() {
		if err := copyFile(en.Path, filepath.Join(ws.EntriesDir(), en.Name())); err != nil {
			return nil, err
		}
		used[en.Name()] = true
	}
	if _, ok := catalog.Get(target.ID); !ok {
		dst := filepath.Join(ws.EntriesDir(), targetFileName(target, used))
		if err := copyFile(target.Path, dst); err != nil {
			return nil, err
		}
	}
	return ws, nil
}

// targetFileName names the target's copy after its id and base name, adding a
// counter while the name is taken by an entry.
func targetFileName(target entry.Entry, used map[string]bool) string {
	id := target.ID
	if len(id) > 12 {
		id = id[:12]
	}
	base := "target-" + id + "-" + target.Name()
	name := base
	for i := 1; used[name]; i++ {
		name = fmt.Sprintf("%s.%d", base, i)
	}
	return name
}

// Remove deletes the workspace and everything in it.
func (w *Workspace) Remove() error {
	if err := os.RemoveAll(w.Root); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}

// copyFile copies src to dst keeping the permission bits, so copied
// executables stay runnable.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	defer func() { err = multierr.Append(err, out.Close()) }()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return nil
}
