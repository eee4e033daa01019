// Package entry identifies candidate players by the sha256 of their bytes.
package entry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// chunkSize is sha256's block size times 0x800.
const chunkSize = sha256.BlockSize * 0x800

// Entry is one candidate player file.
type Entry struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// Name is the base name of the entry's file, used in progress output.
func (e Entry) Name() string {
	return filepath.Base(e.Path)
}

// HashFile returns the hex sha256 of the file at path, read in fixed chunks.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return HashReader(f)
}

// HashReader hashes everything r yields.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		h.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Catalog maps content ids to the files that carry them.
type Catalog struct {
	byID map[string]Entry
	ids  []string
}

// Scan hashes every regular file directly inside dir. Files with identical
// content collapse to one id; the first path in name order wins.
func Scan(dir string) (*Catalog, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read entries dir: %w", err)
	}

	c := &Catalog{byID: make(map[string]Entry, len(dirents))}
	for _, d := range dirents {
		path := filepath.Join(dir, d.Name())
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}

		id, err := HashFile(path)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", path, err)
		}
		if _, dup := c.byID[id]; dup {
			continue
		}
		c.byID[id] = Entry{ID: id, Path: path}
		c.ids = append(c.ids, id)
	}
	sort.Strings(c.ids)

	return c, nil
}

// Len is the number of distinct ids.
func (c *Catalog) Len() int { return len(c.ids) }

// IDs returns the sorted distinct ids.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Get looks up an entry by id.
func (c *Catalog) Get(id string) (Entry, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// Entries returns all entries ordered by id.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id])
	}
	return out
}
