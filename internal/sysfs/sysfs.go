// Package sysfs reads kernel pseudo-files under /proc and /sys relative to a
// root, so probes can run against fixture trees.
package sysfs

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

type FS struct {
	root string
}

func New(root string) FS {
	return FS{root: root}
}

// Host is the live filesystem.
func Host() FS {
	return FS{root: "/"}
}

func (fs FS) Root() string {
	if fs.root == "" {
		return "/"
	}
	return fs.root
}

// Path maps an absolute kernel path such as /proc/stat into the root.
func (fs FS) Path(p string) string {
	return filepath.Join(fs.Root(), p)
}

// Rel strips the root from a path produced by Path or Glob.
func (fs FS) Rel(p string) string {
	rel, err := filepath.Rel(fs.Root(), p)
	if err != nil {
		return p
	}
	if rel == "." {
		return "/"
	}
	return "/" + rel
}

func (fs FS) ReadString(p string) (string, error) {
	data, err := os.ReadFile(fs.Path(p))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadLine returns the file contents with surrounding whitespace trimmed.
// Most sysfs attributes are a single value followed by a newline.
func (fs FS) ReadLine(p string) (string, error) {
	s, err := fs.ReadString(p)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func (fs FS) ReadLines(p string) ([]string, error) {
	f, err := os.Open(fs.Path(p))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func (fs FS) ReadUint(p string) (uint64, error) {
	s, err := fs.ReadLine(p)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(s, 10, 64)
}

func (fs FS) ReadInt(p string) (int64, error) {
	s, err := fs.ReadLine(p)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(s, 10, 64)
}

func (fs FS) Exists(p string) bool {
	_, err := os.Stat(fs.Path(p))
	return err == nil
}

// List returns the sorted entry names of a directory.
func (fs FS) List(p string) ([]string, error) {
	entries, err := os.ReadDir(fs.Path(p))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Glob matches pattern inside the root and returns kernel paths, sorted.
func (fs FS) Glob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(fs.Path(pattern))
	if err != nil {
		return nil, err
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = fs.Rel(m)
	}
	sort.Strings(out)
	return out, nil
}

// Link resolves a symlink and returns the base name of its target, e.g. the
// PCI address behind /sys/class/drm/card0/device.
func (fs FS) Link(p string) (string, error) {
	target, err := os.Readlink(fs.Path(p))
	if err != nil {
		return "", err
	}
	return filepath.Base(target), nil
}
