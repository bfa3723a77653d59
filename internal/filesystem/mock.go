package filesystem

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockFileSystem is a mock implementation of FileSystem for testing
type MockFileSystem struct {
	files        map[string][]byte
	dirs         map[string]bool
	filePerms    map[string]os.FileMode
	dirPerms     map[string]os.FileMode
	mu           sync.RWMutex
	readErrors   map[string]error
	writeErrors  map[string]error
	statErrors   map[string]error
	createErrors map[string]error
	walkErrors   map[string]error
	mkdirErrors  map[string]error
}

// NewMockFileSystem creates a new MockFileSystem instance
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		files:        make(map[string][]byte),
		dirs:         make(map[string]bool),
		filePerms:    make(map[string]os.FileMode),
		dirPerms:     make(map[string]os.FileMode),
		readErrors:   make(map[string]error),
		writeErrors:  make(map[string]error),
		statErrors:   make(map[string]error),
		createErrors: make(map[string]error),
		walkErrors:   make(map[string]error),
		mkdirErrors:  make(map[string]error),
	}
}

// SetReadError sets an error to return when reading a specific file
func (m *MockFileSystem) SetReadError(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErrors[path] = err
}

// SetWriteError sets an error to return when writing a specific file
func (m *MockFileSystem) SetWriteError(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErrors[path] = err
}

// SetStatError sets an error to return when stating a specific path
func (m *MockFileSystem) SetStatError(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statErrors[path] = err
}

// SetCreateError sets an error to return when creating a specific file
func (m *MockFileSystem) SetCreateError(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErrors[path] = err
}

// SetWalkError makes WalkDir report err when it tries to list the directory at path
func (m *MockFileSystem) SetWalkError(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.walkErrors[path] = err
}

// SetMkdirError makes MkdirAll fail for path and every path below it
func (m *MockFileSystem) SetMkdirError(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirErrors[filepath.Clean(path)] = err
}

// AddFile adds a file to the mock filesystem
func (m *MockFileSystem) AddFile(path string, data []byte, perm os.FileMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = data
	m.filePerms[path] = perm
}

// AddDir adds a directory to the mock filesystem
func (m *MockFileSystem) AddDir(path string, perm os.FileMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[path] = true
	m.dirPerms[path] = perm
}

// GetFile returns the content of a file
func (m *MockFileSystem) GetFile(path string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files[path]
}

// HasFile reports whether a file exists at path
func (m *MockFileSystem) HasFile(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[path]
	return ok
}

func (m *MockFileSystem) ReadFile(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.readErrors[path]; ok {
		return nil, err
	}

	if data, ok := m.files[path]; ok {
		return data, nil
	}

	return nil, os.ErrNotExist
}

func (m *MockFileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.writeErrors[path]; ok {
		return err
	}

	m.files[path] = data
	m.filePerms[path] = perm
	return nil
}

func (m *MockFileSystem) Stat(path string) (os.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statLocked(path)
}

func (m *MockFileSystem) statLocked(path string) (os.FileInfo, error) {
	path = filepath.Clean(path)
	if err, ok := m.statErrors[path]; ok {
		return nil, err
	}

	if data, ok := m.files[path]; ok {
		return &mockFileInfo{
			name:  filepath.Base(path),
			size:  int64(len(data)),
			mode:  m.filePerms[path],
			isDir: false,
		}, nil
	}

	if _, ok := m.dirs[path]; ok {
		return &mockFileInfo{
			name:  filepath.Base(path),
			size:  0,
			mode:  m.dirPerms[path] | fs.ModeDir,
			isDir: true,
		}, nil
	}

	return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
}

func (m *MockFileSystem) MkdirAll(path string, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p := filepath.Clean(path); ; p = filepath.Dir(p) {
		if err, ok := m.mkdirErrors[p]; ok {
			return &fs.PathError{Op: "mkdir", Path: path, Err: err}
		}
		if parent := filepath.Dir(p); parent == p {
			break
		}
	}
	for p := filepath.Clean(path); ; p = filepath.Dir(p) {
		if !m.dirs[p] {
			m.dirs[p] = true
			m.dirPerms[p] = perm
		}
		if parent := filepath.Dir(p); parent == p {
			break
		}
	}
	return nil
}

func (m *MockFileSystem) ReadDir(path string) ([]fs.DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readDirLocked(path), nil
}

// readDirLocked lists the direct children of path sorted by name, like os.ReadDir.
func (m *MockFileSystem) readDirLocked(path string) []fs.DirEntry {
	var entries []fs.DirEntry
	seen := make(map[string]bool)

	path = filepath.Clean(path)

	for filePath, data := range m.files {
		if filepath.Dir(filepath.Clean(filePath)) != path {
			continue
		}
		name := filepath.Base(filePath)
		if !seen[name] {
			entries = append(entries, &mockDirEntry{
				info: &mockFileInfo{name: name, size: int64(len(data)), mode: m.filePerms[filePath]},
			})
			seen[name] = true
		}
	}

	for dirPath := range m.dirs {
		clean := filepath.Clean(dirPath)
		if filepath.Dir(clean) != path || clean == path {
			continue
		}
		name := filepath.Base(clean)
		if !seen[name] {
			entries = append(entries, &mockDirEntry{
				info: &mockFileInfo{name: name, mode: m.dirPerms[dirPath] | fs.ModeDir, isDir: true},
			})
			seen[name] = true
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries
}

func (m *MockFileSystem) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	delete(m.dirs, path)
	delete(m.filePerms, path)
	delete(m.dirPerms, path)
	return nil
}

// Create truncates path and returns a writer whose writes land in the mock
// immediately, so partially written files stay observable after an abort.
func (m *MockFileSystem) Create(path string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.createErrors[path]; ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	if parent := filepath.Dir(path); parent != "." && parent != string(filepath.Separator) && !m.dirs[parent] {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}

	m.files[path] = []byte{}
	m.filePerms[path] = 0644
	return &mockWriter{fs: m, path: path}, nil
}

// WalkDir visits root and everything below it in lexical order. The tree is
// snapshotted first so walkFn may write to the mock without deadlocking.
func (m *MockFileSystem) WalkDir(root string, walkFn fs.WalkDirFunc) error {
	m.mu.RLock()
	info, err := m.statLocked(root)
	if err != nil {
		m.mu.RUnlock()
		err = walkFn(root, nil, err)
		if err == fs.SkipDir || err == fs.SkipAll {
			return nil
		}
		return err
	}
	tree := make(map[string][]fs.DirEntry)
	walkErrors := make(map[string]error)
	m.snapshotLocked(root, info.IsDir(), tree, walkErrors)
	m.mu.RUnlock()

	err = m.walk(root, &mockDirEntry{info: info.(*mockFileInfo)}, tree, walkErrors, walkFn)
	if err == fs.SkipDir || err == fs.SkipAll {
		return nil
	}
	return err
}

func (m *MockFileSystem) snapshotLocked(path string, isDir bool, tree map[string][]fs.DirEntry, walkErrors map[string]error) {
	if !isDir {
		return
	}
	if err, ok := m.walkErrors[path]; ok {
		walkErrors[path] = err
		return
	}
	entries := m.readDirLocked(path)
	tree[path] = entries
	for _, entry := range entries {
		m.snapshotLocked(filepath.Join(path, entry.Name()), entry.IsDir(), tree, walkErrors)
	}
}

func (m *MockFileSystem) walk(path string, d fs.DirEntry, tree map[string][]fs.DirEntry, walkErrors map[string]error, walkFn fs.WalkDirFunc) error {
	if err := walkFn(path, d, nil); err != nil || !d.IsDir() {
		if err == fs.SkipDir && d.IsDir() {
			err = nil
		}
		return err
	}

	if err, ok := walkErrors[path]; ok {
		err = walkFn(path, d, &fs.PathError{Op: "open", Path: path, Err: err})
		if err == fs.SkipDir {
			return nil
		}
		return err
	}

	for _, entry := range tree[path] {
		if err := m.walk(filepath.Join(path, entry.Name()), entry, tree, walkErrors, walkFn); err != nil {
			if err == fs.SkipDir {
				break
			}
			return err
		}
	}
	return nil
}

// Paths returns every file path in the mock whose path starts with prefix.
func (m *MockFileSystem) Paths(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var paths []string
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// mockWriter appends to a file held by MockFileSystem
type mockWriter struct {
	fs     *MockFileSystem
	path   string
	closed bool
}

func (w *mockWriter) Write(p []byte) (int, error) {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	if w.closed {
		return 0, os.ErrClosed
	}
	if err, ok := w.fs.writeErrors[w.path]; ok {
		return 0, err
	}
	w.fs.files[w.path] = append(w.fs.files[w.path], p...)
	return len(p), nil
}

func (w *mockWriter) Close() error {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	if w.closed {
		return os.ErrClosed
	}
	w.closed = true
	return nil
}

// mockFileInfo implements os.FileInfo
type mockFileInfo struct {
	name  string
	size  int64
	mode  os.FileMode
	isDir bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() os.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return time.Time{} }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() interface{}   { return nil }

// mockDirEntry implements fs.DirEntry
type mockDirEntry struct {
	info *mockFileInfo
}

func (m *mockDirEntry) Name() string               { return m.info.name }
func (m *mockDirEntry) IsDir() bool                { return m.info.isDir }
func (m *mockDirEntry) Type() fs.FileMode          { return m.info.mode.Type() }
func (m *mockDirEntry) Info() (fs.FileInfo, error) { return m.info, nil }
