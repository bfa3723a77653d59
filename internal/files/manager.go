package files

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mainbong/path_lister/internal/filesystem"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// File types understood by Decode and Encode
const (
	TypeJSON = "json"
	TypeYAML = "yaml"
	TypeTOML = "toml"
	TypeText = "text"
)

// Manager handles structured file reads/writes and backups
type Manager struct {
	backupDir string
	fs        filesystem.FileSystem
}

// NewManager creates a new file manager
func NewManager(backupDir string) *Manager {
	return NewManagerWithFS(backupDir, filesystem.NewOSFileSystem())
}

// NewManagerWithFS creates a new file manager with a custom FileSystem (for testing)
func NewManagerWithFS(backupDir string, fs filesystem.FileSystem) *Manager {
	return &Manager{
		backupDir: backupDir,
		fs:        fs,
	}
}

// BackupDir returns the configured backup directory ("" disables backups)
func (m *Manager) BackupDir() string {
	return m.backupDir
}

// Decode reads path and unmarshals it into v according to its extension
func (m *Manager) Decode(path string, v interface{}) error {
	data, err := m.fs.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	switch FileType(path) {
	case TypeJSON:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
	case TypeYAML:
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	case TypeTOML:
		if err := toml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse TOML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}

	return nil
}

// Encode marshals v according to the extension of path and writes it there
func (m *Manager) Encode(path string, v interface{}, perm os.FileMode) error {
	data, err := Marshal(FileType(path), v)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := m.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := m.fs.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// Marshal encodes v in the given file type
func Marshal(fileType string, v interface{}) ([]byte, error) {
	switch fileType {
	case TypeJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return data, nil
	case TypeYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return data, nil
	case TypeTOML:
		data, err := toml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal TOML: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
}

// Backup copies an existing file into the backup directory and returns the
// backup path. It returns "" when backups are disabled or path does not exist.
func (m *Manager) Backup(path string) (string, error) {
	if m.backupDir == "" {
		return "", nil
	}

	if _, err := m.fs.Stat(path); os.IsNotExist(err) {
		return "", nil
	}

	if err := m.fs.MkdirAll(m.backupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	baseName := filepath.Base(path)
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(path))
	pathHash := fmt.Sprintf("%08x", hasher.Sum32())
	timestamp := time.Now().UTC().Format("20060102-150405.000000000")
	backupPath := filepath.Join(m.backupDir, fmt.Sprintf("%s.%s.%s.backup", baseName, timestamp, pathHash))

	data, err := m.fs.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file for backup: %w", err)
	}

	if err := m.fs.WriteFile(backupPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	return backupPath, nil
}

// FileType determines the file type based on extension
func FileType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return TypeYAML
	case ".json":
		return TypeJSON
	case ".toml":
		return TypeTOML
	default:
		return TypeText
	}
}
