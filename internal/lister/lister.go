// Package lister writes the files under a directory tree as quoted,
// comma-terminated lines ready to paste inside an array literal.
package lister

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/mainbong/path_lister/internal/files"
	"github.com/mainbong/path_lister/internal/filesystem"
	"github.com/mainbong/path_lister/internal/logger"
)

// JoinMode controls how the root and the relative path are combined in a line
type JoinMode string

const (
	// JoinConcat writes the root exactly as given immediately followed by the
	// relative path: root "svgs" and "icon.svg" give "svgsicon.svg".
	JoinConcat JoinMode = "concat"
	// JoinSeparator inserts "/" between root and relative path unless the
	// root already ends in a separator.
	JoinSeparator JoinMode = "separator"
	// JoinRelative writes the relative path only.
	JoinRelative JoinMode = "relative"
)

var (
	ErrRootNotFound     = errors.New("root directory does not exist")
	ErrRootNotDir       = errors.New("root is not a directory")
	ErrOutputUnwritable = errors.New("output file cannot be opened for writing")
	ErrInvalidJoinMode  = errors.New("invalid join mode")
)

// ParseJoinMode parses a join mode name; "" selects JoinConcat
func ParseJoinMode(s string) (JoinMode, error) {
	switch mode := JoinMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return JoinConcat, nil
	case JoinConcat, JoinSeparator, JoinRelative:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q (want concat, separator or relative)", ErrInvalidJoinMode, s)
	}
}

// FormatEntry renders one entry as `"<path>",` without the trailing newline.
// rel must already use forward slashes.
func FormatEntry(root, rel string, mode JoinMode) string {
	var joined string
	switch mode {
	case JoinSeparator:
		if root == "" || strings.HasSuffix(root, "/") || strings.HasSuffix(root, `\`) {
			joined = root + rel
		} else {
			joined = root + "/" + rel
		}
	case JoinRelative:
		joined = rel
	default:
		joined = root + rel
	}
	return `"` + joined + `",`
}

// Options configures a Lister
type Options struct {
	Join JoinMode
	// BackupDir receives a copy of an existing output file before it is
	// truncated. Empty disables backups.
	BackupDir string
	// Notice receives the confirmation line after a successful List. Nil
	// suppresses it.
	Notice io.Writer
}

// Result describes a completed run
type Result struct {
	Root   string
	Output string
	Files  int
	// Backup is the path of the previous output's backup, if one was made.
	Backup string
}

// Lister enumerates files under a root and writes them as formatted lines
type Lister struct {
	fs     filesystem.FileSystem
	files  *files.Manager
	join   JoinMode
	notice io.Writer
}

// New creates a Lister backed by the OS file system
func New(opts Options) *Lister {
	return NewWithFS(filesystem.NewOSFileSystem(), opts)
}

// NewWithFS creates a Lister with a custom FileSystem (for testing)
func NewWithFS(fsys filesystem.FileSystem, opts Options) *Lister {
	join := opts.Join
	if join == "" {
		join = JoinConcat
	}
	return &Lister{
		fs:     fsys,
		files:  files.NewManagerWithFS(opts.BackupDir, fsys),
		join:   join,
		notice: opts.Notice,
	}
}

// List writes one line per file under root into output, truncating it first.
// The root is checked before output is touched, and output is opened before
// the walk starts. A walk error aborts the run; lines written so far are
// flushed and the file is closed.
func (l *Lister) List(root, output string) (*Result, error) {
	if err := l.checkRoot(root); err != nil {
		return nil, err
	}

	backupPath, err := l.files.Backup(output)
	if err != nil {
		return nil, fmt.Errorf("failed to back up %s: %w", output, err)
	}
	if backupPath != "" {
		logger.Info("Backed up %s to %s", output, backupPath)
	}

	count, err := l.writeFile(root, output)
	if err != nil {
		// the caller reports the error; keep it out of the console echo
		logger.Info("Listing %s into %s failed after %d files: %v", root, output, count, err)
		return nil, err
	}
	logger.Info("Listed %d files from %s into %s", count, root, output)

	if l.notice != nil {
		color.New(color.FgGreen).Fprintf(l.notice, "File names saved to %s\n", output)
	}

	return &Result{Root: root, Output: output, Files: count, Backup: backupPath}, nil
}

// WriteTo writes the formatted lines for root to w and returns how many
// files were listed.
func (l *Lister) WriteTo(root string, w io.Writer) (int, error) {
	if err := l.checkRoot(root); err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(w)
	count, err := l.walk(root, func(line string) error {
		_, err := bw.WriteString(line + "\n")
		return err
	})
	if flushErr := bw.Flush(); flushErr != nil && err == nil {
		err = fmt.Errorf("failed to flush output: %w", flushErr)
	}
	return count, err
}

// Lines returns the formatted lines for root without writing anything
func (l *Lister) Lines(root string) ([]string, error) {
	if err := l.checkRoot(root); err != nil {
		return nil, err
	}
	var lines []string
	_, err := l.walk(root, func(line string) error {
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (l *Lister) checkRoot(root string) error {
	info, err := l.fs.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return fmt.Errorf("failed to stat root %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootNotDir, root)
	}
	return nil
}

func (l *Lister) writeFile(root, output string) (count int, err error) {
	f, err := l.fs.Create(output)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutputUnwritable, err)
	}

	bw := bufio.NewWriter(f)
	defer func() {
		if flushErr := bw.Flush(); flushErr != nil && err == nil {
			err = fmt.Errorf("failed to flush output: %w", flushErr)
		}
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output: %w", closeErr)
		}
	}()

	return l.walk(root, func(line string) error {
		_, err := bw.WriteString(line + "\n")
		return err
	})
}

func (l *Lister) walk(root string, emit func(line string) error) (int, error) {
	count := 0
	err := l.fs.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", path, err)
		}
		if d.IsDir() {
			return nil
		}
		// symlinks to directories are not followed and not listed;
		// broken symlinks are listed like files
		if d.Type()&fs.ModeSymlink != 0 {
			if info, err := l.fs.Stat(path); err == nil && info.IsDir() {
				logger.Debug("Skipped directory symlink %s", path)
				return nil
			}
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to relativize %s: %w", path, err)
		}

		line := FormatEntry(root, filepath.ToSlash(rel), l.join)
		if err := emit(line); err != nil {
			return fmt.Errorf("failed to write line for %s: %w", path, err)
		}
		count++
		logger.Debug("Listed %s", rel)
		return nil
	})
	return count, err
}
