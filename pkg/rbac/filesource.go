package rbac

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// fileDebounce coalesces the burst of events editors emit for one save
const fileDebounce = 250 * time.Millisecond

// groupRolesFile is the on-disk layout of a group roles file
type groupRolesFile struct {
	GroupRoles []RawGroupRole `yaml:"group_roles"`
}

// FileSource reads group roles from a YAML file, for deployments without a
// remote configuration list
type FileSource struct {
	path string
	log  *logrus.Logger
}

// NewFileSource creates a file-backed row source
func NewFileSource(path string, log *logrus.Logger) *FileSource {
	if log == nil {
		log = logrus.New()
	}
	return &FileSource{path: path, log: log}
}

// Path returns the watched file
func (f *FileSource) Path() string {
	return f.path
}

// FetchGroupRoles reads and decodes the file on every call
func (f *FileSource) FetchGroupRoles(_ context.Context) ([]RawGroupRole, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read group roles file: %w", err)
	}

	rows, err := ParseGroupRolesYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}
	return rows, nil
}

// ParseGroupRolesYAML decodes a group roles document. Rows are returned as
// written; validation happens when the configuration is built.
func ParseGroupRolesYAML(data []byte) ([]RawGroupRole, error) {
	var doc groupRolesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse group roles document: %w", err)
	}
	return doc.GroupRoles, nil
}

// Watch calls onChange after the file is written, replaced or removed,
// until ctx is done. The parent directory is watched so atomic renames
// are seen.
func (f *FileSource) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	go f.watch(ctx, watcher, onChange)
	return nil
}

func (f *FileSource) watch(ctx context.Context, watcher *fsnotify.Watcher, onChange func()) {
	defer watcher.Close()

	target := filepath.Clean(f.path)
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			pending = time.After(fileDebounce)

		case <-pending:
			pending = nil
			f.log.WithField("path", f.path).Info("Group roles file changed")
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.log.WithError(err).Warn("Group roles file watcher error")
		}
	}
}
