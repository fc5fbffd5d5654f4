// api/store/file_store.go
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	permsync_errors "github.com/permsync/permsync/api/errors"
	logger "github.com/permsync/permsync/api/logging"
	"github.com/permsync/permsync/api/model"
)

// FileStore keeps templates as YAML files under a root directory. Files are
// the source of truth; the in-memory index is rebuilt on demand so edits made
// directly on disk are picked up by the next pass.
type FileStore struct {
	root string
	mu   sync.Mutex
}

// NewFileStore opens (creating if needed) a template directory.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create template dir %q: %w", root, permsync_errors.ErrTemplateStore)
	}
	return &FileStore{root: root}, nil
}

// List loads every template under the root, normalized and tagged with its
// file path. Files that fail to parse are skipped with a logged warning so
// one bad document does not block a whole pass.
func (s *FileStore) List(ctx context.Context) ([]*model.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var templates []*model.Template
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(path) {
			return nil
		}
		t, err := s.load(path)
		if err != nil {
			logger.Warn("Skipping unreadable template file",
				zap.Error(err),
				zap.String("path", path))
			return nil
		}
		templates = append(templates, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk template dir %q: %w", s.root, permsync_errors.ErrTemplateStore)
	}
	return templates, nil
}

// Get loads the template for one permission set name.
func (s *FileStore) Get(ctx context.Context, name string) (*model.Template, error) {
	templates, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range templates {
		if t.ResourceID() == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("template %q: %w", name, permsync_errors.ErrTemplateNotFound)
}

// Save writes the template back to its file, or to a new file named after
// the permission set when it has none yet.
func (s *FileStore) Save(ctx context.Context, t *model.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ResourceID() == "" {
		return fmt.Errorf("template has no name: %w", permsync_errors.ErrInvalidTemplateData)
	}
	if t.FilePath == "" {
		t.FilePath = filepath.Join(s.root, fileName(t.ResourceID()))
	}
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal template %q: %w", t.ResourceID(), permsync_errors.ErrTemplateStore)
	}
	if err := os.WriteFile(t.FilePath, data, 0o644); err != nil {
		return fmt.Errorf("write template %q: %w", t.FilePath, permsync_errors.ErrTemplateStore)
	}
	return nil
}

// Delete removes the template's file.
func (s *FileStore) Delete(ctx context.Context, name string) error {
	t, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(t.FilePath); err != nil {
		return fmt.Errorf("remove template %q: %w", t.FilePath, permsync_errors.ErrTemplateStore)
	}
	return nil
}

func (s *FileStore) load(path string) (*model.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t model.Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if t.TemplateType != "" && t.TemplateType != model.PermissionSetTemplateType {
		return nil, fmt.Errorf("unexpected template type %q", t.TemplateType)
	}
	t.FilePath = path
	t.Normalize()
	return &t, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func fileName(resourceID string) string {
	slug := strings.ToLower(resourceID)
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, slug)
	return slug + ".yaml"
}

var _ TemplateStore = (*FileStore)(nil)
