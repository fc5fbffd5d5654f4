// api/store/template_store.go

// Package store persists permission set templates. The file store keeps one
// YAML document per template under a root directory, which doubles as the
// gitops layout users commit to their config repositories.
package store

import (
	"context"

	"github.com/permsync/permsync/api/model"
)

// TemplateStore is the persistence surface for templates. Implementations
// must return errors.ErrTemplateNotFound (wrapped) for missing names.
type TemplateStore interface {
	List(ctx context.Context) ([]*model.Template, error)
	Get(ctx context.Context, name string) (*model.Template, error)
	Save(ctx context.Context, t *model.Template) error
	Delete(ctx context.Context, name string) error
}
