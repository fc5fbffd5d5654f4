// api/store/file_store_test.go
package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	permsync_errors "github.com/permsync/permsync/api/errors"
	"github.com/permsync/permsync/api/model"
	"github.com/permsync/permsync/api/store"
)

func newStore(t *testing.T) (*store.FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.NewFileStore(dir)
	assert.NoError(t, err)
	return s, dir
}

func adminTemplate() *model.Template {
	return &model.Template{
		TemplateType: model.PermissionSetTemplateType,
		Owner:        "platform@example.com",
		Properties: model.Properties{
			Name:             "AdminAccess",
			Descriptions:     model.Descriptions{{Text: "admin access"}},
			SessionDurations: model.SessionDurations{{Duration: "PT2H"}},
		},
		AccessRules: []model.AccessRule{{Users: []string{"alice"}}},
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("SaveThenGetRoundTrips", func(t *testing.T) {
		s, dir := newStore(t)

		tmpl := adminTemplate()
		assert.NoError(t, s.Save(ctx, tmpl))
		assert.Equal(t, filepath.Join(dir, "adminaccess.yaml"), tmpl.FilePath)

		got, err := s.Get(ctx, "AdminAccess")
		assert.NoError(t, err)
		assert.Equal(t, "AdminAccess", got.ResourceID())
		assert.Equal(t, "platform@example.com", got.Owner)
		assert.Equal(t, tmpl.FilePath, got.FilePath)
	})

	t.Run("GetUnknownNameFails", func(t *testing.T) {
		s, _ := newStore(t)
		_, err := s.Get(ctx, "Nope")
		assert.ErrorIs(t, err, permsync_errors.ErrTemplateNotFound)
	})

	t.Run("SaveWithoutNameFails", func(t *testing.T) {
		s, _ := newStore(t)
		err := s.Save(ctx, &model.Template{})
		assert.ErrorIs(t, err, permsync_errors.ErrInvalidTemplateData)
	})

	t.Run("ListLoadsNormalizedTemplates", func(t *testing.T) {
		s, dir := newStore(t)

		doc := `
properties:
  name: ReadOnly
  description: read only
access_rules:
  - users:
      - everyone
  - users:
      - few
    included_accounts:
      - prod
`
		assert.NoError(t, os.WriteFile(filepath.Join(dir, "readonly.yaml"), []byte(doc), 0o644))

		templates, err := s.List(ctx)
		assert.NoError(t, err)
		assert.Len(t, templates, 1)
		// Missing template type is filled in and rules come back in
		// specificity order.
		assert.Equal(t, model.PermissionSetTemplateType, templates[0].TemplateType)
		assert.Equal(t, []string{"few"}, templates[0].AccessRules[0].Users)
		assert.Equal(t, filepath.Join(dir, "readonly.yaml"), templates[0].FilePath)
	})

	t.Run("UnparseableFileIsSkipped", func(t *testing.T) {
		s, dir := newStore(t)

		assert.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("{{nope"), 0o644))
		assert.NoError(t, s.Save(ctx, adminTemplate()))

		templates, err := s.List(ctx)
		assert.NoError(t, err)
		assert.Len(t, templates, 1)
	})

	t.Run("ForeignTemplateTypeIsSkipped", func(t *testing.T) {
		s, dir := newStore(t)

		doc := `
template_type: PermSync::SSO::SomethingElse
properties:
  name: Other
`
		assert.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte(doc), 0o644))

		templates, err := s.List(ctx)
		assert.NoError(t, err)
		assert.Empty(t, templates)
	})

	t.Run("NonYAMLFilesAreIgnored", func(t *testing.T) {
		s, dir := newStore(t)

		assert.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# docs"), 0o644))

		templates, err := s.List(ctx)
		assert.NoError(t, err)
		assert.Empty(t, templates)
	})

	t.Run("DeleteRemovesTheFile", func(t *testing.T) {
		s, _ := newStore(t)

		tmpl := adminTemplate()
		assert.NoError(t, s.Save(ctx, tmpl))
		assert.NoError(t, s.Delete(ctx, "AdminAccess"))

		_, err := os.Stat(tmpl.FilePath)
		assert.True(t, os.IsNotExist(err))

		assert.ErrorIs(t, s.Delete(ctx, "AdminAccess"), permsync_errors.ErrTemplateNotFound)
	})

	t.Run("SaveRewritesTheExistingFile", func(t *testing.T) {
		s, _ := newStore(t)

		tmpl := adminTemplate()
		assert.NoError(t, s.Save(ctx, tmpl))

		tmpl.Properties.Descriptions = model.Descriptions{{Text: "rewritten"}}
		assert.NoError(t, s.Save(ctx, tmpl))

		got, err := s.Get(ctx, "AdminAccess")
		assert.NoError(t, err)
		assert.Equal(t, "rewritten", got.Properties.Descriptions[0].Text)

		templates, err := s.List(ctx)
		assert.NoError(t, err)
		assert.Len(t, templates, 1)
	})
}
