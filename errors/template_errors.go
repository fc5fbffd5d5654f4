// api/errors/template_errors.go
package errors

import "errors"

var (
	ErrTemplateNotFound    = errors.New("template not found")
	ErrTemplateExists      = errors.New("template already exists")
	ErrInvalidTemplateData = errors.New("invalid template data")
	ErrTemplateStore       = errors.New("template store operation failed")
	ErrInternalServer      = errors.New("internal server error")
)
