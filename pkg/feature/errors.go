package feature

import "errors"

// Domain errors for the feature registry.
var (
	ErrInvalidValue            = errors.New("invalid feature value encoding")
	ErrInvalidDefinition       = errors.New("invalid feature definition")
	ErrFailedToLoadDefinitions = errors.New("failed to load feature definitions")
)
