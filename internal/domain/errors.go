package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidProject    = errors.New("invalid project")
	ErrNoArtifact        = errors.New("no usable artifact")
	ErrProviderFailure   = errors.New("provider failure")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrStaleGeneration   = errors.New("stale generation")
	ErrEmptyExport       = errors.New("nothing to export")
	ErrPending           = errors.New("image is still pending")
)
