package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable means the imagery provider could not be reached
	// or did not answer before the caller's deadline.
	ErrSourceUnavailable = errors.New("imagery source unavailable")

	// ErrMalformedScene means a scene lacks a required band or quality layer,
	// or its layers disagree on grid shape. It applies to one scene only.
	ErrMalformedScene = errors.New("malformed scene")
)

// SceneError ties a per-scene failure to the scene that produced it.
type SceneError struct {
	SceneID string
	Err     error
}

func (e *SceneError) Error() string {
	return fmt.Sprintf("scene %s: %v", e.SceneID, e.Err)
}

func (e *SceneError) Unwrap() error { return e.Err }

// malformed builds a SceneError wrapping ErrMalformedScene.
func malformed(sceneID, format string, args ...any) error {
	return &SceneError{
		SceneID: sceneID,
		Err:     fmt.Errorf("%w: %s", ErrMalformedScene, fmt.Sprintf(format, args...)),
	}
}

// MalformedScene is the exported form of malformed for adapters that detect
// broken scenes while loading them.
func MalformedScene(sceneID, format string, args ...any) error {
	return malformed(sceneID, format, args...)
}
