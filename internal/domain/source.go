package domain

import (
	"context"
	"iter"
)

// SceneSource queries an imagery provider for scenes intersecting a region.
//
// FetchScenes returns scenes ordered by acquisition day ascending, ties broken
// by scene ID. Scenes whose provider cloud estimate exceeds
// maxCloudCoverPercent are excluded. The sequence is lazy and may be consumed
// once; per-scene failures are yielded as errors without ending the sequence.
// An unreachable provider or an expired ctx is reported as
// ErrSourceUnavailable.
type SceneSource interface {
	FetchScenes(ctx context.Context, region Region, dates DateRange, maxCloudCoverPercent int) (iter.Seq2[Scene, error], error)
}

// SceneResult is one element of a materialized scene sequence.
type SceneResult struct {
	Scene Scene
	Err   error
}

// Scenes replays materialized results as a sequence.
func Scenes(results []SceneResult) iter.Seq2[Scene, error] {
	return func(yield func(Scene, error) bool) {
		for _, r := range results {
			if !yield(r.Scene, r.Err) {
				return
			}
		}
	}
}
