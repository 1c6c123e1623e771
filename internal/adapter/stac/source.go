package stac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
)

const (
	pageLimit = 100
	maxPages  = 100
)

// ErrSequenceConsumed is yielded when a scene sequence is iterated twice.
var ErrSequenceConsumed = errors.New("scene sequence already consumed")

// Source implements domain.SceneSource over a STAC API item search.
type Source struct {
	session    *Session
	collection string
	loader     *Loader
	logger     *slog.Logger
}

// NewSource creates a Source searching one collection.
func NewSource(session *Session, collection string, loader *Loader, logger *slog.Logger) *Source {
	return &Source{session: session, collection: collection, loader: loader, logger: logger}
}

// FetchScenes searches for items over the region's bounding box and returns
// a single-use sequence that downloads each item's assets as it is consumed.
func (s *Source) FetchScenes(ctx context.Context, region domain.Region, dates domain.DateRange, maxCloudCoverPercent int) (iter.Seq2[domain.Scene, error], error) {
	if maxCloudCoverPercent < 0 || maxCloudCoverPercent > 100 {
		return nil, fmt.Errorf("max cloud cover %d outside [0, 100]", maxCloudCoverPercent)
	}

	b := region.Bound()
	req := searchRequest{
		Collections: []string{s.collection},
		BBox:        [4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()},
		Datetime:    datetimeInterval(dates),
		Limit:       pageLimit,
		Query: map[string]any{
			"eo:cloud_cover": map[string]any{"lte": maxCloudCoverPercent},
		},
	}
	items, err := s.search(ctx, req)
	if err != nil {
		return nil, err
	}

	items = slices.DeleteFunc(items, func(it item) bool {
		return !dates.Contains(it.Properties.Datetime) || it.cloudCover() > float64(maxCloudCoverPercent)
	})
	slices.SortFunc(items, func(a, b item) int {
		if c := domain.Day(a.Properties.Datetime).Compare(domain.Day(b.Properties.Datetime)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	s.logger.Debug("stac search complete", "collection", s.collection, "dates", dates.String(), "items", len(items))

	var used atomic.Bool
	return func(yield func(domain.Scene, error) bool) {
		if used.Swap(true) {
			yield(domain.Scene{}, ErrSequenceConsumed)
			return
		}
		for _, it := range items {
			if err := ctx.Err(); err != nil {
				yield(domain.Scene{}, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err))
				return
			}
			scene, err := s.loader.Load(ctx, it, region)
			if !yield(scene, err) {
				return
			}
		}
	}, nil
}

// search runs an item search and follows next links until exhausted.
func (s *Source) search(ctx context.Context, req searchRequest) ([]item, error) {
	target, err := s.session.resolve("search")
	if err != nil {
		return nil, err
	}
	method, body := http.MethodPost, any(req)

	var items []item
	for page := range maxPages {
		var coll itemCollection
		if err := s.session.sendJSON(ctx, method, target, body, "search", &coll); err != nil {
			return nil, fmt.Errorf("search %s page %d: %w", s.collection, page+1, err)
		}
		items = append(items, coll.Features...)

		next, ok := nextLink(coll.Links)
		if !ok || len(coll.Features) == 0 {
			return items, nil
		}
		if target, err = s.session.resolve(next.Href); err != nil {
			return nil, err
		}
		if method, body, err = nextRequest(next, body); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("search %s: more than %d pages", s.collection, maxPages)
}

func nextLink(links []link) (link, bool) {
	for _, l := range links {
		if l.Rel == "next" {
			return l, true
		}
	}
	return link{}, false
}

// nextRequest derives the method and body of the request a next link
// describes. A POST link without a body repeats the previous body; with
// merge set, its body overrides fields of the previous one.
func nextRequest(l link, prev any) (string, any, error) {
	if !strings.EqualFold(l.Method, http.MethodPost) {
		return http.MethodGet, nil, nil
	}
	if len(l.Body) == 0 {
		return http.MethodPost, prev, nil
	}
	if !l.Merge || prev == nil {
		return http.MethodPost, l.Body, nil
	}

	merged := make(map[string]any)
	raw, err := json.Marshal(prev)
	if err != nil {
		return "", nil, fmt.Errorf("encode search body: %w", err)
	}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return "", nil, fmt.Errorf("decode search body: %w", err)
	}
	var override map[string]any
	if err := json.Unmarshal(l.Body, &override); err != nil {
		return "", nil, fmt.Errorf("decode next link body: %w", err)
	}
	maps.Copy(merged, override)
	return http.MethodPost, merged, nil
}

// datetimeInterval renders an inclusive day range as an RFC 3339 interval.
func datetimeInterval(d domain.DateRange) string {
	end := d.End.Add(24*time.Hour - time.Second)
	return d.Start.Format(time.RFC3339) + "/" + end.Format(time.RFC3339)
}
