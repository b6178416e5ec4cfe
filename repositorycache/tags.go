package repositorycache

import (
	"context"
	"slices"

	"github.com/goliatone/go-query-cache/querycache"
)

// tagSet is the ordered list of extra endpoint names carried by a context.
// It never holds empty or repeated names.
type tagSet []string

type tagsKey struct{}

// WithCacheTags returns a context naming extra endpoints to invalidate when a
// write endpoint run with it succeeds. Empty and repeated names are dropped.
func WithCacheTags(ctx context.Context, endpoints ...string) context.Context {
	current := tagsFrom(ctx)
	next := current.with(endpoints...)
	if len(next) == len(current) {
		return ctx
	}
	return context.WithValue(ctx, tagsKey{}, next)
}

func tagsFrom(ctx context.Context) tagSet {
	tags, _ := ctx.Value(tagsKey{}).(tagSet)
	return tags
}

func (s tagSet) with(names ...string) tagSet {
	out := slices.Clone(s)
	for _, name := range names {
		if name == "" || slices.Contains(out, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// invalidate invalidates every tagged endpoint and returns the keys reached.
func (s tagSet) invalidate(client *querycache.Client) ([]string, error) {
	var keys []string
	for _, endpoint := range s {
		reached, err := client.InvalidatePrefix(endpoint)
		if err != nil {
			return keys, err
		}
		keys = append(keys, reached...)
	}
	return keys, nil
}
