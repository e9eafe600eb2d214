package s3

import (
	"context"
	"fmt"
	"strings"

	"github.com/justapithecus/wrangle/wrangle"
)

const scheme = "s3://"

// Source selects objects either by prefix or by explicit locators. The zero
// Source is invalid.
type Source struct {
	prefix   string
	paths    []string
	isPrefix bool
}

// Prefix selects every object whose locator starts with p, e.g.
// "s3://bucket/dir/". Listing happens when the operation runs.
func Prefix(p string) Source {
	return Source{prefix: p, isPrefix: true}
}

// Paths selects exactly the given object locators. An empty list is valid
// and selects nothing.
func Paths(locators ...string) Source {
	if locators == nil {
		locators = []string{}
	}
	return Source{paths: locators}
}

// IsPrefix reports whether s is a prefix source.
func (s Source) IsPrefix() bool { return s.isPrefix }

func (s Source) String() string {
	switch {
	case s.isPrefix:
		return s.prefix
	case s.paths != nil:
		return fmt.Sprintf("%d paths", len(s.paths))
	default:
		return "<invalid source>"
	}
}

// ParseLocator splits "s3://bucket/key" into bucket and key. Both parts
// must be non-empty.
func ParseLocator(locator string) (bucket, key string, err error) {
	bucket, key, err = parsePrefix(locator)
	if err != nil {
		return "", "", err
	}
	if key == "" {
		return "", "", fmt.Errorf("%w: locator %q has no key", wrangle.ErrInvalidArgument, locator)
	}
	return bucket, key, nil
}

// parsePrefix is ParseLocator allowing an empty key, so "s3://bucket" and
// "s3://bucket/" address the whole bucket.
func parsePrefix(locator string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(locator, scheme)
	if !ok {
		return "", "", fmt.Errorf("%w: locator %q must start with %s", wrangle.ErrInvalidArgument, locator, scheme)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%w: locator %q has no bucket", wrangle.ErrInvalidArgument, locator)
	}
	return bucket, key, nil
}

func locator(bucket, key string) string {
	return scheme + bucket + "/" + key
}

// expand resolves a Source to object locators. Prefix sources are listed;
// path sources are returned unchanged.
func (c *Client) expand(ctx context.Context, src Source) ([]string, error) {
	switch {
	case src.isPrefix:
		return c.ListObjects(ctx, src.prefix)
	case src.paths != nil:
		return src.paths, nil
	default:
		return nil, fmt.Errorf("%w: source must be a prefix or a list of paths", wrangle.ErrInvalidArgumentType)
	}
}

// bucketKeys is one bucket's share of a locator list.
type bucketKeys struct {
	bucket string
	keys   []string
}

// groupByBucket splits locators per bucket, keeping first-seen bucket order
// and the input order of keys within each bucket.
func groupByBucket(locators []string) ([]bucketKeys, error) {
	var groups []bucketKeys
	index := make(map[string]int)
	for _, loc := range locators {
		bucket, key, err := ParseLocator(loc)
		if err != nil {
			return nil, err
		}
		i, ok := index[bucket]
		if !ok {
			i = len(groups)
			index[bucket] = i
			groups = append(groups, bucketKeys{bucket: bucket})
		}
		groups[i].keys = append(groups[i].keys, key)
	}
	return groups, nil
}

// chunk splits keys into slices of at most size elements.
func chunk(keys []string, size int) [][]string {
	var chunks [][]string
	for len(keys) > size {
		chunks = append(chunks, keys[:size:size])
		keys = keys[size:]
	}
	if len(keys) > 0 {
		chunks = append(chunks, keys)
	}
	return chunks
}

// withSlash returns p with exactly one trailing slash.
func withSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}
