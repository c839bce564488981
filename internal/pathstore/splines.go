package pathstore

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Key layout for imported splines:
//
//	memory/users/{user}/splines/{doc}/meta
//	memory/users/{user}/splines/{doc}/geometries/{nnnn}-{slug}
//	memory/users/{user}/splines/by_hash/{hash}/{doc}

// SplinesPrefix is the root of a user's imported splines.
func SplinesPrefix(userID string) string {
	return fmt.Sprintf("memory/users/%s/splines", userID)
}

// DocPrefix is the root of one imported document.
func DocPrefix(userID, docID string) string {
	return SplinesPrefix(userID) + "/" + docID
}

// MetaKey holds the document summary.
func MetaKey(userID, docID string) string {
	return DocPrefix(userID, docID) + "/meta"
}

// GeometryKey holds one spline. The index prefix keeps library order and
// keeps keys unique when ids slug to the same value.
func GeometryKey(userID, docID string, index int, geomID string) string {
	slug := Slugify(geomID)
	if slug == "" {
		slug = "geometry"
	}
	return fmt.Sprintf("%s/geometries/%04d-%s", DocPrefix(userID, docID), index, slug)
}

// HashKey indexes a document by content hash for duplicate detection.
func HashKey(userID, contentHash, docID string) string {
	return fmt.Sprintf("%s/by_hash/%s/%s", SplinesPrefix(userID), contentHash, docID)
}

// FindDuplicate reports the doc id already stored for contentHash, if any.
func (c *Client) FindDuplicate(ctx context.Context, userID, contentHash string) (string, bool, error) {
	prefix := fmt.Sprintf("%s/by_hash/%s", SplinesPrefix(userID), contentHash)
	children, err := c.ListChildren(ctx, prefix, 1)
	if err != nil {
		return "", false, err
	}
	if len(children) == 0 {
		return "", false, nil
	}
	// Keys come back dot-separated; the doc id is the last segment.
	parts := strings.Split(children[0].Key, ".")
	return parts[len(parts)-1], true, nil
}

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9-]`)
	dashRuns     = regexp.MustCompile(`-+`)
)

// Slugify converts a string to a path-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = dashRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}
