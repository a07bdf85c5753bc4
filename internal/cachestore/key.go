package cachestore

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const hashPrefixLength = 16

// Key creates a deterministic cache key for a request identity.
// Format: METHOD_sha256(normalized_url)[:16]
func Key(method, rawURL string) string {
	hash := sha256.Sum256([]byte(NormalizeURL(rawURL)))
	return method + "_" + hex.EncodeToString(hash[:])[:hashPrefixLength]
}

// NormalizeURL normalizes a URL for cache key generation.
// Lowercase host, sorted query params, fragment dropped.
func NormalizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	query := parsed.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sortedQuery strings.Builder
	for i, k := range keys {
		if i > 0 {
			sortedQuery.WriteByte('&')
		}
		sortedQuery.WriteString(url.QueryEscape(k))
		sortedQuery.WriteByte('=')
		sortedQuery.WriteString(url.QueryEscape(query.Get(k)))
	}

	parsed.RawQuery = sortedQuery.String()
	return parsed.String()
}
