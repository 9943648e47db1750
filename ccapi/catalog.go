package ccapi

import (
	"sort"
)

type ccapiError string

func (e ccapiError) Error() string {
	return string(e)
}

// ErrEndpointNotAvailable is returned by Resolve when no cataloged URL ends
// with the requested logical path.
const ErrEndpointNotAvailable = ccapiError("endpoint not available")

// Endpoint is one entry of the camera's self description: an absolute URL
// and the methods it supports.
type Endpoint struct {
	URL    string `json:"url"`
	Get    bool   `json:"get"`
	Post   bool   `json:"post"`
	Put    bool   `json:"put"`
	Delete bool   `json:"delete"`
}

// Catalog is the flattened endpoint set discovered at session bring up. The
// version tags are kept sorted ascending so that scanning the flattened set
// visits lower versions first; Resolve takes the last match, which makes the
// highest version win when the same logical path is exposed by more than one
// API version.
type Catalog struct {
	versions  []string
	byVersion map[string][]Endpoint
	urls      []string
}

// NewCatalog flattens a version-keyed capability map, as returned by the
// CCAPI root resource, into a searchable endpoint set.
func NewCatalog(byVersion map[string][]Endpoint) *Catalog {
	versions := make([]string, 0, len(byVersion))
	for v := range byVersion {
		versions = append(versions, v)
	}
	sort.Strings(versions)

	var urls []string
	for _, v := range versions {
		for _, ep := range byVersion[v] {
			urls = append(urls, ep.URL)
		}
	}

	return &Catalog{versions: versions, byVersion: byVersion, urls: urls}
}

// Contains reports whether url is a member of the catalog. This satisfies
// transport.EndpointSet.
func (c *Catalog) Contains(url string) bool {
	for _, u := range c.urls {
		if u == url {
			return true
		}
	}

	return false
}

// Resolve maps a version independent logical path, such as
// "/shooting/settings", to the concrete cataloged URL whose suffix equals
// it. A prefix or interior match is never returned. When several versions
// expose the same path the highest version wins.
func (c *Catalog) Resolve(logicalPath string) (string, error) {
	resolved := ""

	for _, u := range c.urls {
		if hasExactSuffix(u, logicalPath) {
			resolved = u
		}
	}

	if resolved == "" {
		return "", ErrEndpointNotAvailable
	}

	return resolved, nil
}

// Versions returns the API version tags present in the catalog, ascending.
func (c *Catalog) Versions() []string {
	return c.versions
}

// Export returns the catalog in its original version-keyed shape, for state
// dumps.
func (c *Catalog) Export() map[string][]Endpoint {
	out := make(map[string][]Endpoint, len(c.byVersion))
	for v, eps := range c.byVersion {
		out[v] = append([]Endpoint(nil), eps...)
	}

	return out
}

func hasExactSuffix(s, suffix string) bool {
	return len(suffix) > 0 && len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
