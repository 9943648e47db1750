package ccapi

import (
	"errors"
	"github.com/stretchr/testify/assert"
	"testing"
)

func Test_Catalog_Resolve(t *testing.T) {
	t.Run("returns the URL whose suffix exactly matches the logical path", func(t *testing.T) {
		c := NewCatalog(map[string][]Endpoint{
			"ver100": {
				{URL: "http://192.168.1.2:8080/ccapi/ver100/deviceinformation", Get: true},
				{URL: "http://192.168.1.2:8080/ccapi/ver100/shooting/settings", Get: true, Put: true},
			},
		})

		url, err := c.Resolve("/shooting/settings")

		assert.NoError(t, err)
		assert.Equal(t, "http://192.168.1.2:8080/ccapi/ver100/shooting/settings", url)
	})

	t.Run("prefers the highest version when two versions expose the same path", func(t *testing.T) {
		c := NewCatalog(map[string][]Endpoint{
			"ver110": {
				{URL: "http://cam/ccapi/ver110/shooting/settings"},
			},
			"ver100": {
				{URL: "http://cam/ccapi/ver100/shooting/settings"},
			},
		})

		url, err := c.Resolve("/shooting/settings")

		assert.NoError(t, err)
		assert.Equal(t, "http://cam/ccapi/ver110/shooting/settings", url)
	})

	t.Run("fails when no cataloged URL ends with the path", func(t *testing.T) {
		c := NewCatalog(map[string][]Endpoint{
			"ver100": {
				{URL: "http://cam/ccapi/ver100/deviceinformation"},
			},
		})

		_, err := c.Resolve("/shooting/settings")

		assert.True(t, errors.Is(err, ErrEndpointNotAvailable))
	})

	t.Run("does not treat a prefix or interior occurrence as a match", func(t *testing.T) {
		c := NewCatalog(map[string][]Endpoint{
			"ver100": {
				{URL: "http://cam/ccapi/ver100/shooting/settings/iso"},
			},
		})

		_, err := c.Resolve("/shooting/settings")

		assert.True(t, errors.Is(err, ErrEndpointNotAvailable))
	})

	t.Run("resolved URLs are always members of the catalog", func(t *testing.T) {
		c := NewCatalog(map[string][]Endpoint{
			"ver100": {
				{URL: "http://cam/ccapi/ver100/shooting/control/shutterbutton"},
			},
		})

		url, err := c.Resolve("/shooting/control/shutterbutton")

		assert.NoError(t, err)
		assert.True(t, c.Contains(url))
	})
}

func Test_Catalog_Contains(t *testing.T) {
	t.Run("only exact member URLs are contained", func(t *testing.T) {
		c := NewCatalog(map[string][]Endpoint{
			"ver100": {
				{URL: "http://cam/ccapi/ver100/deviceinformation"},
			},
		})

		assert.True(t, c.Contains("http://cam/ccapi/ver100/deviceinformation"))
		assert.False(t, c.Contains("http://cam/ccapi/ver100/deviceinfo"))
		assert.False(t, c.Contains("/deviceinformation"))
	})
}
