package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayoisaiah/respawn/internal/models"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := New(Default())
	require.NoError(t, err)

	chapters := c.Chapters()
	require.Len(t, chapters, 10)
	assert.Len(t, chapters[0].Maps, 5)
	assert.Len(t, chapters[1].Maps, 7)
	assert.Equal(t, "EP10", chapters[9].Label)

	assert.Equal(t, "凱利高原", c.MapName(2, 1))
	assert.Equal(t, "Map 3", c.MapName(42, 2))
	assert.Equal(t, "EP42", c.Label(42))
}

func TestNewRejectsInvalidChapters(t *testing.T) {
	_, err := New([]Chapter{{Number: 1}, {Number: 1}})
	assert.ErrorIs(t, err, errDuplicateChapter)

	_, err = New([]Chapter{{Number: 0}})
	assert.ErrorIs(t, err, errInvalidChapterNumber)

	_, err = New([]Chapter{{Number: 3, Maps: make([]string, 11)}})
	assert.ErrorIs(t, err, errTooManyMaps)
}

func TestValidate(t *testing.T) {
	c, err := New(Default())
	require.NoError(t, err)

	assert.NoError(t, c.Validate(models.LocationKey{Chapter: 2, Map: 6, Server: 3}))
	assert.ErrorIs(t, c.Validate(models.LocationKey{Chapter: 2, Map: 7, Server: 3}), errUnknownMap)
	assert.ErrorIs(t, c.Validate(models.LocationKey{Chapter: 11, Map: 0, Server: 3}), errUnknownChapter)
	assert.ErrorIs(t, c.Validate(models.LocationKey{Chapter: 1, Map: 0, Server: 0}), errInvalidServer)
}
