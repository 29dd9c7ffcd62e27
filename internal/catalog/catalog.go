// Package catalog maps chapters to the names of their maps.
package catalog

import (
	"fmt"
	"slices"

	"github.com/ayoisaiah/respawn/internal/apperr"
	"github.com/ayoisaiah/respawn/internal/models"
)

// MaxMapsPerChapter is the number of map slots a share token can address in
// a single chapter.
const MaxMapsPerChapter = 10

const placeholderMap = "待更新"

var (
	errTooManyMaps = &apperr.Error{
		Message: "chapter %d lists %d maps but at most %d are supported",
	}

	errDuplicateChapter = &apperr.Error{
		Message: "chapter %d is listed more than once",
	}

	errInvalidChapterNumber = &apperr.Error{
		Message: "chapter numbers must be positive, got %d",
	}

	errUnknownChapter = &apperr.Error{
		Message: "unknown chapter: EP%d",
	}

	errUnknownMap = &apperr.Error{
		Message: "EP%d has no map #%d",
	}

	errInvalidServer = &apperr.Error{
		Message: "server must be between 1 and 9, got %d",
	}
)

// Chapter is one episode of the game with its maps in display order.
type Chapter struct {
	Label  string   `mapstructure:"label"   json:"label"`
	Maps   []string `mapstructure:"maps"    json:"maps"`
	Number int      `mapstructure:"chapter" json:"chapter"`
}

// Catalog is an immutable lookup of chapters.
type Catalog struct {
	chapters map[int]Chapter
	order    []int
}

// Default returns the built-in chapter list.
func Default() []Chapter {
	chapters := []Chapter{
		{
			Number: 1,
			Label:  "EP1",
			Maps: []string{
				"夏奧雷伊西邊森林",
				"夏奧雷伊東邊森林",
				"蓮帕拉沙池塘",
				"夏奧雷伊礦山村莊",
				"水晶礦山",
			},
		},
		{
			Number: 2,
			Label:  "EP2",
			Maps: []string{
				"斯拉屋塔斯峽谷",
				"凱利高原",
				"奈普里塔斯懸崖",
				"泰內花園",
				"泰內聖堂地下1層",
				"泰內聖堂上1層",
				"泰內聖堂上2層",
			},
		},
	}

	for n := 3; n <= 10; n++ {
		chapters = append(chapters, Chapter{
			Number: n,
			Label:  fmt.Sprintf("EP%d", n),
			Maps:   []string{placeholderMap},
		})
	}

	return chapters
}

// New validates chapters and builds a Catalog from them.
func New(chapters []Chapter) (*Catalog, error) {
	c := &Catalog{
		chapters: make(map[int]Chapter, len(chapters)),
	}

	for _, ch := range chapters {
		if ch.Number < 1 {
			return nil, errInvalidChapterNumber.Fmt(ch.Number)
		}

		if _, ok := c.chapters[ch.Number]; ok {
			return nil, errDuplicateChapter.Fmt(ch.Number)
		}

		if len(ch.Maps) > MaxMapsPerChapter {
			return nil, errTooManyMaps.Fmt(ch.Number, len(ch.Maps), MaxMapsPerChapter)
		}

		if ch.Label == "" {
			ch.Label = fmt.Sprintf("EP%d", ch.Number)
		}

		ch.Maps = slices.Clone(ch.Maps)

		c.chapters[ch.Number] = ch
		c.order = append(c.order, ch.Number)
	}

	slices.Sort(c.order)

	return c, nil
}

// Chapters returns every chapter in ascending order.
func (c *Catalog) Chapters() []Chapter {
	out := make([]Chapter, 0, len(c.order))

	for _, n := range c.order {
		out = append(out, c.chapters[n])
	}

	return out
}

// Chapter returns a chapter by number.
func (c *Catalog) Chapter(n int) (Chapter, bool) {
	ch, ok := c.chapters[n]
	return ch, ok
}

// Label returns the display label of a chapter, falling back to EPn for
// chapters the catalog does not know (e.g. ones received from a room).
func (c *Catalog) Label(chapter int) string {
	if ch, ok := c.chapters[chapter]; ok {
		return ch.Label
	}

	return fmt.Sprintf("EP%d", chapter)
}

// MapName returns the name of a map by its zero based index.
func (c *Catalog) MapName(chapter, idx int) string {
	if ch, ok := c.chapters[chapter]; ok && idx >= 0 && idx < len(ch.Maps) {
		return ch.Maps[idx]
	}

	return fmt.Sprintf("Map %d", idx+1)
}

// Validate checks that key points at a known chapter, map and server.
func (c *Catalog) Validate(key models.LocationKey) error {
	ch, ok := c.chapters[key.Chapter]
	if !ok {
		return errUnknownChapter.Fmt(key.Chapter)
	}

	if key.Map < 0 || key.Map >= len(ch.Maps) {
		return errUnknownMap.Fmt(key.Chapter, key.Map+1)
	}

	if key.Server < 1 || key.Server > 9 {
		return errInvalidServer.Fmt(key.Server)
	}

	return nil
}
