package pdfsource

import "sync"

// Cached memoizes text and glyphs so the strategies and the table detector parse each
// page once.
func Cached(page Page) Page {
	if _, ok := page.(*cachedPage); ok {
		return page
	}
	return &cachedPage{Page: page}
}

type cachedPage struct {
	Page

	textOnce  sync.Once
	text      string
	textErr   error
	glyphOnce sync.Once
	glyphs    []Glyph
	glyphErr  error
}

func (c *cachedPage) PlainText() (string, error) {
	c.textOnce.Do(func() {
		c.text, c.textErr = c.Page.PlainText()
	})
	return c.text, c.textErr
}

func (c *cachedPage) Glyphs() ([]Glyph, error) {
	c.glyphOnce.Do(func() {
		c.glyphs, c.glyphErr = c.Page.Glyphs()
	})
	return c.glyphs, c.glyphErr
}
