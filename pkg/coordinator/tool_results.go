package coordinator

import (
	"github.com/orneryd/tierdb/pkg/models"
	"github.com/orneryd/tierdb/pkg/storage"
)

// InsertWebSearch stores s in tool-results.
func (c *Coordinator) InsertWebSearch(s *models.WebSearch) error {
	if s == nil {
		return storage.ErrInvalidID
	}
	return c.insert(c.toolResults, s)
}

// GetWebSearch returns the web search stored under id, or nil.
func (c *Coordinator) GetWebSearch(id models.NodeID) (*models.WebSearch, error) {
	return find[*models.WebSearch](c, id, []tierStep{fixed(c.toolResults, storage.NoTier)})
}

// InsertScrapedPage stores p in tool-results.
func (c *Coordinator) InsertScrapedPage(p *models.ScrapedPage) error {
	if p == nil {
		return storage.ErrInvalidID
	}
	return c.insert(c.toolResults, p)
}

// GetScrapedPage returns the scraped page stored under id, or nil.
func (c *Coordinator) GetScrapedPage(id models.NodeID) (*models.ScrapedPage, error) {
	return find[*models.ScrapedPage](c, id, []tierStep{fixed(c.toolResults, storage.NoTier)})
}

// ScrapedPagesByURL returns the IDs of pages scraped from url.
func (c *Coordinator) ScrapedPagesByURL(url string) ([]models.NodeID, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.toolResults.NodesByProperty("url", url)
}
