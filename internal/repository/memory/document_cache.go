package memory

import (
	"strconv"
	"time"

	"legal-review-client/internal/api"

	"github.com/patrickmn/go-cache"
)

// DocumentCache keeps fetched document details so reselecting a document
// does not hit the backend again.
type DocumentCache struct {
	cache *cache.Cache
}

func NewDocumentCache(ttl time.Duration) *DocumentCache {
	// Expired details are purged every ttl/2.
	c := cache.New(ttl, ttl/2)
	return &DocumentCache{
		cache: c,
	}
}

func key(docID int) string {
	return strconv.Itoa(docID)
}

func (r *DocumentCache) Save(doc *api.DocumentDetail) {
	r.cache.Set(key(doc.DocID), doc, cache.DefaultExpiration)
}

func (r *DocumentCache) Get(docID int) (*api.DocumentDetail, bool) {
	if x, found := r.cache.Get(key(docID)); found {
		return x.(*api.DocumentDetail), true
	}
	return nil, false
}

func (r *DocumentCache) Delete(docID int) {
	r.cache.Delete(key(docID))
}

func (r *DocumentCache) Flush() {
	r.cache.Flush()
}
