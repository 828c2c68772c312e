package classifier

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tributary-ai/postgen/internal/types"
)

// DefaultCacheSize bounds the number of memoized classifications
const DefaultCacheSize = 1024

// resultCache memoizes classifications keyed by a digest of the normalized prompt
type resultCache struct {
	entries *lru.Cache[string, types.ClassificationResult]
}

func newResultCache(size int) (*resultCache, error) {
	if size <= 0 {
		return nil, nil
	}
	entries, err := lru.New[string, types.ClassificationResult](size)
	if err != nil {
		return nil, err
	}
	return &resultCache{entries: entries}, nil
}

func cacheKey(prompt string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(prompt)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func (c *resultCache) get(prompt string) (types.ClassificationResult, bool) {
	if c == nil {
		return types.ClassificationResult{}, false
	}
	return c.entries.Get(cacheKey(prompt))
}

func (c *resultCache) add(prompt string, result types.ClassificationResult) {
	if c == nil {
		return
	}
	c.entries.Add(cacheKey(prompt), result)
}

func (c *resultCache) len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
