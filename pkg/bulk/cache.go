package bulk

import "fmt"

// VersionCache remembers the last token observed for each document. It is
// owned by one client and is not safe for concurrent use.
type VersionCache struct {
	tokens map[string]string
}

// NewVersionCache returns an empty cache
func NewVersionCache() *VersionCache {
	return &VersionCache{tokens: make(map[string]string)}
}

// Get returns the token of id. It panics with an error wrapping
// ErrUnknownVersion if id was never observed.
func (c *VersionCache) Get(id string) string {
	tok, ok := c.tokens[id]
	if !ok {
		panic(fmt.Errorf("%w: %s", ErrUnknownVersion, id))
	}
	return tok
}

// TryGet returns the token of id, if known
func (c *VersionCache) TryGet(id string) (string, bool) {
	tok, ok := c.tokens[id]
	return tok, ok
}

// Update records token as the current version of id
func (c *VersionCache) Update(id, token string) {
	c.tokens[id] = token
}

// Remove forgets id
func (c *VersionCache) Remove(id string) {
	delete(c.tokens, id)
}

// Len returns the number of known documents
func (c *VersionCache) Len() int {
	return len(c.tokens)
}

// expected returns the precondition for id: a copy of its token, or nil
func (c *VersionCache) expected(id string) *string {
	tok, ok := c.tokens[id]
	if !ok {
		return nil
	}
	return &tok
}

// merge applies a response's token map: a token updates, null removes
func (c *VersionCache) merge(etags map[string]*string) {
	for id, tok := range etags {
		if tok == nil {
			c.Remove(id)
		} else {
			c.Update(id, *tok)
		}
	}
}
