package cache

import (
	"strings"
	"sync"

	"github.com/elliotchance/orderedmap/v3"

	"whatsapp-outbound-gateway/internal/model"
)

// DefaultLimit is the default quote cache capacity
const DefaultLimit = 1000

// QuoteCache is a bounded store of recently observed messages keyed by
// chat JID + message ID. Iteration order of the backing map doubles as
// recency order: re-inserting a key moves it to the most-recent end, and
// eviction removes from the front. Lookups deliberately do not promote
// recency, so only recently sent or received messages stay quotable.
type QuoteCache struct {
	mu      sync.Mutex
	limit   int
	entries *orderedmap.OrderedMap[string, *model.CachedMessage]
}

// NewQuoteCache creates a quote cache bounded to limit entries.
// A limit of 0 or less falls back to DefaultLimit.
func NewQuoteCache(limit int) *QuoteCache {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &QuoteCache{
		limit:   limit,
		entries: orderedmap.NewOrderedMap[string, *model.CachedMessage](),
	}
}

func cacheKey(chatJID, messageID string) string {
	return model.NormalizeChatJID(chatJID) + ":" + messageID
}

// Remember stores a message as most-recently-used, evicting the oldest
// entries once the cache exceeds its bound. Messages without a chat JID,
// message ID, or content are ignored.
func (c *QuoteCache) Remember(msg *model.CachedMessage) {
	if msg == nil {
		return
	}
	messageID := strings.TrimSpace(msg.ID)
	chatJID := strings.TrimSpace(msg.ChatJID)
	if messageID == "" || chatJID == "" || msg.Message == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(chatJID, messageID)
	c.entries.Delete(key)
	c.entries.Set(key, msg)

	for c.entries.Len() > c.limit {
		oldest := c.entries.Front()
		if oldest == nil {
			break
		}
		c.entries.Delete(oldest.Key)
	}
}

// Resolve returns the cached message for (chatJID, replyToID), or nil when
// replyToID is blank or unknown. The lookup does not affect recency.
func (c *QuoteCache) Resolve(chatJID, replyToID string) *model.CachedMessage {
	replyToID = strings.TrimSpace(replyToID)
	if replyToID == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	msg, ok := c.entries.Get(cacheKey(chatJID, replyToID))
	if !ok {
		return nil
	}
	return msg
}

// Len returns the current number of cached messages
func (c *QuoteCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
