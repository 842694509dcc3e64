package cache

import (
	"fmt"
	"time"
)

const (
	PostKeyPrefix = "post:%d"

	// PostCacheName labels rendered-post lookups in the cache metrics.
	PostCacheName = "post"
)

// PostTTL is used when no TTL is configured.
const PostTTL = time.Minute

// PostKey is the cache key of the rendered post with the given id.
func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}
