package media

import (
	"strings"

	"longform/internal/models"
)

// Ref is implemented by the two media ref kinds stored on a post.
type Ref interface {
	models.ImageRef | models.VideoRef
	GetToken() string
}

// Prune returns the refs whose placeholder still occurs in body, in their original order.
// Refs whose token could never be expanded are always dropped. Run it on every body write,
// before persisting.
func Prune[T Ref](body string, refs []T) []T {
	kept := make([]T, 0, len(refs))
	for _, ref := range refs {
		if !ValidToken(ref.GetToken()) {
			continue
		}
		if strings.Contains(body, placeholderOf(ref)) {
			kept = append(kept, ref)
		}
	}
	return kept
}

// PruneRefs prunes both ref lists of a post against the same body.
func PruneRefs(body string, images []models.ImageRef, videos []models.VideoRef) ([]models.ImageRef, []models.VideoRef) {
	return Prune(body, images), Prune(body, videos)
}

// StripPlaceholder removes every occurrence of placeholder from body.
func StripPlaceholder(body, placeholder string) string {
	return strings.ReplaceAll(body, placeholder, "")
}

func placeholderOf[T Ref](ref T) string {
	if _, isVideo := any(ref).(models.VideoRef); isVideo {
		return VideoPlaceholder(ref.GetToken())
	}
	return ImagePlaceholder(ref.GetToken())
}
