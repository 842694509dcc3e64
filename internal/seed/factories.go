package seed

import (
	"fmt"
	"strings"

	"longform/internal/media"
	"longform/internal/models"
	"longform/internal/service"
)

var youtubeIDs = []string{"dQw4w9WgXcQ", "9bZkp7q19f0", "3JZ_D3ELwOQ", "L_jWHffIx5E", "kXYiU_JCYtU"}

var positions = []string{models.PositionLeft, models.PositionCenter, models.PositionRight, models.PositionWide}

// buildPost writes a few paragraphs with one image and, half the time, one video between them.
func (s *Seeder) buildPost() service.CreatePostInput {
	count := s.faker.Number(2, 4)
	paragraphs := make([]string, 0, count+2)
	for i := 0; i < count; i++ {
		paragraphs = append(paragraphs, s.faker.Paragraph(1, 4, 12, " "))
	}

	in := service.CreatePostInput{
		Title: strings.TrimSuffix(s.faker.Sentence(s.faker.Number(3, 8)), "."),
	}

	img := models.ImageRef{
		Token:    "img-" + s.faker.LetterN(6),
		URL:      fmt.Sprintf("https://picsum.photos/seed/%s/1200/800", s.faker.UUID()),
		Alt:      s.faker.HipsterSentence(4),
		Caption:  s.faker.Sentence(6),
		Position: s.faker.RandomString(positions),
	}
	in.Images = append(in.Images, img)
	paragraphs = insertAt(paragraphs, 1, media.ImagePlaceholder(img.Token))

	if s.faker.Bool() {
		vid := models.VideoRef{
			Token: "vid-" + s.faker.LetterN(6),
			URL:   "https://www.youtube.com/watch?v=" + s.faker.RandomString(youtubeIDs),
			Title: s.faker.HipsterSentence(3),
		}
		in.Videos = append(in.Videos, vid)
		paragraphs = append(paragraphs, media.VideoPlaceholder(vid.Token))
	}

	in.Body = strings.Join(paragraphs, "\n\n")
	return in
}

func insertAt(items []string, idx int, item string) []string {
	if idx > len(items) {
		idx = len(items)
	}
	items = append(items, "")
	copy(items[idx+1:], items[idx:])
	items[idx] = item
	return items
}
