package media

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"longform/internal/models"
)

func TestExpand_NoRefsReturnsBodyUnchanged(t *testing.T) {
	t.Parallel()

	body := "Hello [IMAGE:abc] world"
	assert.Equal(t, body, Expand(body, nil, nil))
	assert.Equal(t, body, Expand(body, []models.ImageRef{}, []models.VideoRef{}))
}

func TestExpand_ImageWithCaption(t *testing.T) {
	t.Parallel()

	images := []models.ImageRef{{
		Token:    "img1",
		URL:      "https://cdn.example.com/a.png",
		Alt:      "A cat",
		Caption:  "Sleepy",
		Position: "left",
	}}

	got := Expand("Intro [IMAGE:img1] outro", images, nil)

	assert.Equal(t,
		`Intro <figure class="post-image post-image--left"><img src="https://cdn.example.com/a.png" alt="A cat" loading="lazy"><figcaption>Sleepy</figcaption></figure> outro`,
		got)
}

func TestExpand_ImageWithoutCaptionHasNoFigcaption(t *testing.T) {
	t.Parallel()

	got := Expand("[IMAGE:i]", []models.ImageRef{{Token: "i", URL: "/uploads/a.png"}}, nil)

	assert.NotContains(t, got, "figcaption")
	assert.Contains(t, got, `post-image--center`)
	assert.Contains(t, got, `src="/uploads/a.png"`)
}

func TestExpand_UnknownTokenLeftAlone(t *testing.T) {
	t.Parallel()

	images := []models.ImageRef{{Token: "known", URL: "https://x.test/a.png"}}
	got := Expand("[IMAGE:unknown] and [VIDEO:known]", images, nil)

	assert.Equal(t, "[IMAGE:unknown] and [VIDEO:known]", got)
}

func TestExpand_EveryOccurrenceReplaced(t *testing.T) {
	t.Parallel()

	images := []models.ImageRef{{Token: "t", URL: "https://x.test/a.png"}}
	got := Expand("[IMAGE:t] middle [IMAGE:t]", images, nil)

	assert.Equal(t, 2, strings.Count(got, "<figure"))
	assert.NotContains(t, got, "[IMAGE:t]")
}

func TestExpand_EscapesInterpolatedText(t *testing.T) {
	t.Parallel()

	images := []models.ImageRef{{
		Token:    "x",
		URL:      `https://x.test/a.png"onerror="alert(1)`,
		Alt:      `<script>alert(1)</script>`,
		Caption:  `"quoted" <b>`,
		Position: `left" onclick="evil`,
	}}
	got := Expand("[IMAGE:x]", images, nil)

	assert.NotContains(t, got, "<script>")
	assert.NotContains(t, got, `"onerror="`)
	assert.Contains(t, got, "&lt;script&gt;")
	assert.Contains(t, got, "&#34;quoted&#34; &lt;b&gt;")
	assert.Contains(t, got, `post-image--leftonclickevil"`)
}

func TestExpand_InterpolatedPlaceholderIsNotExpandedAgain(t *testing.T) {
	t.Parallel()

	images := []models.ImageRef{
		{Token: "a", URL: "https://x.test/a.png", Caption: "[IMAGE:b]"},
		{Token: "b", URL: "https://x.test/b.png"},
	}
	got := Expand("[IMAGE:a]", images, nil)

	assert.Equal(t, 1, strings.Count(got, "<figure"))
	assert.NotContains(t, got, "[IMAGE:b]")
	assert.Contains(t, got, "&#91;IMAGE:b&#93;")
}

func TestExpand_RejectsUnsafeImageURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"javascript:alert(1)", "data:text/html;base64,AAAA", "relative/no-slash.png"} {
		got := Expand("[IMAGE:x]", []models.ImageRef{{Token: "x", URL: raw}}, nil)
		assert.Contains(t, got, `src=""`, raw)
	}
}

func TestExpand_VideoPlatforms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		video models.VideoRef
		src   string
	}{
		{
			name:  "youtube",
			video: models.VideoRef{Token: "v", Platform: "youtube", ExternalVideoID: "dQw4w9WgXcQ"},
			src:   "https://www.youtube.com/embed/dQw4w9WgXcQ",
		},
		{
			name:  "youtube autoplay muted",
			video: models.VideoRef{Token: "v", Platform: "YouTube", ExternalVideoID: "dQw4w9WgXcQ", Autoplay: true, Muted: true},
			src:   "https://www.youtube.com/embed/dQw4w9WgXcQ?autoplay=1&mute=1",
		},
		{
			name:  "vimeo muted",
			video: models.VideoRef{Token: "v", Platform: "vimeo", ExternalVideoID: "76979871", Muted: true},
			src:   "https://player.vimeo.com/video/76979871?muted=1",
		},
		{
			name:  "dailymotion",
			video: models.VideoRef{Token: "v", Platform: "dailymotion", ExternalVideoID: "x8abc12"},
			src:   "https://www.dailymotion.com/embed/video/x8abc12",
		},
		{
			name:  "id derived from url",
			video: models.VideoRef{Token: "v", Platform: "youtube", URL: "https://youtu.be/dQw4w9WgXcQ"},
			src:   "https://www.youtube.com/embed/dQw4w9WgXcQ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Expand("[VIDEO:v]", nil, []models.VideoRef{tt.video})
			assert.Contains(t, got, `<iframe src="`+tt.src+`"`)
			assert.Contains(t, got, `class="post-video post-video--center"`)
		})
	}
}

func TestExpand_VideoIDIsPathEscaped(t *testing.T) {
	t.Parallel()

	videos := []models.VideoRef{{Token: "v", Platform: "vimeo", ExternalVideoID: "../../evil?x=1"}}
	got := Expand("[VIDEO:v]", nil, videos)

	assert.NotContains(t, got, "video/../")
	assert.Contains(t, got, "..%2F..%2Fevil%3Fx=1")
}

func TestExpand_UnsupportedPlatform(t *testing.T) {
	t.Parallel()

	videos := []models.VideoRef{{Token: "v", Platform: "tiktok<x>", ExternalVideoID: "123"}}
	got := Expand("before [VIDEO:v] after", nil, videos)

	assert.Equal(t,
		`before <div class="post-video post-video--unsupported">Unsupported video platform: tiktok&lt;x&gt;</div> after`,
		got)
}

func TestExpand_VideoCaptionAndTitle(t *testing.T) {
	t.Parallel()

	videos := []models.VideoRef{{
		Token:           "v",
		Platform:        "youtube",
		ExternalVideoID: "dQw4w9WgXcQ",
		Title:           "Talk",
		Caption:         "Keynote",
		Position:        "full-width",
	}}
	got := Expand("[VIDEO:v]", nil, videos)

	assert.Contains(t, got, `title="Talk"`)
	assert.Contains(t, got, `<figcaption>Keynote</figcaption>`)
	assert.Contains(t, got, `post-video--full-width`)
}

func TestSanitizePosition(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "center", SanitizePosition(""))
	assert.Equal(t, "center", SanitizePosition("123 !!"))
	assert.Equal(t, "full-width", SanitizePosition("full-width"))
	assert.Equal(t, "leftbad", SanitizePosition(`left"><bad`))
}

func TestSafeURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://a.test/x.png", SafeURL(" https://a.test/x.png "))
	assert.Equal(t, "http://a.test/x.png", SafeURL("http://a.test/x.png"))
	assert.Equal(t, "/img/x.png", SafeURL("/img/x.png"))
	assert.Empty(t, SafeURL("javascript:alert(1)"))
	assert.Empty(t, SafeURL("ftp://a.test/x"))
	assert.Empty(t, SafeURL("https://"))
	assert.Empty(t, SafeURL(""))
}
