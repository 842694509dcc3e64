// Package media turns [IMAGE:token] / [VIDEO:token] placeholders stored in post bodies into
// embeddable markup and keeps a post's media refs in step with the tokens its body still uses.
//
// Everything here is a pure function of its arguments: stored bodies and ref lists are
// never modified.
package media

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"longform/internal/models"
)

// Placeholder kinds as they appear in stored text.
const (
	KindImage = "IMAGE"
	KindVideo = "VIDEO"
)

// placeholderPattern matches one placeholder. Tokens never contain brackets or whitespace.
var placeholderPattern = regexp.MustCompile(`\[(IMAGE|VIDEO):([^\[\]\s]+)\]`)

// ImagePlaceholder returns the wire form of an image placeholder.
func ImagePlaceholder(token string) string {
	return "[" + KindImage + ":" + token + "]"
}

// VideoPlaceholder returns the wire form of a video placeholder.
func VideoPlaceholder(token string) string {
	return "[" + KindVideo + ":" + token + "]"
}

// Expand replaces every placeholder whose token belongs to one of the refs with generated
// markup. Placeholders without a matching ref are left as they are.
//
// The body is scanned once, so markup produced for one placeholder is never scanned again.
func Expand(body string, images []models.ImageRef, videos []models.VideoRef) string {
	if len(images) == 0 && len(videos) == 0 {
		return body
	}

	imageByToken := make(map[string]models.ImageRef, len(images))
	for _, img := range images {
		if img.Token == "" {
			continue
		}
		if _, dup := imageByToken[img.Token]; !dup {
			imageByToken[img.Token] = img
		}
	}
	videoByToken := make(map[string]models.VideoRef, len(videos))
	for _, v := range videos {
		if v.Token == "" {
			continue
		}
		if _, dup := videoByToken[v.Token]; !dup {
			videoByToken[v.Token] = v
		}
	}

	return placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		parts := placeholderPattern.FindStringSubmatch(match)
		if len(parts) != 3 {
			return match
		}
		switch parts[1] {
		case KindImage:
			if img, ok := imageByToken[parts[2]]; ok {
				return renderImage(img)
			}
		case KindVideo:
			if v, ok := videoByToken[parts[2]]; ok {
				return renderVideo(v)
			}
		}
		return match
	})
}

// escaper covers the characters that could break out of an attribute or open markup.
// Brackets are escaped too so interpolated text can never read as a placeholder.
var escaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&#34;",
	"[", "&#91;",
	"]", "&#93;",
)

func escape(s string) string {
	return escaper.Replace(s)
}

// SanitizePosition keeps only [a-zA-Z-]; an empty result falls back to center.
func SanitizePosition(position string) string {
	var b strings.Builder
	for _, r := range position {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '-' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return models.PositionCenter
	}
	return b.String()
}

// SafeURL returns raw when it is an http(s) or site-relative URL and "" otherwise.
func SafeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		if parsed.Host == "" {
			return ""
		}
		return raw
	case "":
		if strings.HasPrefix(raw, "/") {
			return raw
		}
	}
	return ""
}

func renderImage(img models.ImageRef) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<figure class="post-image post-image--%s">`, escape(SanitizePosition(img.Position)))
	fmt.Fprintf(&b, `<img src="%s" alt="%s" loading="lazy">`, escape(SafeURL(img.URL)), escape(img.Alt))
	if img.Caption != "" {
		fmt.Fprintf(&b, `<figcaption>%s</figcaption>`, escape(img.Caption))
	}
	b.WriteString(`</figure>`)
	return b.String()
}

func renderVideo(v models.VideoRef) string {
	src, ok := EmbedURL(v)
	if !ok {
		return fmt.Sprintf(`<div class="post-video post-video--unsupported">Unsupported video platform: %s</div>`,
			escape(v.Platform))
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<figure class="post-video post-video--%s">`, escape(SanitizePosition(v.Position)))
	b.WriteString(`<div class="post-video__frame">`)
	fmt.Fprintf(&b,
		`<iframe src="%s" title="%s" allow="accelerometer; autoplay; encrypted-media; gyroscope; picture-in-picture" allowfullscreen loading="lazy"></iframe>`,
		escape(src), escape(v.Title))
	b.WriteString(`</div>`)
	if v.Caption != "" {
		fmt.Fprintf(&b, `<figcaption>%s</figcaption>`, escape(v.Caption))
	}
	b.WriteString(`</figure>`)
	return b.String()
}
