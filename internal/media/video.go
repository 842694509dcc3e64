package media

import (
	"net/url"
	"regexp"
	"strings"

	"longform/internal/models"
)

// Supported video platforms.
const (
	PlatformYouTube     = "youtube"
	PlatformVimeo       = "vimeo"
	PlatformDailymotion = "dailymotion"
)

var (
	youTubeIDPattern     = regexp.MustCompile(`^[A-Za-z0-9_-]{6,20}$`)
	vimeoIDPattern       = regexp.MustCompile(`^[0-9]+$`)
	dailymotionIDPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// NormalizePlatform lower-cases and trims a platform name.
func NormalizePlatform(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}

// IsSupportedPlatform reports whether embeds can be generated for the platform.
func IsSupportedPlatform(platform string) bool {
	switch NormalizePlatform(platform) {
	case PlatformYouTube, PlatformVimeo, PlatformDailymotion:
		return true
	}
	return false
}

// EmbedURL builds the iframe source for a video ref. ok is false only for an
// unrecognized platform; a missing video id yields an empty source.
func EmbedURL(v models.VideoRef) (src string, ok bool) {
	platform := NormalizePlatform(v.Platform)
	if !IsSupportedPlatform(platform) {
		return "", false
	}

	id := strings.TrimSpace(v.ExternalVideoID)
	if id == "" {
		if p, parsedID, parsed := ParseVideoURL(v.URL); parsed && p == platform {
			id = parsedID
		}
	}
	if id == "" {
		return "", true
	}
	id = url.PathEscape(id)

	params := url.Values{}
	switch platform {
	case PlatformYouTube:
		src = "https://www.youtube.com/embed/" + id
		if v.Autoplay {
			params.Set("autoplay", "1")
		}
		if v.Muted {
			params.Set("mute", "1")
		}
	case PlatformVimeo:
		src = "https://player.vimeo.com/video/" + id
		if v.Autoplay {
			params.Set("autoplay", "1")
		}
		if v.Muted {
			params.Set("muted", "1")
		}
	case PlatformDailymotion:
		src = "https://www.dailymotion.com/embed/video/" + id
		if v.Autoplay {
			params.Set("autoplay", "1")
		}
		if v.Muted {
			params.Set("mute", "1")
		}
	}
	if len(params) > 0 {
		src += "?" + params.Encode()
	}
	return src, true
}

// ParseVideoURL derives the platform and video id from a watch/share/embed URL.
func ParseVideoURL(raw string) (platform, id string, ok bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return "", "", false
	}
	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := pathSegments(parsed.Path)

	switch host {
	case "youtube.com", "youtube-nocookie.com", "music.youtube.com":
		if len(segments) == 1 && segments[0] == "watch" {
			id = parsed.Query().Get("v")
		} else if len(segments) >= 2 {
			switch segments[0] {
			case "embed", "shorts", "live", "v":
				id = segments[1]
			}
		}
		return validID(PlatformYouTube, id, youTubeIDPattern)
	case "youtu.be":
		if len(segments) >= 1 {
			id = segments[0]
		}
		return validID(PlatformYouTube, id, youTubeIDPattern)
	case "vimeo.com", "player.vimeo.com":
		// vimeo.com/123, vimeo.com/channels/staffpicks/123, player.vimeo.com/video/123
		for i := len(segments) - 1; i >= 0; i-- {
			if vimeoIDPattern.MatchString(segments[i]) {
				id = segments[i]
				break
			}
		}
		return validID(PlatformVimeo, id, vimeoIDPattern)
	case "dailymotion.com":
		for i := 0; i < len(segments)-1; i++ {
			if segments[i] == "video" {
				id = segments[i+1]
				break
			}
		}
		// Share links append a slug: x8abc12_some-title.
		if idx := strings.Index(id, "_"); idx > 0 {
			id = id[:idx]
		}
		return validID(PlatformDailymotion, id, dailymotionIDPattern)
	case "dai.ly":
		if len(segments) >= 1 {
			id = segments[0]
		}
		return validID(PlatformDailymotion, id, dailymotionIDPattern)
	}
	return "", "", false
}

func validID(platform, id string, pattern *regexp.Regexp) (string, string, bool) {
	if !pattern.MatchString(id) {
		return "", "", false
	}
	return platform, id, true
}

func pathSegments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
