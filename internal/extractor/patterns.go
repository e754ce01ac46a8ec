package extractor

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

// Each pattern list is tried in order and the first non-empty capture wins.
// Lists are kept separate so a broken pattern for one field never affects another.
var (
	tiktokIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/video/(\d+)`),
		regexp.MustCompile(`/v/(\d+)`),
		regexp.MustCompile(`[?&]v=(\d+)`),
	}

	ssstikTokenPattern  = regexp.MustCompile(`tt:\s*'([^']+)'`)
	ssstikAuthorPattern = regexp.MustCompile(`@([a-zA-Z0-9_.]+)`)

	instagramPostIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/reel/([A-Za-z0-9_-]+)`),
		regexp.MustCompile(`/p/([A-Za-z0-9_-]+)`),
		regexp.MustCompile(`/tv/([A-Za-z0-9_-]+)`),
	}

	instagramVideoPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"video_url"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`"contentUrl"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`property="og:video"\s+content="([^"]+)"`),
		regexp.MustCompile(`content="([^"]+)"\s+property="og:video"`),
		regexp.MustCompile(`"playback_url"\s*:\s*"([^"]+)"`),
	}

	instagramThumbnailPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"thumbnail_url"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`"display_url"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`property="og:image"\s+content="([^"]+)"`),
		regexp.MustCompile(`content="([^"]+)"\s+property="og:image"`),
	}

	instagramCaptionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"caption"\s*:\s*\{[^}]*"text"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`property="og:description"\s+content="([^"]+)"`),
		regexp.MustCompile(`content="([^"]+)"\s+property="og:description"`),
	}

	instagramAuthorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"username"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`"owner"\s*:\s*\{[^}]*"username"\s*:\s*"([^"]+)"`),
	}

	tweetIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/status/(\d+)`),
		regexp.MustCompile(`/statuses/(\d+)`),
	}

	twitterPageVideoPatterns = []*regexp.Regexp{
		regexp.MustCompile(`property="og:video:url"\s+content="([^"]+)"`),
		regexp.MustCompile(`property="og:video"\s+content="([^"]+)"`),
		regexp.MustCompile(`"video_url"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`(https://video\.twimg\.com/[^"'\s]+\.mp4[^"'\s]*)`),
	}

	twitterPageThumbnailPatterns = []*regexp.Regexp{
		regexp.MustCompile(`property="og:image"\s+content="([^"]+)"`),
		regexp.MustCompile(`content="([^"]+)"\s+property="og:image"`),
	}

	twitterPageAuthorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"screen_name"\s*:\s*"([A-Za-z0-9_]+)"`),
		regexp.MustCompile(`@([A-Za-z0-9_]+)`),
	}

	twitterPageTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`property="og:description"\s+content="([^"]+)"`),
		regexp.MustCompile(`content="([^"]+)"\s+property="og:description"`),
	}

	twitterHandleInPath = regexp.MustCompile(`(?:twitter|x)\.com/([A-Za-z0-9_]+)/status`)

	youTubeIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/v/|youtube\.com/shorts/)([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`^([a-zA-Z0-9_-]{11})$`),
	}

	unicodeEscape = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)
)

// firstMatch returns the first capture group of the first pattern that matches s
func firstMatch(patterns []*regexp.Regexp, s string) string {
	if s == "" {
		return ""
	}
	for _, re := range patterns {
		if m := re.FindStringSubmatch(s); len(m) > 1 && m[1] != "" {
			return m[1]
		}
	}
	return ""
}

func decodeUnicodeEscapes(s string) string {
	return unicodeEscape.ReplaceAllStringFunc(s, func(m string) string {
		r, err := strconv.ParseUint(m[2:], 16, 32)
		if err != nil {
			return m
		}
		return string(rune(r))
	})
}

// unescapeURL undoes JSON and HTML escaping of a URL scraped from page source
func unescapeURL(s string) string {
	if s == "" {
		return ""
	}
	s = decodeUnicodeEscapes(s)
	s = strings.ReplaceAll(s, `\/`, "/")
	s = strings.ReplaceAll(s, `\`, "")
	return html.UnescapeString(s)
}

// decodeText undoes JSON and HTML escaping of free text
func decodeText(s string) string {
	if s == "" {
		return ""
	}
	s = decodeUnicodeEscapes(s)
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\"`, `"`)
	return strings.TrimSpace(html.UnescapeString(s))
}

func tiktokVideoID(rawURL string) string {
	return firstMatch(tiktokIDPatterns, rawURL)
}

func ssstikToken(page string) string {
	return firstMatch([]*regexp.Regexp{ssstikTokenPattern}, page)
}

func ssstikAuthor(fragment string) string {
	return firstMatch([]*regexp.Regexp{ssstikAuthorPattern}, fragment)
}

func instagramPostID(rawURL string) string {
	return firstMatch(instagramPostIDPatterns, rawURL)
}

func instagramVideoURL(page string) string {
	return unescapeURL(firstMatch(instagramVideoPatterns, page))
}

func instagramThumbnail(page string) string {
	return unescapeURL(firstMatch(instagramThumbnailPatterns, page))
}

func instagramCaption(page string) string {
	return decodeText(firstMatch(instagramCaptionPatterns, page))
}

func instagramAuthor(page string) string {
	return firstMatch(instagramAuthorPatterns, page)
}

// instagramContentType classifies the post from markers in its page
func instagramContentType(page string) string {
	switch {
	case strings.Contains(page, "/reel/") || strings.Contains(page, `"is_video":true`):
		return "reel"
	case strings.Contains(page, "/p/"):
		return "post"
	default:
		return "unknown"
	}
}

func tweetID(rawURL string) string {
	return firstMatch(tweetIDPatterns, rawURL)
}

func twitterPageVideoURL(page string) string {
	return unescapeURL(firstMatch(twitterPageVideoPatterns, page))
}

func twitterPageThumbnail(page string) string {
	return unescapeURL(firstMatch(twitterPageThumbnailPatterns, page))
}

func twitterPageAuthor(page, tweetURL string) string {
	if author := firstMatch(twitterPageAuthorPatterns, page); author != "" {
		return author
	}
	return firstMatch([]*regexp.Regexp{twitterHandleInPath}, tweetURL)
}

func twitterPageText(page string) string {
	return decodeText(firstMatch(twitterPageTextPatterns, page))
}

func youTubeVideoID(rawURL string) string {
	return firstMatch(youTubeIDPatterns, strings.TrimSpace(rawURL))
}
