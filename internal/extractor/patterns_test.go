package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTikTokVideoID(t *testing.T) {
	assert.Equal(t, "7301234567890123456", tiktokVideoID("https://www.tiktok.com/@someone/video/7301234567890123456?lang=en"))
	assert.Equal(t, "123", tiktokVideoID("https://m.tiktok.com/v/123.html"))
	assert.Equal(t, "456", tiktokVideoID("https://www.tiktok.com/share?v=456"))
	assert.Empty(t, tiktokVideoID("https://vt.tiktok.com/ZSf3vk9YH/"))
	assert.Empty(t, tiktokVideoID(""))
}

func TestInstagramExtractors(t *testing.T) {
	page := `<html><head>
<meta property="og:image" content="https://scontent.cdninstagram.com/thumb.jpg?a=1&amp;b=2" />
<meta content="Sunset &amp; waves &#039;24" property="og:description" />
</head><script>{"owner":{"id":"1","username":"surfer"},"video_url":"https:\/\/scontent.cdninstagram.com\/v.mp4?efg=x&oh=y","is_video":true}</script></html>`

	assert.Equal(t, "https://scontent.cdninstagram.com/v.mp4?efg=x&oh=y", instagramVideoURL(page))
	assert.Equal(t, "https://scontent.cdninstagram.com/thumb.jpg?a=1&b=2", instagramThumbnail(page))
	assert.Equal(t, "Sunset & waves '24", instagramCaption(page))
	assert.Equal(t, "surfer", instagramAuthor(page))
	assert.Equal(t, "reel", instagramContentType(page))
}

func TestInstagramPatternOrder(t *testing.T) {
	// og:video is only used when no JSON video_url is present
	page := `<meta property="og:video" content="https://cdn/og.mp4" />"contentUrl":"https://cdn/ld.mp4"`
	assert.Equal(t, "https://cdn/ld.mp4", instagramVideoURL(page))

	assert.Equal(t, "https://cdn/og.mp4", instagramVideoURL(`<meta property="og:video" content="https://cdn/og.mp4" />`))
	assert.Empty(t, instagramVideoURL(`<html>image post</html>`))
	assert.Equal(t, "unknown", instagramContentType(`<html></html>`))
	assert.Equal(t, "post", instagramContentType(`<a href="/p/abc/">`))
}

func TestInstagramPostID(t *testing.T) {
	assert.Equal(t, "C1aB-2_x", instagramPostID("https://www.instagram.com/reel/C1aB-2_x/"))
	assert.Equal(t, "Cxyz", instagramPostID("https://www.instagram.com/p/Cxyz/"))
	assert.Equal(t, "B123", instagramPostID("https://www.instagram.com/tv/B123/"))
	assert.Empty(t, instagramPostID("https://www.instagram.com/someone/"))
}

func TestTwitterPageExtractors(t *testing.T) {
	page := `<meta property="og:video:url" content="https://video.twimg.com/ext_tw_video/1/pu/vid/720x1280/a.mp4?tag=12&amp;x=1">
<meta property="og:image" content="https://pbs.twimg.com/thumb.jpg">
<meta property="og:description" content="Look at this &quot;clip&quot;">`

	assert.Equal(t, "https://video.twimg.com/ext_tw_video/1/pu/vid/720x1280/a.mp4?tag=12&x=1", twitterPageVideoURL(page))
	assert.Equal(t, "https://pbs.twimg.com/thumb.jpg", twitterPageThumbnail(page))
	assert.Equal(t, `Look at this "clip"`, twitterPageText(page))
	assert.Equal(t, "jack", twitterPageAuthor(page, "https://twitter.com/jack/status/20"))

	bare := `<script>var src = "https://video.twimg.com/amplify_video/9/vid/avc1/1280x720/b.mp4?tag=16";</script>`
	assert.Equal(t, "https://video.twimg.com/amplify_video/9/vid/avc1/1280x720/b.mp4?tag=16", twitterPageVideoURL(bare))
}

func TestTweetID(t *testing.T) {
	assert.Equal(t, "123", tweetID("https://twitter.com/user/status/123"))
	assert.Equal(t, "456", tweetID("https://twitter.com/user/statuses/456"))
	assert.Empty(t, tweetID("https://twitter.com/user"))
}

func TestYouTubeVideoID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?t=10", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/channel/abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, youTubeVideoID(tt.in), tt.in)
	}
}

func TestSsstikToken(t *testing.T) {
	assert.Equal(t, "a1b2c3", ssstikToken(`<script>s_tt = ''; tt:'a1b2c3', other</script>`))
	assert.Empty(t, ssstikToken("<html></html>"))
}
