package extractor

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/types"
)

const twitterSyndicationURL = "https://cdn.syndication.twimg.com/tweet-result"

// Twitter tries the syndication endpoint first and the tweet page second
type Twitter struct {
	client *Client
	chain  *Chain
}

// NewTwitter creates the Twitter/X chain
func NewTwitter(client *Client, logger *zap.Logger) *Twitter {
	tw := &Twitter{client: client}
	tw.chain = NewChain(types.PlatformTwitter, logger,
		Method{Name: "syndication", Upstream: "twitter-syndication", Run: tw.fromSyndication},
		Method{Name: "page", Upstream: "twitter-page", Run: tw.fromPage},
	)
	return tw
}

func (tw *Twitter) Platform() types.Platform { return types.PlatformTwitter }

func (tw *Twitter) Chain() *Chain { return tw.chain }

// normalizeTwitterURL rewrites x.com hosts to twitter.com
func normalizeTwitterURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return strings.Replace(rawURL, "x.com", "twitter.com", 1)
	}
	host := strings.ToLower(u.Host)
	if host == "x.com" || strings.HasSuffix(host, ".x.com") {
		u.Host = strings.TrimSuffix(host, "x.com") + "twitter.com"
	}
	return u.String()
}

// QualityFromBitrate labels an mp4 variant by its bitrate in bits per second
func QualityFromBitrate(bitrate int64) string {
	switch {
	case bitrate <= 0:
		return "Unknown"
	case bitrate >= 2_000_000:
		return "1080p"
	case bitrate >= 1_000_000:
		return "720p"
	case bitrate >= 500_000:
		return "480p"
	case bitrate >= 200_000:
		return "360p"
	default:
		return "240p"
	}
}

func (tw *Twitter) Extract(ctx context.Context, rawURL string) (*types.MediaResult, error) {
	normalized := normalizeTwitterURL(rawURL)
	id := tweetID(normalized)
	if id == "" {
		return nil, invalidURL(types.PlatformTwitter, "Could not extract tweet ID from URL")
	}

	res, err := tw.chain.Run(ctx, &Input{URL: rawURL, Resolved: normalized, ID: id})
	if err != nil {
		return nil, wrapFailure(types.PlatformTwitter, err)
	}
	res.OriginalURL = rawURL
	return res, nil
}

type syndicationTweet struct {
	Text string `json:"text"`
	User struct {
		ScreenName string `json:"screen_name"`
		Name       string `json:"name"`
	} `json:"user"`
	MediaDetails []struct {
		Type          string `json:"type"`
		MediaURLHTTPS string `json:"media_url_https"`
		VideoInfo     struct {
			DurationMillis int64 `json:"duration_millis"`
			Variants       []struct {
				Bitrate     int64  `json:"bitrate"`
				ContentType string `json:"content_type"`
				URL         string `json:"url"`
			} `json:"variants"`
		} `json:"video_info"`
	} `json:"mediaDetails"`
}

func (tw *Twitter) fromSyndication(ctx context.Context, in *Input) (*types.MediaResult, error) {
	params := url.Values{}
	params.Set("id", in.ID)
	params.Set("lang", "en")
	params.Set("token", "0")

	var tweet syndicationTweet
	if err := tw.client.GetJSON(ctx, twitterSyndicationURL+"?"+params.Encode(), nil, &tweet); err != nil {
		return nil, err
	}

	if len(tweet.MediaDetails) == 0 {
		return nil, noMedia("No media found in tweet")
	}
	media := tweet.MediaDetails[0]
	if media.Type != "video" && media.Type != "animated_gif" {
		return nil, noMedia("Tweet does not contain a video")
	}

	var candidates []types.DownloadCandidate
	for _, v := range media.VideoInfo.Variants {
		if v.ContentType != "video/mp4" || v.URL == "" {
			continue
		}
		candidates = append(candidates, types.DownloadCandidate{
			URL:           v.URL,
			QualityLabel:  QualityFromBitrate(v.Bitrate),
			ApproxBitrate: v.Bitrate,
			Variant:       types.VariantVideo,
			Format:        "mp4",
		})
	}
	if len(candidates) == 0 {
		return nil, noMedia("No downloadable video found")
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ApproxBitrate > candidates[j].ApproxBitrate
	})

	kind, contentType := types.MediaVideo, "video"
	if media.Type == "animated_gif" {
		kind, contentType = types.MediaGIF, "gif"
	}

	author := tweet.User.Name
	if author == "" {
		author = tweet.User.ScreenName
	}

	return &types.MediaResult{
		SourceID:           in.ID,
		Author:             author,
		AuthorHandle:       tweet.User.ScreenName,
		Caption:            tweet.Text,
		ThumbnailURL:       media.MediaURLHTTPS,
		MediaKind:          kind,
		ContentType:        contentType,
		DownloadCandidates: candidates,
		DurationSeconds:    int(math.Round(float64(media.VideoInfo.DurationMillis) / 1000)),
	}, nil
}

func (tw *Twitter) fromPage(ctx context.Context, in *Input) (*types.MediaResult, error) {
	header := http.Header{}
	header.Set("Accept", "text/html,application/xhtml+xml")

	page, err := tw.client.GetText(ctx, in.Resolved, header)
	if err != nil {
		return nil, err
	}

	video := twitterPageVideoURL(page)
	if video == "" {
		return nil, noMedia("Could not find video URL - tweet might not contain a video")
	}

	author := twitterPageAuthor(page, in.Resolved)
	return &types.MediaResult{
		SourceID:     in.ID,
		Author:       author,
		AuthorHandle: author,
		Caption:      twitterPageText(page),
		ThumbnailURL: twitterPageThumbnail(page),
		MediaKind:    types.MediaVideo,
		ContentType:  "video",
		DownloadCandidates: []types.DownloadCandidate{
			{URL: video, QualityLabel: "Unknown", Variant: types.VariantVideo, Format: "mp4"},
		},
	}, nil
}
