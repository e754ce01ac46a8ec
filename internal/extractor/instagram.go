package extractor

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/types"
)

// Instagram scrapes the public post page once and runs the pattern battery on it
type Instagram struct {
	client *Client
	chain  *Chain
}

// NewInstagram creates the Instagram chain
func NewInstagram(client *Client, logger *zap.Logger) *Instagram {
	ig := &Instagram{client: client}
	ig.chain = NewChain(types.PlatformInstagram, logger,
		Method{Name: "page", Upstream: "instagram", Run: ig.fromPage},
	)
	return ig
}

func (ig *Instagram) Platform() types.Platform { return types.PlatformInstagram }

func (ig *Instagram) Chain() *Chain { return ig.chain }

// cleanInstagramURL drops the query string and guarantees a trailing slash
func cleanInstagramURL(rawURL string) string {
	clean := strings.TrimSpace(rawURL)
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	return clean
}

func (ig *Instagram) Extract(ctx context.Context, rawURL string) (*types.MediaResult, error) {
	clean := cleanInstagramURL(rawURL)
	id := instagramPostID(clean)
	if id == "" {
		return nil, invalidURL(types.PlatformInstagram, "Could not extract post ID from URL")
	}

	res, err := ig.chain.Run(ctx, &Input{URL: rawURL, Resolved: clean, ID: id})
	if err != nil {
		return nil, wrapFailure(types.PlatformInstagram, err)
	}
	res.OriginalURL = rawURL
	return res, nil
}

func (ig *Instagram) fromPage(ctx context.Context, in *Input) (*types.MediaResult, error) {
	header := http.Header{}
	header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	header.Set("Sec-Fetch-Mode", "navigate")

	page, err := ig.client.GetText(ctx, in.Resolved, header)
	if err != nil {
		return nil, err
	}

	video := instagramVideoURL(page)
	if video == "" {
		return nil, noMedia("Could not find video URL - post might be private or not a video")
	}

	return &types.MediaResult{
		SourceID:     in.ID,
		Author:       instagramAuthor(page),
		Caption:      instagramCaption(page),
		ThumbnailURL: instagramThumbnail(page),
		MediaKind:    types.MediaVideo,
		ContentType:  instagramContentType(page),
		DownloadCandidates: []types.DownloadCandidate{
			{URL: video, QualityLabel: "HD", Variant: types.VariantVideo, Format: "mp4"},
		},
	}, nil
}
