package extractor

import (
	"context"
	"fmt"
	"math"
	"net/url"

	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/types"
)

const (
	youTubeOEmbedAPI = "https://www.youtube.com/oembed"
	youTubeThumbBase = "https://img.youtube.com/vi"
)

// YouTube extracts the best audio stream of a video
type YouTube struct {
	client *Client
	ytdlp  *YtDlp
	chain  *Chain
	logger *zap.Logger
}

// NewYouTube creates the YouTube audio chain
func NewYouTube(client *Client, ytdlp *YtDlp, logger *zap.Logger) *YouTube {
	if logger == nil {
		logger = zap.NewNop()
	}
	yt := &YouTube{client: client, ytdlp: ytdlp, logger: logger}
	yt.chain = NewChain(types.PlatformYouTube, logger,
		Method{Name: "yt-dlp", Upstream: "yt-dlp-info", Run: yt.fromVideoInfo},
		Method{Name: "yt-dlp-url", Upstream: "yt-dlp-url", Run: yt.fromDirectURL},
	)
	return yt
}

func (yt *YouTube) Platform() types.Platform { return types.PlatformYouTube }

func (yt *YouTube) Chain() *Chain { return yt.chain }

func watchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

func (yt *YouTube) Extract(ctx context.Context, rawURL string) (*types.MediaResult, error) {
	id := youTubeVideoID(rawURL)
	if id == "" {
		return nil, invalidURL(types.PlatformYouTube, "Invalid YouTube URL")
	}

	res, err := yt.chain.Run(ctx, &Input{URL: rawURL, Resolved: watchURL(id), ID: id})
	if err != nil {
		return nil, wrapFailure(types.PlatformYouTube, err)
	}
	res.SourceID = id
	res.ThumbnailURL = fmt.Sprintf("%s/%s/maxresdefault.jpg", youTubeThumbBase, id)
	res.ThumbnailHQURL = fmt.Sprintf("%s/%s/hqdefault.jpg", youTubeThumbBase, id)
	res.OriginalURL = rawURL
	return res, nil
}

func (yt *YouTube) fromVideoInfo(ctx context.Context, in *Input) (*types.MediaResult, error) {
	info, err := yt.ytdlp.VideoInfo(ctx, in.Resolved)
	if err != nil {
		return nil, err
	}

	best, ok := BestAudio(info.Formats)
	if !ok {
		return nil, noMedia("no audio-only format available")
	}

	author := info.Uploader
	if author == "" {
		author = info.Channel
	}
	kbps := int64(math.Round(best.audioBitrate()))

	return &types.MediaResult{
		Author:          author,
		Caption:         info.Title,
		MediaKind:       types.MediaAudio,
		DurationSeconds: int(math.Round(info.Duration)),
		DownloadCandidates: []types.DownloadCandidate{{
			URL:           best.URL,
			QualityLabel:  fmt.Sprintf("%dkbps", kbps),
			ApproxBitrate: kbps * 1000,
			Variant:       types.VariantAudio,
			Format:        best.Ext,
			Codec:         best.ACodec,
		}},
	}, nil
}

// fromDirectURL combines oEmbed metadata with a narrow yt-dlp URL lookup.
// Missing metadata is tolerated; a missing audio URL is not.
func (yt *YouTube) fromDirectURL(ctx context.Context, in *Input) (*types.MediaResult, error) {
	var meta oEmbedResponse
	endpoint := youTubeOEmbedAPI + "?url=" + url.QueryEscape(in.Resolved) + "&format=json"
	if err := yt.client.GetJSON(ctx, endpoint, nil, &meta); err != nil {
		yt.logger.Debug("YouTube oEmbed lookup failed", zap.String("id", in.ID), zap.Error(err))
	}

	audioURL, err := yt.ytdlp.AudioURL(ctx, in.Resolved)
	if err != nil {
		return nil, err
	}

	return &types.MediaResult{
		Author:    meta.AuthorName,
		AuthorURL: meta.AuthorURL,
		Caption:   meta.Title,
		MediaKind: types.MediaAudio,
		DownloadCandidates: []types.DownloadCandidate{{
			URL:          audioURL,
			QualityLabel: "best",
			Variant:      types.VariantAudio,
		}},
	}, nil
}
