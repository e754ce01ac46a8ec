package extractor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/types"
)

const (
	tikwmAPI        = "https://www.tikwm.com/api/"
	tikwmBase       = "https://www.tikwm.com"
	tikwmMediaBase  = "https://www.tikwm.com/video/media"
	ssstikPage      = "https://ssstik.io/en"
	ssstikAPI       = "https://ssstik.io/abc?url=dl"
	tiktokOEmbedAPI = "https://www.tiktok.com/oembed"

	tiktokMetadataNote = "Direct download URLs not available. Try copying the video URL manually."
)

// TikTok extracts TikTok videos through tikwm, ssstik and finally oEmbed
type TikTok struct {
	client *Client
	chain  *Chain
	logger *zap.Logger
}

// NewTikTok creates the TikTok chain
func NewTikTok(client *Client, logger *zap.Logger) *TikTok {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &TikTok{client: client, logger: logger}
	t.chain = NewChain(types.PlatformTikTok, logger,
		Method{Name: "tikwm", Upstream: "tikwm", Run: t.fromTikwm},
		Method{Name: "ssstik", Upstream: "ssstik", Run: t.fromSsstik},
		Method{Name: "oembed", Upstream: "tiktok-oembed", Run: t.fromOEmbed, MetadataOnly: true},
	)
	return t
}

func (t *TikTok) Platform() types.Platform { return types.PlatformTikTok }

func (t *TikTok) Chain() *Chain { return t.chain }

// Extract resolves the video ID first, then runs the fallback chain
func (t *TikTok) Extract(ctx context.Context, rawURL string) (*types.MediaResult, error) {
	resolved := t.resolveShortURL(ctx, rawURL)

	id := tiktokVideoID(resolved)
	if id == "" {
		return nil, invalidURL(types.PlatformTikTok, "Could not extract video ID from URL")
	}

	res, err := t.chain.Run(ctx, &Input{URL: rawURL, Resolved: resolved, ID: id})
	if err != nil {
		return nil, wrapFailure(types.PlatformTikTok, err)
	}
	if res.SourceID == "" {
		res.SourceID = id
	}
	res.OriginalURL = rawURL
	return res, nil
}

// resolveShortURL follows exactly one redirect of a vm./vt. share link.
// The canonical page is never fetched; only its ID is needed.
func (t *TikTok) resolveShortURL(ctx context.Context, rawURL string) string {
	lower := strings.ToLower(rawURL)
	if !strings.Contains(lower, "vm.tiktok.com") && !strings.Contains(lower, "vt.tiktok.com") {
		return rawURL
	}

	loc, err := t.client.Location(ctx, rawURL)
	if err != nil || loc == "" {
		t.logger.Debug("Short link did not redirect", zap.String("url", rawURL), zap.Error(err))
		return rawURL
	}
	return loc
}

type tikwmResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		Cover        string `json:"cover"`
		OriginCover  string `json:"origin_cover"`
		Duration     int    `json:"duration"`
		WmPlay       string `json:"wmplay"`
		Music        string `json:"music"`
		PlayCount    int64  `json:"play_count"`
		DiggCount    int64  `json:"digg_count"`
		CommentCount int64  `json:"comment_count"`
		ShareCount   int64  `json:"share_count"`
		CreateTime   int64  `json:"create_time"`
		Author       struct {
			UniqueID string `json:"unique_id"`
			Nickname string `json:"nickname"`
			Avatar   string `json:"avatar"`
		} `json:"author"`
	} `json:"data"`
}

// fromTikwm asks tikwm for metadata and builds media URLs from its fixed
// templates instead of the links embedded in the payload
func (t *TikTok) fromTikwm(ctx context.Context, in *Input) (*types.MediaResult, error) {
	header := http.Header{}
	header.Set("Origin", tikwmBase)
	header.Set("Referer", tikwmBase+"/")

	var resp tikwmResponse
	form := url.Values{"url": {in.URL}, "hd": {"1"}}
	if err := t.client.PostFormJSON(ctx, tikwmAPI, form, header, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 || resp.Data == nil {
		msg := resp.Msg
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("tikwm: %s", msg)
	}

	d := resp.Data
	// tikwm's own ID is authoritative for its media templates
	id := in.ID
	if d.ID != "" {
		id = d.ID
	}
	candidates := []types.DownloadCandidate{
		{URL: fmt.Sprintf("%s/hdplay/%s.mp4", tikwmMediaBase, id), QualityLabel: "HD", Variant: types.VariantHDNoWatermark, Format: "mp4"},
		{URL: fmt.Sprintf("%s/play/%s.mp4", tikwmMediaBase, id), QualityLabel: "SD", Variant: types.VariantNoWatermark, Format: "mp4"},
	}
	if wm := absoluteURL(tikwmBase, d.WmPlay); wm != "" {
		candidates = append(candidates, types.DownloadCandidate{URL: wm, Variant: types.VariantWatermark, Format: "mp4"})
	}
	if music := absoluteURL(tikwmBase, d.Music); music != "" {
		candidates = append(candidates, types.DownloadCandidate{URL: music, Variant: types.VariantAudio, Format: "mp3"})
	}

	thumb := d.Cover
	if thumb == "" {
		thumb = d.OriginCover
	}

	return &types.MediaResult{
		SourceID:           id,
		Author:             d.Author.Nickname,
		AuthorHandle:       d.Author.UniqueID,
		AuthorAvatar:       absoluteURL(tikwmBase, d.Author.Avatar),
		Caption:            d.Title,
		ThumbnailURL:       absoluteURL(tikwmBase, thumb),
		MediaKind:          types.MediaVideo,
		DownloadCandidates: candidates,
		DurationSeconds:    d.Duration,
		CreatedAt:          d.CreateTime,
		RawStats: &types.Stats{
			Plays:    d.PlayCount,
			Likes:    d.DiggCount,
			Comments: d.CommentCount,
			Shares:   d.ShareCount,
		},
	}, nil
}

// ssstikLinks holds the anchors found in an ssstik result fragment
type ssstikLinks struct {
	NoWatermark string
	Watermark   string
	Music       string
	Caption     string
}

// parseSsstikFragment picks download anchors by their visible text.
// "With watermark" is a different prefix from "Without watermark".
func parseSsstikFragment(fragment string) (ssstikLinks, error) {
	var links ssstikLinks

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return links, err
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || href == "#" {
			return
		}
		text := strings.TrimSpace(s.Text())
		switch {
		case strings.HasPrefix(text, "Without watermark") && links.NoWatermark == "":
			links.NoWatermark = href
		case strings.HasPrefix(text, "With watermark") && links.Watermark == "":
			links.Watermark = href
		case strings.HasPrefix(text, "Music") && links.Music == "":
			links.Music = href
		}
	})

	links.Caption = strings.TrimSpace(doc.Find("p.maintext").First().Text())
	return links, nil
}

func (t *TikTok) fromSsstik(ctx context.Context, in *Input) (*types.MediaResult, error) {
	page, err := t.client.GetText(ctx, ssstikPage, nil)
	if err != nil {
		return nil, err
	}
	token := ssstikToken(page)
	if token == "" {
		return nil, fmt.Errorf("ssstik: session token not found")
	}

	header := http.Header{}
	header.Set("HX-Request", "true")
	header.Set("Origin", "https://ssstik.io")
	header.Set("Referer", ssstikPage)

	form := url.Values{"id": {in.URL}, "locale": {"en"}, "tt": {token}}
	fragment, err := t.client.PostForm(ctx, ssstikAPI, form, header)
	if err != nil {
		return nil, err
	}

	links, err := parseSsstikFragment(fragment)
	if err != nil {
		return nil, fmt.Errorf("ssstik: %w", err)
	}
	if links.NoWatermark == "" && links.Watermark == "" {
		return nil, noMedia("ssstik: no download links in response")
	}

	var candidates []types.DownloadCandidate
	if links.NoWatermark != "" {
		candidates = append(candidates, types.DownloadCandidate{URL: links.NoWatermark, QualityLabel: "SD", Variant: types.VariantNoWatermark, Format: "mp4"})
	}
	if links.Watermark != "" {
		candidates = append(candidates, types.DownloadCandidate{URL: links.Watermark, Variant: types.VariantWatermark, Format: "mp4"})
	}
	if links.Music != "" {
		candidates = append(candidates, types.DownloadCandidate{URL: links.Music, Variant: types.VariantAudio, Format: "mp3"})
	}

	author := ssstikAuthor(fragment)
	return &types.MediaResult{
		SourceID:           in.ID,
		Author:             author,
		AuthorHandle:       author,
		Caption:            links.Caption,
		MediaKind:          types.MediaVideo,
		DownloadCandidates: candidates,
	}, nil
}

type oEmbedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	AuthorURL    string `json:"author_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// fromOEmbed returns metadata only; TikTok's oEmbed never exposes media URLs
func (t *TikTok) fromOEmbed(ctx context.Context, in *Input) (*types.MediaResult, error) {
	var resp oEmbedResponse
	target := in.Resolved
	if target == "" {
		target = in.URL
	}
	endpoint := tiktokOEmbedAPI + "?url=" + url.QueryEscape(target)
	if err := t.client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Title == "" && resp.AuthorName == "" {
		return nil, noMedia("oembed: empty response")
	}

	return &types.MediaResult{
		SourceID:     in.ID,
		Author:       resp.AuthorName,
		AuthorURL:    resp.AuthorURL,
		Caption:      resp.Title,
		ThumbnailURL: resp.ThumbnailURL,
		MediaKind:    types.MediaVideo,
		MetadataOnly: true,
		Note:         tiktokMetadataNote,
	}, nil
}

// absoluteURL resolves a possibly relative link returned by a mirror
func absoluteURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	r, err := b.Parse(ref)
	if err != nil {
		return ""
	}
	return r.String()
}
