package types

import "encoding/json"

// Platform represents supported platforms
type Platform string

const (
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformYouTube   Platform = "youtube"
	PlatformUnknown   Platform = ""
)

// DisplayName is the human name used in error messages
func (p Platform) DisplayName() string {
	switch p {
	case PlatformTikTok:
		return "TikTok"
	case PlatformInstagram:
		return "Instagram"
	case PlatformTwitter:
		return "Twitter"
	case PlatformYouTube:
		return "YouTube"
	default:
		return "Unknown"
	}
}

// MediaKind classifies the downloadable payload
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaGIF   MediaKind = "gif"
	MediaAudio MediaKind = "audio"
)

// Variant tags what a candidate URL points at
type Variant string

const (
	VariantHDNoWatermark Variant = "hd_no_watermark"
	VariantNoWatermark   Variant = "no_watermark"
	VariantWatermark     Variant = "watermark"
	VariantVideo         Variant = "video"
	VariantAudio         Variant = "audio"
)

// DownloadCandidate is one downloadable URL. Candidates are ordered best-first.
type DownloadCandidate struct {
	URL           string  `json:"url"`
	QualityLabel  string  `json:"qualityLabel,omitempty"`
	ApproxBitrate int64   `json:"approxBitrate,omitempty"`
	Variant       Variant `json:"variant"`
	Format        string  `json:"format,omitempty"`
	Codec         string  `json:"codec,omitempty"`
}

// Stats holds engagement counters as reported upstream
type Stats struct {
	Plays    int64 `json:"plays"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
}

// MediaResult is the canonical extraction output shared by all platforms
type MediaResult struct {
	Platform           Platform            `json:"platform"`
	SourceID           string              `json:"sourceId"`
	Author             string              `json:"author"`
	AuthorHandle       string              `json:"authorUsername,omitempty"`
	AuthorAvatar       string              `json:"authorAvatar,omitempty"`
	AuthorURL          string              `json:"authorUrl,omitempty"`
	Caption            string              `json:"caption"`
	ThumbnailURL       string              `json:"thumbnailUrl,omitempty"`
	ThumbnailHQURL     string              `json:"thumbnailHqUrl,omitempty"`
	MediaKind          MediaKind           `json:"mediaKind"`
	ContentType        string              `json:"type,omitempty"` // reel, post, video, gif
	DownloadCandidates []DownloadCandidate `json:"downloadCandidates"`
	DurationSeconds    int                 `json:"durationSeconds,omitempty"`
	CreatedAt          int64               `json:"createTime,omitempty"`
	RawStats           *Stats              `json:"stats,omitempty"`
	Method             string              `json:"method,omitempty"`
	MetadataOnly       bool                `json:"metadataOnly,omitempty"`
	Note               string              `json:"note,omitempty"`
	OriginalURL        string              `json:"originalUrl,omitempty"`
}

// HasCandidates reports whether the result carries at least one usable URL
func (r *MediaResult) HasCandidates() bool {
	for _, c := range r.DownloadCandidates {
		if c.URL != "" {
			return true
		}
	}
	return false
}

// Best returns the first candidate with the given variant, or the first candidate at all
func (r *MediaResult) Best(variants ...Variant) (DownloadCandidate, bool) {
	for _, v := range variants {
		for _, c := range r.DownloadCandidates {
			if c.Variant == v && c.URL != "" {
				return c, true
			}
		}
	}
	if len(variants) == 0 && len(r.DownloadCandidates) > 0 {
		return r.DownloadCandidates[0], true
	}
	return DownloadCandidate{}, false
}

// QualityView is one entry of the Twitter style quality list
type QualityView struct {
	URL     string `json:"url"`
	Quality string `json:"quality"`
	Bitrate int64  `json:"bitrate,omitempty"`
}

// VideoView is the legacy "video" object clients consume
type VideoView struct {
	NoWatermark   string        `json:"noWatermark,omitempty"`
	HDNoWatermark string        `json:"hdNoWatermark,omitempty"`
	Watermark     string        `json:"watermark,omitempty"`
	URL           string        `json:"url,omitempty"`
	Best          string        `json:"best,omitempty"`
	Qualities     []QualityView `json:"qualities,omitempty"`
	Quality       string        `json:"quality,omitempty"`
}

// AudioView is the legacy "audio" object clients consume
type AudioView struct {
	URL     string `json:"url"`
	Format  string `json:"format,omitempty"`
	Bitrate int64  `json:"bitrate,omitempty"`
	Codec   string `json:"codec,omitempty"`
	Source  string `json:"source,omitempty"`
}

// DownloadURLs mirrors the video/audio views under their older key names
type DownloadURLs struct {
	NoWatermark   string        `json:"noWatermark,omitempty"`
	HDNoWatermark string        `json:"hdNoWatermark,omitempty"`
	Watermark     string        `json:"watermark,omitempty"`
	Audio         string        `json:"audio,omitempty"`
	Video         string        `json:"video,omitempty"`
	Best          string        `json:"best,omitempty"`
	All           []QualityView `json:"all,omitempty"`
}

// Views derives the compatibility objects from DownloadCandidates.
// Both objects are computed from the same slice so they cannot disagree.
func (r *MediaResult) Views() (*VideoView, *AudioView, *DownloadURLs) {
	if !r.HasCandidates() {
		return nil, nil, nil
	}

	var (
		video *VideoView
		audio *AudioView
		urls  = &DownloadURLs{}
	)

	if a, ok := r.Best(VariantAudio); ok {
		audio = &AudioView{URL: a.URL, Format: a.Format, Bitrate: a.ApproxBitrate, Codec: a.Codec, Source: r.Method}
		urls.Audio = a.URL
	}

	switch r.Platform {
	case PlatformTikTok:
		hd, hasHD := r.Best(VariantHDNoWatermark)
		nw, _ := r.Best(VariantHDNoWatermark, VariantNoWatermark)
		wm, _ := r.Best(VariantWatermark)
		video = &VideoView{NoWatermark: nw.URL, Watermark: wm.URL, HDNoWatermark: nw.URL, Quality: "SD"}
		if hasHD {
			video.HDNoWatermark = hd.URL
			video.Quality = "HD"
		}
		if video.NoWatermark == "" && video.Watermark == "" {
			video = nil
		}
		if video != nil {
			urls.NoWatermark = video.NoWatermark
			urls.HDNoWatermark = video.HDNoWatermark
			urls.Watermark = video.Watermark
		}

	case PlatformTwitter:
		for _, c := range r.DownloadCandidates {
			if c.Variant != VariantVideo {
				continue
			}
			q := QualityView{URL: c.URL, Quality: c.QualityLabel, Bitrate: c.ApproxBitrate}
			if video == nil {
				video = &VideoView{Best: c.URL}
			}
			video.Qualities = append(video.Qualities, q)
			urls.All = append(urls.All, QualityView{URL: c.URL, Quality: c.QualityLabel})
		}
		if video != nil {
			urls.Best = video.Best
		}

	case PlatformYouTube:
		// audio only

	default:
		if v, ok := r.Best(VariantVideo, VariantNoWatermark); ok {
			video = &VideoView{URL: v.URL, Quality: v.QualityLabel}
			urls.Video = v.URL
		}
	}

	return video, audio, urls
}

// MarshalJSON emits the canonical fields together with the compatibility views
func (r MediaResult) MarshalJSON() ([]byte, error) {
	type plain MediaResult
	video, audio, urls := r.Views()

	out := struct {
		plain
		Video        *VideoView    `json:"video,omitempty"`
		Audio        *AudioView    `json:"audio,omitempty"`
		DownloadURLs *DownloadURLs `json:"downloadUrls,omitempty"`
	}{
		plain:        plain(r),
		Video:        video,
		Audio:        audio,
		DownloadURLs: urls,
	}
	if out.DownloadCandidates == nil {
		out.DownloadCandidates = []DownloadCandidate{}
	}
	return json.Marshal(out)
}
