package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Runner executes an external command and returns its stdout
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return nil, fmt.Errorf("%s is not installed: %w", name, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s did not finish: %w", name, ctxErr)
	}
	return nil, fmt.Errorf("%s failed: %w: %s", name, err, lastLine(stderr.String()))
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// YtDlp wraps the yt-dlp command line tool
type YtDlp struct {
	binaryPath string
	timeout    time.Duration
	runner     Runner
	logger     *zap.Logger
}

// NewYtDlp creates a yt-dlp wrapper. A nil runner uses os/exec.
func NewYtDlp(binaryPath string, timeout time.Duration, runner Runner, logger *zap.Logger) *YtDlp {
	if runner == nil {
		runner = ExecRunner{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YtDlp{binaryPath: binaryPath, timeout: timeout, runner: runner, logger: logger}
}

// Format is one stream entry of yt-dlp's info JSON
type Format struct {
	FormatID string  `json:"format_id"`
	URL      string  `json:"url"`
	Ext      string  `json:"ext"`
	ACodec   string  `json:"acodec"`
	VCodec   string  `json:"vcodec"`
	ABR      float64 `json:"abr"`
	TBR      float64 `json:"tbr"`
	Filesize int64   `json:"filesize"`
}

// AudioOnly reports whether the format carries audio and no video
func (f Format) AudioOnly() bool {
	return f.URL != "" && f.ACodec != "" && f.ACodec != "none" && f.VCodec == "none"
}

func (f Format) audioBitrate() float64 {
	if f.ABR > 0 {
		return f.ABR
	}
	return f.TBR
}

// VideoInfo is the subset of yt-dlp's info JSON the gateway reads
type VideoInfo struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Uploader  string   `json:"uploader"`
	Channel   string   `json:"channel"`
	Duration  float64  `json:"duration"`
	Thumbnail string   `json:"thumbnail"`
	Formats   []Format `json:"formats"`
}

// BestAudio returns the audio-only format with the highest audio bitrate
func BestAudio(formats []Format) (Format, bool) {
	var (
		best  Format
		found bool
	)
	for _, f := range formats {
		if !f.AudioOnly() {
			continue
		}
		if !found || f.audioBitrate() > best.audioBitrate() {
			best, found = f, true
		}
	}
	return best, found
}

func (y *YtDlp) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	start := time.Now()
	out, err := y.runner.Run(ctx, y.binaryPath, args...)
	y.logger.Debug("yt-dlp finished",
		zap.Strings("args", args),
		zap.Duration("took", time.Since(start)),
		zap.Error(err),
	)
	return string(out), err
}

// VideoInfo fetches the full info JSON for a single video
func (y *YtDlp) VideoInfo(ctx context.Context, videoURL string) (*VideoInfo, error) {
	out, err := y.run(ctx,
		"--dump-single-json",
		"--no-playlist",
		"--no-warnings",
		"--skip-download",
		"--user-agent", RandomUserAgent(),
		videoURL,
	)
	if err != nil {
		return nil, err
	}

	raw, err := lastJSONObject(out)
	if err != nil {
		return nil, err
	}

	var info VideoInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}
	return &info, nil
}

// AudioURL asks only for the direct URL of the best audio stream
func (y *YtDlp) AudioURL(ctx context.Context, videoURL string) (string, error) {
	out, err := y.run(ctx, "-g", "-f", "bestaudio", "--no-playlist", "--no-warnings", videoURL)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line, nil
		}
	}
	return "", noMedia("yt-dlp returned no audio URL")
}

// lastJSONObject returns the JSON object at the end of output. The object
// may span several lines and yt-dlp may print warnings before it.
func lastJSONObject(output string) ([]byte, error) {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if !strings.HasPrefix(strings.TrimSpace(lines[i]), "{") {
			continue
		}
		candidate := []byte(strings.TrimSpace(strings.Join(lines[i:], "\n")))
		if json.Valid(candidate) {
			return candidate, nil
		}
	}
	return nil, fmt.Errorf("no JSON object found in yt-dlp output")
}
