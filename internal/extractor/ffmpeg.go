package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"
)

// AudioFormats lists the transcode targets accepted for archived audio
var AudioFormats = map[string]string{
	"mp3":  "libmp3lame",
	"m4a":  "aac",
	"aac":  "aac",
	"opus": "libopus",
}

// FFmpeg transcodes archived media with ffmpeg-go
type FFmpeg struct {
	binaryPath string
	timeout    time.Duration
	runner     Runner
	logger     *zap.Logger
}

// NewFFmpeg creates a new FFmpeg wrapper. A nil runner uses os/exec.
func NewFFmpeg(binaryPath string, timeout time.Duration, runner Runner, logger *zap.Logger) *FFmpeg {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpeg{binaryPath: binaryPath, timeout: timeout, runner: runner, logger: logger}
}

// TranscodeArgs builds the ffmpeg argument list for an audio-only transcode
func TranscodeArgs(inputPath, outputPath, format, bitrate string) ([]string, error) {
	codec, ok := AudioFormats[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("unsupported audio format %q", format)
	}

	kwargs := ffmpeg.KwArgs{
		"vn":     "",
		"acodec": codec,
	}
	if bitrate != "" {
		kwargs["b:a"] = bitrate
	}

	return ffmpeg.Input(inputPath).
		Output(outputPath, kwargs).
		OverWriteOutput().
		GetArgs(), nil
}

// TranscodeAudio converts inputPath to format next to the input file and
// returns the new path. The process is killed when ctx ends.
func (f *FFmpeg) TranscodeAudio(ctx context.Context, inputPath, format, bitrate string) (string, error) {
	outputPath := changeExtension(inputPath, "."+strings.ToLower(format))
	if outputPath == inputPath {
		outputPath = changeExtension(inputPath, ".out."+strings.ToLower(format))
	}

	args, err := TranscodeArgs(inputPath, outputPath, format, bitrate)
	if err != nil {
		return "", err
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	f.logger.Info("Transcoding audio",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.String("format", format),
	)

	if _, err := f.runner.Run(ctx, f.binaryPath, args...); err != nil {
		return "", fmt.Errorf("audio transcode failed: %w", err)
	}
	return outputPath, nil
}

func changeExtension(path, newExt string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + newExt
}
