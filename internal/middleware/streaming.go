package middleware

import (
	"bufio"
	"io"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/KeremKalyoncu/grabkit/internal/errors"
	"github.com/KeremKalyoncu/grabkit/internal/pool"
)

// StreamDone is called once a relay ends with the bytes written and the
// error that stopped it, nil on a complete transfer
type StreamDone func(written int64, err error)

// StreamReader relays body to the client in pooled chunks. A failed flush
// means the client went away: the relay stops and abort is called so the
// upstream transfer is cancelled rather than drained.
func StreamReader(c *fiber.Ctx, body io.ReadCloser, abort func(), done StreamDone) {
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			body.Close()
			if abort != nil {
				abort()
			}
		}()

		buffer := pool.Chunks.Get()
		defer pool.Chunks.Put(buffer)

		var (
			written int64
			err     error
		)
		for {
			n, rerr := body.Read(buffer)
			if n > 0 {
				if _, err = w.Write(buffer[:n]); err != nil {
					break
				}
				if err = w.Flush(); err != nil {
					break
				}
				written += int64(n)
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				err = rerr
				break
			}
		}

		if done != nil {
			done(written, err)
		}
	})
}

// StreamFile sends a local file as an attachment with constant memory use
func StreamFile(c *fiber.Ctx, filePath, filename, contentType string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return apperrors.ErrNotFound.WithMessage("File not found")
	}

	stat, err := file.Stat()
	if err != nil || stat.IsDir() {
		file.Close()
		return apperrors.ErrNotFound.WithMessage("File not found")
	}

	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	c.Set(fiber.HeaderContentLength, strconv.FormatInt(stat.Size(), 10))
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")

	StreamReader(c, file, nil, nil)
	return nil
}
