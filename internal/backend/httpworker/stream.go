package httpworker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
)

const maxStreamLine = 64 << 20

// stream runs one generate call. onStep returning false cancels the request
// and stream returns context.Canceled.
func (c *Client) stream(ctx context.Context, req generateRequest, onStep func(streamLine) bool) (image.Image, error) {
	// Apply request timeout via context, if configured
	if c.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.reqTimeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resp, err := c.post(ctx, "/v1/generate", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), maxStreamLine)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var msg streamLine
		if err := json.Unmarshal(line, &msg); err != nil {
			c.log.Warn().Str("line", truncate(line, 120)).Msg("unparsable worker stream line")
			continue
		}
		switch msg.Type {
		case "step":
			if !onStep(msg) {
				cancel()
				return nil, context.Canceled
			}
		case "image":
			return decodeImage(msg.Image)
		case "error":
			return nil, errors.New(msg.Error)
		default:
			c.log.Debug().Str("type", msg.Type).Msg("ignoring worker stream line")
		}
	}
	if err := sc.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return nil, errors.New("worker stream ended without an image")
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
