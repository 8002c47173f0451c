package msock

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxThrottleBurst bounds how many bytes a single throttled write may
// reserve against the limiter at once, so that a large Write call doesn't
// ask for one enormous reservation up front.
const maxThrottleBurst = 256 * 1024

// throttledWriter is an io.Writer wrapping another io.Writer with a
// token-bucket rate limit. Writes larger than the configured burst are
// split into chunks so the caller is made to wait proportionally to how
// much it is writing rather than blocking once for the whole buffer.
type throttledWriter struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

// newThrottledWriter wraps w so that writes through it are limited to
// bytesPerSec bytes per second. A bytesPerSec <= 0 returns w unchanged.
func newThrottledWriter(ctx context.Context, w io.Writer, bytesPerSec int64) io.Writer {
	if bytesPerSec <= 0 {
		return w
	}

	burst := int(bytesPerSec)
	if burst > maxThrottleBurst {
		burst = maxThrottleBurst
	}
	if burst < 1 {
		burst = 1
	}

	return &throttledWriter{
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
		ctx:     ctx,
	}
}

func (tw *throttledWriter) Write(p []byte) (int, error) {
	written := 0

	for len(p) > 0 {
		chunk := len(p)
		if chunk > tw.limiter.Burst() {
			chunk = tw.limiter.Burst()
		}

		if err := tw.limiter.WaitN(tw.ctx, chunk); err != nil {
			return written, err
		}

		n, err := tw.w.Write(p[:chunk])
		written += n
		if err != nil {
			return written, err
		}
		p = p[n:]
	}

	return written, nil
}

// ThrottledChannel wraps a Channel's Write side with a bandwidth cap,
// useful when a single Connection multiplexes channels that should not be
// able to starve each other (or the underlying link) of bandwidth. Reads
// are unaffected; only the rate at which this wrapper accepts outbound
// bytes is limited. The wrapped Channel's own backpressure (its bounded
// send ring buffer) still applies underneath.
type ThrottledChannel struct {
	*Channel
	out io.Writer
}

// NewThrottledChannel limits ch's outbound byte rate to bytesPerSec bytes
// per second. ctx governs how long Write calls are willing to wait for
// tokens; a canceled ctx makes Write return ctx.Err() instead of blocking
// forever. bytesPerSec <= 0 disables throttling and Write behaves exactly
// like the underlying Channel.
func NewThrottledChannel(ctx context.Context, ch *Channel, bytesPerSec int64) *ThrottledChannel {
	return &ThrottledChannel{
		Channel: ch,
		out:     newThrottledWriter(ctx, channelWriter{ch}, bytesPerSec),
	}
}

// channelWriter adapts Channel.Write (which returns len(buffer), nil on
// success by blocking until every byte is accepted) to a plain io.Writer
// so it can sit behind the rate limiter.
type channelWriter struct{ ch *Channel }

func (c channelWriter) Write(p []byte) (int, error) { return c.ch.Write(p) }

// Write sends buffer through the rate limiter before handing it to the
// wrapped Channel. It satisfies io.Writer, overriding the embedded
// Channel's unthrottled Write.
func (tc *ThrottledChannel) Write(p []byte) (int, error) {
	return tc.out.Write(p)
}
