package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/hotload-labs/hotload/internal/hotload"
	"github.com/schollz/progressbar/v3"
)

// progressRenderer draws download progress events as a byte progress bar.
// The bar is created on the first event, once the total size is known;
// downloads of unknown size are not drawn.
type progressRenderer struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newProgressRenderer(w io.Writer) *progressRenderer {
	return &progressRenderer{w: w}
}

func (r *progressRenderer) observe(p hotload.DownloadProgress) {
	if p.TotalBytes <= 0 {
		return
	}
	if r.bar == nil {
		r.bar = progressbar.NewOptions64(p.TotalBytes,
			progressbar.OptionSetWriter(r.w),
			progressbar.OptionSetDescription("downloading"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}
	r.bar.Set64(p.ReceivedBytes)
}

// finish completes a bar in flight. It is safe to call without one.
func (r *progressRenderer) finish() {
	if r.bar == nil {
		return
	}
	r.bar.Finish()
	fmt.Fprintln(r.w)
	r.bar = nil
}
