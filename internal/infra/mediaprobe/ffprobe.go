// Package mediaprobe reads audio durations with ffprobe.
package mediaprobe

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// FFprobe probes audio resources through the ffprobe binary. Served
// URL prefixes can be mounted onto local directories so catalog and
// upload audio is probed straight from disk.
type FFprobe struct {
	path   string
	mounts []mount
}

type mount struct {
	prefix string
	dir    string
}

// New creates a prober using the given ffprobe binary path.
func New(path string) *FFprobe {
	if path == "" {
		path = "ffprobe"
	}
	return &FFprobe{path: path}
}

// Mount maps a served URL prefix onto a local directory.
func (p *FFprobe) Mount(urlPrefix, dir string) {
	p.mounts = append(p.mounts, mount{
		prefix: strings.TrimSuffix(urlPrefix, "/") + "/",
		dir:    dir,
	})
}

// Probe returns the duration of the resource behind url.
func (p *FFprobe) Probe(ctx context.Context, url string) (time.Duration, error) {
	target := url
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		resolved, ok := p.resolve(url)
		if !ok {
			return 0, errors.Newf("no mount for url %s", url)
		}
		target = resolved
	}

	out, err := exec.CommandContext(ctx, p.path,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		target,
	).Output()
	if err != nil {
		return 0, errors.Wrapf(err, "ffprobe %s", target)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse ffprobe output %q", strings.TrimSpace(string(out)))
	}
	if seconds <= 0 {
		return 0, errors.Newf("non-positive duration %v for %s", seconds, target)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func (p *FFprobe) resolve(url string) (string, bool) {
	for _, m := range p.mounts {
		if rest, ok := strings.CutPrefix(url, m.prefix); ok {
			if rest == "" || strings.Contains(rest, "..") {
				return "", false
			}
			return m.dir + "/" + rest, true
		}
	}
	return "", false
}
