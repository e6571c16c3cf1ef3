// Package source reads the image a removal starts from and wraps it into a data url
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/UnendingLoop/BgRemover/internal/imageproc"
	"github.com/UnendingLoop/BgRemover/internal/model"
)

const (
	DefaultFetchTimeout = 15 * time.Second
	MaxSourceSize       = 32 << 20
)

var ErrTooLarge = errors.New("source image exceeds size limit")

type Loader struct {
	client *http.Client

	// nil roots/hosts mean no restriction; an empty non-nil set allows nothing
	roots []string
	hosts map[string]bool
}

type Option func(*Loader)

// WithLocalRoots limits local refs to files under the given directories
func WithLocalRoots(dirs ...string) Option {
	return func(l *Loader) {
		l.roots = []string{}
		for _, d := range dirs {
			if strings.TrimSpace(d) == "" {
				continue
			}
			abs, err := filepath.Abs(d)
			if err != nil {
				continue
			}
			l.roots = append(l.roots, abs)
			if resolved, err := filepath.EvalSymlinks(abs); err == nil && resolved != abs {
				l.roots = append(l.roots, resolved)
			}
		}
	}
}

// WithAllowedHosts limits remote refs to the given host names
func WithAllowedHosts(hosts ...string) Option {
	return func(l *Loader) {
		l.hosts = map[string]bool{}
		for _, h := range hosts {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				l.hosts[h] = true
			}
		}
	}
}

func NewLoader(fetchTimeout time.Duration, opts ...Option) *Loader {
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	l.client = &http.Client{
		Timeout: fetchTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return l.checkHost(req.URL)
		},
	}
	return l
}

// Check tells whether ref may be read at all. Refused refs give model.ErrSourceNotAllowed
// without touching the filesystem or the network.
func (l *Loader) Check(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.ErrEmptySource
	}
	if isRemote(ref) {
		u, _ := url.Parse(ref)
		return l.checkHost(u)
	}
	if l.roots == nil {
		return nil
	}
	abs, err := filepath.Abs(ref)
	if err != nil || !l.underRoot(abs) {
		return model.ErrSourceNotAllowed
	}
	return nil
}

func (l *Loader) checkHost(u *url.URL) error {
	if l.hosts == nil {
		return nil
	}
	if !l.hosts[strings.ToLower(u.Hostname())] {
		return model.ErrSourceNotAllowed
	}
	return nil
}

func (l *Loader) underRoot(path string) bool {
	for _, root := range l.roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// resolveLocal follows symlinks of an allowed path and checks the target again
func (l *Loader) resolveLocal(ref string) (string, error) {
	if l.roots == nil {
		return ref, nil
	}
	abs, _ := filepath.Abs(ref)
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to open source %q: %w", ref, err)
	}
	if !l.underRoot(resolved) {
		return "", model.ErrSourceNotAllowed
	}
	return resolved, nil
}

// Load reads ref (http(s) url or local path) and returns it as a data url
func (l *Loader) Load(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if err := l.Check(ref); err != nil {
		return "", err
	}

	var (
		data []byte
		path = ref
		err  error
	)
	if isRemote(ref) {
		u, _ := url.Parse(ref)
		path = u.Path
		data, err = l.fetch(ctx, ref)
	} else {
		var local string
		if local, err = l.resolveLocal(ref); err == nil {
			data, err = readFile(local)
		}
	}
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", model.ErrEmptySource
	}

	return imageproc.EncodeDataURL(imageproc.MimeFromPath(path), data), nil
}

func isRemote(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (l *Loader) fetch(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %q: %w", ref, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %q: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch %q: unexpected status %s", ref, resp.Status)
	}

	return readLimited(resp.Body)
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source %q: %w", path, err)
	}
	defer f.Close()

	return readLimited(f)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSourceSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}
	if len(data) > MaxSourceSize {
		return nil, ErrTooLarge
	}
	return data, nil
}
