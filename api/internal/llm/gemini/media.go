package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/util"
)

const maxImageBytes = 10 << 20

var errBlockedAddress = errors.New("address not allowed")

// MediaFetcher turns image URLs (http(s) or data:) into inline bytes for the model.
// With prefixes set, only URLs under one of them are fetched.
type MediaFetcher struct {
	httpc    *http.Client
	prefixes []string
}

// NewMediaFetcher uses httpc when given; the default client refuses loopback,
// private and link-local addresses.
func NewMediaFetcher(httpc *http.Client, prefixes ...string) *MediaFetcher {
	f := &MediaFetcher{}
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			f.prefixes = append(f.prefixes, p)
		}
	}
	if httpc == nil {
		dialer := &net.Dialer{Timeout: 10 * time.Second, Control: publicOnly}
		httpc = &http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{DialContext: dialer.DialContext},
		}
	}
	cp := *httpc
	cp.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return errors.New("too many redirects")
		}
		if !f.allowed(req.URL.String()) {
			return errBlockedAddress
		}
		return nil
	}
	f.httpc = &cp
	return f
}

func (f *MediaFetcher) Fetch(ctx context.Context, u string) ([]byte, string, error) {
	u = strings.TrimSpace(u)
	if strings.HasPrefix(u, "data:") {
		b, hint, err := util.DecodeBase64MaybeDataURL(u)
		if err != nil {
			return nil, "", apperr.Invalid("images", "format", "bad data url")
		}
		return b, util.PickMIME("", hint, b), nil
	}
	if !f.allowed(u) {
		return nil, "", apperr.Invalid("images", "host", "image url is not served by this app")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", apperr.Invalid("images", "format", "bad image url")
	}
	resp, err := f.httpc.Do(req)
	if errors.Is(err, errBlockedAddress) {
		return nil, "", apperr.Invalid("images", "host", "image url is not served by this app")
	}
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(b) > maxImageBytes {
		return nil, "", apperr.Invalid("images", "maxSize", fmt.Sprintf("image larger than %d bytes", maxImageBytes))
	}
	return b, util.PickMIME(resp.Header.Get("Content-Type"), "", b), nil
}

func (f *MediaFetcher) allowed(u string) bool {
	if len(f.prefixes) == 0 {
		return true
	}
	if pu, err := url.Parse(u); err != nil || strings.Contains(pu.Path, "..") {
		return false
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(u, p) {
			return true
		}
	}
	return false
}

func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() {
		return fmt.Errorf("%s: %w", host, errBlockedAddress)
	}
	return nil
}
