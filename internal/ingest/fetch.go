package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"
)

// MaxDocumentBytes caps uploads and downloads.
const MaxDocumentBytes = 10 << 20 // 10MB

// Download is a fetched remote document.
type Download struct {
	Data     []byte
	MimeType string
	FileName string
}

// Fetcher downloads documents referenced by URL.
type Fetcher struct {
	Client   *http.Client
	MaxBytes int64
}

const maxRedirects = 5

var errBlockedAddress = errors.New("address is not publicly routable")

// sharedAddressSpace is the carrier-grade NAT range (RFC 6598).
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// NewFetcher returns a Fetcher with the given timeout. It only connects to
// public addresses, checked after DNS resolution on every dial, redirects
// included.
func NewFetcher(timeout time.Duration) *Fetcher {
	return newFetcher(timeout, func(ap netip.AddrPort) bool { return PublicAddress(ap.Addr()) })
}

func newFetcher(timeout time.Duration, allow func(netip.AddrPort) bool) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(network, address string, _ syscall.RawConn) error {
			ap, err := netip.ParseAddrPort(address)
			if err != nil {
				return fmt.Errorf("%w: %s", errBlockedAddress, address)
			}
			if !allow(netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())) {
				return fmt.Errorf("%w: %s", errBlockedAddress, address)
			}
			return nil
		},
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &Fetcher{
		Client: &http.Client{
			Timeout:       timeout,
			Transport:     transport,
			CheckRedirect: checkRedirect,
		},
		MaxBytes: MaxDocumentBytes,
	}
}

// PublicAddress reports whether addr is a globally routable unicast address.
func PublicAddress(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch {
	case !addr.IsValid(),
		addr.IsUnspecified(),
		addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(),
		addr.IsMulticast(),
		sharedAddressSpace.Contains(addr):
		return false
	}
	return addr.IsGlobalUnicast()
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("%w: redirect to %s scheme", errBlockedAddress, req.URL.Scheme)
	}
	return nil
}

// Fetch downloads rawURL. Only http and https URLs are accepted.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Download, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Download{}, fmt.Errorf("%w: fileUrl must be an http(s) URL", ErrInvalidInput)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Download{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		if errors.Is(err, errBlockedAddress) {
			return Download{}, fmt.Errorf("%w: fileUrl must point to a public address", ErrInvalidInput)
		}
		return Download{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Download{}, fmt.Errorf("%w: http status %d", ErrFetch, resp.StatusCode)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = MaxDocumentBytes
	}
	if resp.ContentLength > limit {
		return Download{}, ErrTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return Download{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if int64(len(data)) > limit {
		return Download{}, ErrTooLarge
	}

	mimeType := ""
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if parsed, _, err := mime.ParseMediaType(ct); err == nil {
			mimeType = parsed
		}
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = ""
	}
	return Download{Data: data, MimeType: mimeType, FileName: name}, nil
}
