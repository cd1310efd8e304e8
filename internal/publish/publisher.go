// Package publish stores generated images and renders QR codes that point at
// them.
package publish

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"photobooth/internal/domain"
	"photobooth/internal/storage"
)

type Options struct {
	// KeyPrefix is prepended to every object key, e.g. "photobooth".
	KeyPrefix string
	// QRSize is the QR PNG edge in pixels.
	QRSize int
}

type Publisher struct {
	store  storage.ObjectStore
	prefix string
	qrSize int
	now    func() time.Time
}

// New returns a publisher over store. A nil store is allowed; every publish
// then fails with StorageUnavailable.
func New(store storage.ObjectStore, opts Options) *Publisher {
	size := opts.QRSize
	if size <= 0 {
		size = DefaultQRSize
	}
	return &Publisher{
		store:  store,
		prefix: strings.Trim(opts.KeyPrefix, "/"),
		qrSize: size,
		now:    time.Now,
	}
}

// Configured reports whether an object store is wired in.
func (p *Publisher) Configured() bool {
	return p != nil && p.store != nil
}

// Publish stores a generated image and returns its public URL.
func (p *Publisher) Publish(ctx context.Context, data []byte, tenantSlug string) (string, error) {
	return p.put(ctx, data, tenantSlug, "")
}

// PublishQRCode stores a rendered QR PNG next to the images of the tenant.
func (p *Publisher) PublishQRCode(ctx context.Context, png []byte, tenantSlug string) (string, error) {
	return p.put(ctx, png, tenantSlug, "qr")
}

// MakeQRCode renders url with the publisher's configured size.
func (p *Publisher) MakeQRCode(url string) ([]byte, error) {
	return MakeQRCode(url, p.qrSize)
}

func (p *Publisher) put(ctx context.Context, data []byte, tenantSlug, kind string) (string, error) {
	if !p.Configured() {
		return "", domain.StorageUnavailable(storage.ErrNotConfigured)
	}
	if len(data) == 0 {
		return "", domain.Invalid("nothing to publish")
	}
	contentType := http.DetectContentType(data)
	key := p.Key(tenantSlug, kind, extensionFor(contentType))
	url, err := p.store.Put(ctx, key, data, contentType)
	if err != nil {
		return "", domain.StorageUnavailable(err)
	}
	return url, nil
}

var unsafeSlugChars = regexp.MustCompile(`[^a-z0-9-]+`)

// Key builds a collision resistant object key. With a tenant the layout is
// <prefix>/events/<slug>/<YYYY-MM-DD>/<unixnano>-<uuid>.<ext>, otherwise
// <prefix>/generated/<YYYYMMDD-HHMMSS>-<uuid>.<ext>.
func (p *Publisher) Key(tenantSlug, kind, ext string) string {
	now := p.now().UTC()
	name := fmt.Sprintf("%d-%s.%s", now.UnixNano(), uuid.NewString(), ext)
	if kind != "" {
		name = kind + "-" + name
	}
	var key string
	slug := unsafeSlugChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(tenantSlug)), "-")
	slug = strings.Trim(slug, "-")
	if slug != "" {
		key = path.Join("events", slug, now.Format("2006-01-02"), name)
	} else {
		key = path.Join("generated", now.Format("20060102-150405")+"-"+name)
	}
	if p.prefix != "" {
		key = path.Join(p.prefix, key)
	}
	return key
}

func extensionFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "jpeg"):
		return "jpg"
	case strings.Contains(contentType, "webp"):
		return "webp"
	case strings.Contains(contentType, "gif"):
		return "gif"
	default:
		return "png"
	}
}
