package client

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/webp"
)

const MaxImageBytes = 5 << 20

var (
	defaultLogo     []byte
	defaultLogoOnce sync.Once
)

// DefaultLogo is a plain square in the embed color, used whenever a logo cannot be fetched.
func DefaultLogo() []byte {
	defaultLogoOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, 256, 256))
		draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 0xBE, G: 0xBE, B: 0xFE, A: 0xFF}}, image.Point{}, draw.Src)
		buf := new(bytes.Buffer)
		_ = png.Encode(buf, img)
		defaultLogo = buf.Bytes()
	})
	return defaultLogo
}

// ImageClient downloads images from arbitrary hosts, with one rate limited client per host.
type ImageClient struct {
	mu      sync.Mutex
	clients map[string]*AsyncHttpClient
}

func NewImageClient() *ImageClient {
	return &ImageClient{clients: make(map[string]*AsyncHttpClient)}
}

func (c *ImageClient) clientFor(u *url.URL) *AsyncHttpClient {
	key := u.Scheme + "://" + u.Host
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[key]; ok {
		return client
	}
	client := NewAsyncHttpClient(&url.URL{Scheme: u.Scheme, Host: u.Host}, "image", WithPolicy(Policy{MaxHits: 2, Period: time.Second}))
	c.clients[key] = client
	return client
}

// Fetch downloads at most MaxImageBytes from rawURL.
func (c *ImageClient) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported image url %q", rawURL)
	}
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	args := RequestArgs{
		// Endpoint is a format string
		Endpoint:    strings.ReplaceAll(strings.TrimPrefix(u.Path, "/"), "%", "%%"),
		MetricLabel: "logo",
	}
	if u.RawQuery != "" {
		args.QueryParams = make(map[string]string)
		for k, v := range u.Query() {
			args.QueryParams[k] = v[0]
		}
	}
	data, _, clientErr := sendRawRequest(ctx, c.clientFor(u), args)
	if clientErr != nil {
		return nil, clientErr
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", MaxImageBytes)
	}
	return data, nil
}

var images = NewImageClient()

// FetchImage downloads rawURL through the shared image client.
func FetchImage(ctx context.Context, rawURL string) ([]byte, error) {
	return images.Fetch(ctx, rawURL)
}

// ToPNG decodes any registered image format and re-encodes it as PNG. PNG input is returned unchanged.
func ToPNG(data []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if format == "png" {
		return data, nil
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
