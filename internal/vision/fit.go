// Package vision shrinks inline images before they are sent to a vision model.
// Only data URIs are touched; remote image URLs pass through unchanged.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register webp decoder

	"github.com/nextlevelbuilder/storycast/pkg/protocol"
)

const (
	DefaultMaxSide  = 1200
	DefaultMaxBytes = 5 << 20
)

// jpegQualities is tried in order until the encoded image fits MaxBytes.
var jpegQualities = []int{85, 75, 65, 55, 45, 35}

var ErrTooLarge = errors.New("image too large even at lowest quality")

// Fitter resizes and recompresses data-URI images.
type Fitter struct {
	maxSide  int
	maxBytes int
}

// New returns a Fitter. Zero values pick the defaults.
func New(maxSide, maxBytes int) *Fitter {
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Fitter{maxSide: maxSide, maxBytes: maxBytes}
}

// FitDataURI returns uri unchanged when it already fits, otherwise a JPEG data
// URI no larger than maxSide per side and maxBytes encoded.
func (f *Fitter) FitDataURI(uri string) (string, error) {
	mime, raw, err := decodeDataURI(uri)
	if err != nil {
		return "", err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decode %s header: %w", mime, err)
	}
	if cfg.Width <= f.maxSide && cfg.Height <= f.maxSide && len(raw) <= f.maxBytes {
		return uri, nil
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", mime, err)
	}
	if cfg.Width > f.maxSide || cfg.Height > f.maxSide {
		img = imaging.Fit(img, f.maxSide, f.maxSide, imaging.Lanczos)
	}
	for _, q := range jpegQualities {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
			return "", fmt.Errorf("encode jpeg (q=%d): %w", q, err)
		}
		if buf.Len() <= f.maxBytes {
			return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
		}
	}
	return "", fmt.Errorf("%w (dimensions: %dx%d)", ErrTooLarge, cfg.Width, cfg.Height)
}

// Messages returns msgs with every data-URI image fitted. Messages without
// inline images are shared with the input; fitted ones get fresh part slices.
// An image that cannot be fitted is passed through as sent.
func (f *Fitter) Messages(ctx context.Context, msgs []protocol.DialogMessage) []protocol.DialogMessage {
	out := make([]protocol.DialogMessage, len(msgs))
	for i, m := range msgs {
		out[i] = m
		if !hasInlineImage(m) {
			continue
		}
		parts := make([]protocol.ContentPart, len(m.Content.Parts))
		for j, p := range m.Content.Parts {
			parts[j] = p
			if p.Type != protocol.PartTypeImageURL || p.ImageURL == nil || !isDataURI(p.ImageURL.URL) {
				continue
			}
			fitted, err := f.FitDataURI(p.ImageURL.URL)
			if err != nil {
				slog.WarnContext(ctx, "vision.image_fit_failed", "message", i, "part", j, "error", err)
				continue
			}
			parts[j].ImageURL = &protocol.ImageURL{URL: fitted}
		}
		out[i].Content = protocol.Content{Parts: parts}
	}
	return out
}

func hasInlineImage(m protocol.DialogMessage) bool {
	for _, p := range m.Content.Parts {
		if p.Type == protocol.PartTypeImageURL && p.ImageURL != nil && isDataURI(p.ImageURL.URL) {
			return true
		}
	}
	return false
}

func isDataURI(s string) bool { return strings.HasPrefix(s, "data:") }

// decodeDataURI accepts only base64 payloads: data:<mime>;base64,<payload>.
func decodeDataURI(uri string) (mime string, raw []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errors.New("not a data uri")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("data uri has no payload")
	}
	mime, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return "", nil, fmt.Errorf("data uri encoding %q not supported", enc)
	}
	raw, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("data uri payload: %w", err)
	}
	return mime, raw, nil
}
