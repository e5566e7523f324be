package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"regexp"
	"strings"

	"golang.org/x/image/draw"
)

// MaxImageDimension is the longest edge an image is resized to before the
// vision description call.
const MaxImageDimension = 2048

// PrepareForVision decodes an image, resizes it if it exceeds
// MaxImageDimension on its longest edge, and returns it base64-encoded as
// PNG for a vision adapter's request body.
func PrepareForVision(data []byte) (encoded string, mimeType string, err error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > MaxImageDimension || bounds.Dy() > MaxImageDimension {
		img = resize(img, MaxImageDimension)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", "", fmt.Errorf("encode image: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), "image/png", nil
}

func resize(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = height * maxSize / width
	} else {
		newHeight = maxSize
		newWidth = width * maxSize / height
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// slugLine matches the "5) Slug: some-words" line the description prompt
// asks the vision model to emit as its final numbered item.
var slugLine = regexp.MustCompile(`(?i)5\)\s*slug:\s*(.+)`)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// ParseSlug extracts the machine-readable slug from a vision description.
// It looks for the "5) Slug: ..." line the description prompt requests; if
// that line is absent or empty, it falls back to the first two alphanumeric
// words of the description, lowercased and joined with a hyphen.
func ParseSlug(description string) string {
	if m := slugLine.FindStringSubmatch(description); m != nil {
		if slug := sanitizeSlug(m[1]); slug != "" {
			return slug
		}
	}
	return heuristicSlug(description)
}

func sanitizeSlug(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.ToLower(raw)
	raw = nonAlphanumeric.ReplaceAllString(raw, "-")
	return strings.Trim(raw, "-")
}

func heuristicSlug(description string) string {
	fields := strings.Fields(description)
	words := make([]string, 0, 2)
	for _, f := range fields {
		cleaned := sanitizeSlug(f)
		if cleaned == "" {
			continue
		}
		words = append(words, cleaned)
		if len(words) == 2 {
			break
		}
	}
	if len(words) == 0 {
		return "image"
	}
	return strings.Join(words, "-")
}

// ShardedImagePath computes the final, two-level-sharded storage path for
// an ingested image: data/images/<a>/<b>/<id>_<slug>.<ext>, where <a><b>
// are the first four hex characters of the element id.
func ShardedImagePath(baseDir, elementID, slug, ext string) string {
	shardSource := strings.ReplaceAll(elementID, "-", "")
	for len(shardSource) < 4 {
		shardSource += "0"
	}
	a, b := shardSource[0:2], shardSource[2:4]
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%s/images/%s/%s/%s_%s.%s", strings.TrimSuffix(baseDir, "/"), a, b, elementID, slug, ext)
}
