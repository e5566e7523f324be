package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func createTestImage(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func TestPrepareForVisionResizesOversizedImage(t *testing.T) {
	data := createTestImage(4000, 2000)
	encoded, mimeType, err := PrepareForVision(data)
	if err != nil {
		t.Fatalf("PrepareForVision() error = %v", err)
	}
	if mimeType != "image/png" {
		t.Errorf("mimeType = %q, want image/png", mimeType)
	}
	if encoded == "" {
		t.Error("expected non-empty encoded image")
	}
}

func TestPrepareForVisionLeavesSmallImageUnscaled(t *testing.T) {
	data := createTestImage(100, 100)
	encoded, _, err := PrepareForVision(data)
	if err != nil {
		t.Fatalf("PrepareForVision() error = %v", err)
	}
	if encoded == "" {
		t.Error("expected non-empty encoded image")
	}
}

func TestPrepareForVisionRejectsGarbage(t *testing.T) {
	if _, _, err := PrepareForVision([]byte("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestParseSlugFromNumberedLine(t *testing.T) {
	desc := "1) A sunset over mountains\n2) none\n3) trees\n4) calm\n5) Slug: sunset-mountains"
	if got := ParseSlug(desc); got != "sunset-mountains" {
		t.Errorf("ParseSlug() = %q, want sunset-mountains", got)
	}
}

func TestParseSlugFallsBackToHeuristic(t *testing.T) {
	desc := "A red bicycle leaning against a wall."
	if got := ParseSlug(desc); got != "a-red" {
		t.Errorf("ParseSlug() = %q, want a-red", got)
	}
}

func TestParseSlugFallsBackOnEmptyDescription(t *testing.T) {
	if got := ParseSlug(""); got != "image" {
		t.Errorf("ParseSlug() = %q, want image", got)
	}
}

func TestShardedImagePath(t *testing.T) {
	got := ShardedImagePath("data", "ab12cd34-0000-0000-0000-000000000000", "sunset-mountains", ".jpg")
	want := "data/images/ab/12/ab12cd34-0000-0000-0000-000000000000_sunset-mountains.jpg"
	if got != want {
		t.Errorf("ShardedImagePath() = %q, want %q", got, want)
	}
}
