package services

import (
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"testing"

	"docsearch-platform/internal/config"
	"docsearch-platform/models"
	"docsearch-platform/utils"
)

func testMaterializerConfig() *config.Config {
	return &config.Config{
		MaterializeConcurrency: 2,
		MinImageEdge:           32,
		MinColorVariance:       8.0,
		PopplerEnabled:         false,
	}
}

// gradientImage has enough intensity spread to pass the variance gate.
func gradientImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x * 255) / w)
			img.Set(x, y, color.RGBA{R: v, G: v, B: 255 - v, A: 255})
		}
	}
	return img
}

func uniformImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	return img
}

func mustPNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	data, err := utils.EncodePNG(img)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestValidateAcceptsRealImage(t *testing.T) {
	m := NewMaterializer(testMaterializerConfig(), &fakeBlobStore{})
	png, info, err := m.validate(mustPNG(t, gradientImage(64, 48)))
	if err != nil {
		t.Fatal(err)
	}
	if len(png) == 0 {
		t.Error("no png bytes returned")
	}
	if info.Width != 64 || info.Height != 48 {
		t.Errorf("dimensions = %dx%d", info.Width, info.Height)
	}
	if info.PerceptualHash == "" {
		t.Error("perceptual hash missing")
	}
}

func TestValidateRejectsTinyImage(t *testing.T) {
	m := NewMaterializer(testMaterializerConfig(), &fakeBlobStore{})
	if _, _, err := m.validate(mustPNG(t, gradientImage(10, 10))); err == nil {
		t.Error("image below minimum edge should fail validation")
	}
}

func TestValidateRejectsBlankImage(t *testing.T) {
	m := NewMaterializer(testMaterializerConfig(), &fakeBlobStore{})
	if _, _, err := m.validate(mustPNG(t, uniformImage(64, 64))); err == nil {
		t.Error("near-uniform image should fail the variance gate")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	m := NewMaterializer(testMaterializerConfig(), &fakeBlobStore{})
	if _, _, err := m.validate([]byte("not an image")); err == nil {
		t.Error("undecodable bytes should fail validation")
	}
}

func TestResolveFromBase64(t *testing.T) {
	store := &fakeBlobStore{}
	m := NewMaterializer(testMaterializerConfig(), store)

	page := 3
	objects := []models.ExtractedObject{
		{
			ID:         "fig1",
			ObjectType: models.ObjectFigure,
			Page:       &page,
			Payload: models.ObjectPayload{
				Base64: base64.StdEncoding.EncodeToString(mustPNG(t, gradientImage(64, 64))),
			},
		},
		{ID: "txt", ObjectType: models.ObjectTextBlock, Page: &page, Text: "body"},
	}

	verified, warnings := m.Resolve(context.Background(), "doc1", "", objects)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	if !verified.Contains("fig1") {
		t.Fatal("figure with embedded base64 must resolve")
	}
	if verified.Contains("txt") {
		t.Error("text blocks are not materialized")
	}

	key := verified.BlobKey("fig1")
	if key != "doc1/fig1/3.png" {
		t.Errorf("blob key = %q", key)
	}
	if _, err := store.Download(context.Background(), key, "derived"); err != nil {
		t.Errorf("binary not stored: %v", err)
	}

	if objects[0].Features == nil || objects[0].Features.Width != 64 {
		t.Errorf("features not backfilled: %+v", objects[0].Features)
	}
}

func TestResolveWarnsWithoutSource(t *testing.T) {
	m := NewMaterializer(testMaterializerConfig(), &fakeBlobStore{})
	page := 2
	objects := []models.ExtractedObject{
		{ID: "fig-lost", ObjectType: models.ObjectFigure, Page: &page},
	}

	verified, warnings := m.Resolve(context.Background(), "doc1", "", objects)
	if len(verified) != 0 {
		t.Errorf("verified = %v", verified)
	}
	if len(warnings) != 1 || warnings[0].Stage != models.WarnMaterialize || warnings[0].Ref != "fig-lost" {
		t.Fatalf("warnings = %+v", warnings)
	}
}

func TestResolveFromRawBytes(t *testing.T) {
	store := &fakeBlobStore{}
	m := NewMaterializer(testMaterializerConfig(), store)
	page := 1
	objects := []models.ExtractedObject{
		{
			ID:         "img1",
			ObjectType: models.ObjectImage,
			Page:       &page,
			Payload:    models.ObjectPayload{Raw: mustPNG(t, gradientImage(40, 40))},
		},
	}

	verified, warnings := m.Resolve(context.Background(), "doc1", "", objects)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	if !verified.Contains("img1") {
		t.Fatal("raw payload bytes must resolve")
	}
}

func TestPixelRect(t *testing.T) {
	raster := image.Rect(0, 0, 200, 100)

	// Fractional coordinates scale by raster size
	got := pixelRect(models.BoundingBox{X0: 0.25, Y0: 0.25, X1: 0.75, Y1: 0.75}, raster)
	if got != image.Rect(50, 25, 150, 75) {
		t.Errorf("fractional rect = %v", got)
	}

	// Point coordinates scale by render DPI over 72
	got = pixelRect(models.BoundingBox{X0: 72, Y0: 72, X1: 144, Y1: 144}, raster)
	if got != image.Rect(150, 150, 300, 300) {
		t.Errorf("point rect = %v", got)
	}
}
