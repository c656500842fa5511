package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"docsearch-platform/internal/blob"
	"docsearch-platform/internal/config"
	"docsearch-platform/models"
	"docsearch-platform/utils"
)

const rasterDPI = 150

// VerifiedBinarySet maps object IDs to the blob keys of their stored,
// validated binaries. Only objects in this set are eligible to become
// image chunks.
type VerifiedBinarySet map[string]string

func (s VerifiedBinarySet) Contains(objectID string) bool {
	_, ok := s[objectID]
	return ok
}

func (s VerifiedBinarySet) BlobKey(objectID string) string {
	return s[objectID]
}

// Materializer resolves the actual pixels behind each visual object and
// stores them as PNGs in the blob store. Providers differ in what they
// hand back, so resolution walks a fallback chain per object: embedded
// base64, raw bytes, a bounding-box crop of a rasterized page, and
// finally the embedded images poppler can pull from the page.
type Materializer struct {
	store          blob.Store
	concurrency    int
	minEdge        int
	minVariance    float64
	popplerEnabled bool
}

func NewMaterializer(cfg *config.Config, store blob.Store) *Materializer {
	return &Materializer{
		store:          store,
		concurrency:    cfg.MaterializeConcurrency,
		minEdge:        cfg.MinImageEdge,
		minVariance:    cfg.MinColorVariance,
		popplerEnabled: cfg.PopplerEnabled,
	}
}

// Resolve materializes all visual objects of a document. pdfPath may be
// empty when no source PDF is on disk, which disables the raster
// fallbacks. Failures are per-object warnings, never fatal; objects that
// resolve get their image features backfilled in place.
func (m *Materializer) Resolve(ctx context.Context, documentID, pdfPath string, objects []models.ExtractedObject) (VerifiedBinarySet, []models.Warning) {
	verified := VerifiedBinarySet{}
	var warnings []models.Warning

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, m.concurrency)

	// Page rasters are shared between objects on the same page
	rasters := newRasterCache(pdfPath, m.popplerEnabled)
	defer rasters.cleanup()

	for i := range objects {
		obj := &objects[i]
		if obj.ObjectType != models.ObjectImage && obj.ObjectType != models.ObjectFigure {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(obj *models.ExtractedObject) {
			defer wg.Done()
			defer func() { <-sem }()

			key, info, err := m.resolveOne(ctx, documentID, rasters, obj)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				warnings = append(warnings, models.Warning{
					Stage:   models.WarnMaterialize,
					Ref:     obj.ID,
					Message: err.Error(),
				})
				return
			}
			verified[obj.ID] = key
			obj.Features = &models.ImageFeatures{
				Width:          info.Width,
				Height:         info.Height,
				PerceptualHash: info.PerceptualHash,
			}
		}(obj)
	}

	wg.Wait()
	return verified, warnings
}

// resolveOne runs the fallback chain for a single object and uploads the
// first candidate that passes validation.
func (m *Materializer) resolveOne(ctx context.Context, documentID string, rasters *rasterCache, obj *models.ExtractedObject) (string, *utils.ImageInfo, error) {
	var lastErr error

	for _, produce := range []func(context.Context, *models.ExtractedObject) ([]byte, error){
		m.fromBase64,
		m.fromRaw,
		rasters.cropFromPage,
		rasters.embeddedImage(m.minEdge, m.minVariance),
	} {
		data, err := produce(ctx, obj)
		if err != nil {
			lastErr = err
			continue
		}
		if data == nil {
			continue
		}

		png, info, err := m.validate(data)
		if err != nil {
			lastErr = err
			continue
		}

		key := fmt.Sprintf("%s/%s/%d.png", documentID, obj.ID, obj.PageOrZero())
		if err := m.store.Upload(ctx, key, blob.PurposeDerived, png); err != nil {
			return "", nil, fmt.Errorf("store binary: %w", err)
		}
		return key, info, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no binary source available")
	}
	return "", nil, fmt.Errorf("materialize object page %d: %w", obj.PageOrZero(), lastErr)
}

// validate decodes candidate bytes, rejects tiny or near-blank images,
// and re-encodes to PNG so stored binaries are uniform.
func (m *Materializer) validate(data []byte) ([]byte, *utils.ImageInfo, error) {
	img, err := utils.DecodeImage(data)
	if err != nil {
		return nil, nil, err
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w < m.minEdge || h < m.minEdge {
		return nil, nil, fmt.Errorf("image %dx%d below minimum edge %d", w, h, m.minEdge)
	}
	if v := utils.ColorVariance(img); v < m.minVariance {
		return nil, nil, fmt.Errorf("image nearly uniform (variance %.2f)", v)
	}

	png, err := utils.EncodePNG(img)
	if err != nil {
		return nil, nil, err
	}
	info, err := utils.InspectImage(png)
	if err != nil {
		return nil, nil, err
	}
	return png, info, nil
}

func (m *Materializer) fromBase64(_ context.Context, obj *models.ExtractedObject) ([]byte, error) {
	if obj.Payload.Base64 == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(obj.Payload.Base64)
	if err != nil {
		return nil, fmt.Errorf("decode base64 payload: %w", err)
	}
	return data, nil
}

func (m *Materializer) fromRaw(_ context.Context, obj *models.ExtractedObject) ([]byte, error) {
	if len(obj.Payload.Raw) == 0 {
		return nil, nil
	}
	return obj.Payload.Raw, nil
}

// rasterCache rasterizes PDF pages on demand and keeps them for the
// lifetime of one Resolve call. Safe for concurrent use.
type rasterCache struct {
	pdfPath string
	enabled bool

	mu      sync.Mutex
	pages   map[int]image.Image
	tempDir string
}

func newRasterCache(pdfPath string, enabled bool) *rasterCache {
	return &rasterCache{
		pdfPath: pdfPath,
		enabled: enabled && pdfPath != "" && hasBinaryInPath("pdftoppm"),
		pages:   map[int]image.Image{},
	}
}

func (c *rasterCache) cleanup() {
	if c.tempDir != "" {
		os.RemoveAll(c.tempDir)
	}
}

func (c *rasterCache) workDir() (string, error) {
	if c.tempDir != "" {
		return c.tempDir, nil
	}
	dir, err := os.MkdirTemp("", "raster-*")
	if err != nil {
		return "", err
	}
	c.tempDir = dir
	return dir, nil
}

// cropFromPage rasterizes the object's page and crops its bounding box.
func (c *rasterCache) cropFromPage(ctx context.Context, obj *models.ExtractedObject) ([]byte, error) {
	if !c.enabled || obj.Bounds == nil || obj.PageOrZero() == 0 {
		return nil, nil
	}

	img, err := c.page(ctx, obj.PageOrZero())
	if err != nil {
		return nil, err
	}

	rect := pixelRect(*obj.Bounds, img.Bounds())
	cropped, err := utils.CropImage(img, rect)
	if err != nil {
		return nil, fmt.Errorf("crop page %d: %w", obj.PageOrZero(), err)
	}
	return utils.EncodePNG(cropped)
}

func (c *rasterCache) page(ctx context.Context, pageNum int) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if img, ok := c.pages[pageNum]; ok {
		return img, nil
	}

	dir, err := c.workDir()
	if err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	prefix := filepath.Join(dir, fmt.Sprintf("page-%d", pageNum))
	page := strconv.Itoa(pageNum)
	cmd := exec.CommandContext(execCtx, "pdftoppm", "-png", "-r", strconv.Itoa(rasterDPI),
		"-f", page, "-l", page, c.pdfPath, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %v: %s", pageNum, err, out)
	}

	// pdftoppm pads page numbers in its output names
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil || len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no output for page %d", pageNum)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, err
	}
	img, err := utils.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("decode raster of page %d: %w", pageNum, err)
	}

	c.pages[pageNum] = img
	return img, nil
}

// embeddedImage returns a fallback that asks pdfimages for the images
// embedded on the object's page and picks the largest plausible one.
func (c *rasterCache) embeddedImage(minEdge int, minVariance float64) func(context.Context, *models.ExtractedObject) ([]byte, error) {
	return func(ctx context.Context, obj *models.ExtractedObject) ([]byte, error) {
		if !c.enabled || obj.PageOrZero() == 0 || !hasBinaryInPath("pdfimages") {
			return nil, nil
		}

		dir, err := os.MkdirTemp("", "pdfimages-*")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(dir)

		execCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		page := strconv.Itoa(obj.PageOrZero())
		prefix := filepath.Join(dir, "img")
		cmd := exec.CommandContext(execCtx, "pdfimages", "-png", "-f", page, "-l", page, c.pdfPath, prefix)
		if out, err := cmd.CombinedOutput(); err != nil {
			return nil, fmt.Errorf("pdfimages page %s: %v: %s", page, err, out)
		}

		matches, err := filepath.Glob(prefix + "-*.png")
		if err != nil || len(matches) == 0 {
			return nil, fmt.Errorf("no embedded images on page %s", page)
		}
		sort.Strings(matches)

		var best []byte
		var bestArea int
		for _, path := range matches {
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			img, err := utils.DecodeImage(data)
			if err != nil {
				continue
			}
			w, h := img.Bounds().Dx(), img.Bounds().Dy()
			if w < minEdge || h < minEdge || utils.ColorVariance(img) < minVariance {
				continue
			}
			if w*h > bestArea {
				bestArea = w * h
				best = data
			}
		}
		if best == nil {
			return nil, fmt.Errorf("no usable embedded image on page %s", page)
		}
		return best, nil
	}
}

// pixelRect converts bounding box coordinates to a raster pixel
// rectangle. Coordinates entirely within [0,1] are page fractions;
// anything larger is PDF points at 72 DPI.
func pixelRect(b models.BoundingBox, raster image.Rectangle) image.Rectangle {
	w := float64(raster.Dx())
	h := float64(raster.Dy())

	if b.X0 <= 1.0 && b.Y0 <= 1.0 && b.X1 <= 1.0 && b.Y1 <= 1.0 {
		return image.Rect(
			int(b.X0*w), int(b.Y0*h),
			int(b.X1*w), int(b.Y1*h),
		)
	}

	scale := float64(rasterDPI) / 72.0
	return image.Rect(
		int(b.X0*scale), int(b.Y0*scale),
		int(b.X1*scale), int(b.Y1*scale),
	)
}

func hasBinaryInPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
