// Package screenshot captures the current framebuffer to an image file.
package screenshot

import (
	"bufio"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TimestampLayout is the timestamp part of screenshot file names.
const TimestampLayout = "20060102_150405"

// PixelReader reads back tightly packed RGB rows of the bound framebuffer,
// bottom row first.
type PixelReader interface {
	ReadPixels(width, height int) ([]byte, error)
}

// Exporter writes framebuffer contents to image files.
type Exporter struct {
	dir    string
	format Format
	now    func() time.Time
	log    zerolog.Logger
}

// NewExporter creates an exporter writing into dir using the given format.
func NewExporter(dir string, format Format, log zerolog.Logger) *Exporter {
	if dir == "" {
		dir = "."
	}
	return &Exporter{
		dir:    dir,
		format: format,
		now:    time.Now,
		log:    log,
	}
}

// BaseName returns the file name without leading directories and without
// its extension. Dotfiles keep their name.
func BaseName(path string) string {
	name := filepath.Base(path)
	if dot := strings.LastIndexByte(name, '.'); dot > 0 {
		name = name[:dot]
	}
	return name
}

// Filename builds "<base>_<frame>_<YYYYMMDD_HHMMSS>.<ext>" for a shader
// path. The timestamp is in UTC.
func Filename(shaderPath string, frame uint64, at time.Time, format Format) string {
	return fmt.Sprintf("%s_%d_%s.%s",
		BaseName(shaderPath), frame, at.UTC().Format(TimestampLayout), format.Ext())
}

// Capture reads a width x height region from px and writes it next to the
// other screenshots. It returns the written path.
func (e *Exporter) Capture(px PixelReader, shaderPath string, frame uint64, width, height int) (string, error) {
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("screenshot: invalid size %dx%d", width, height)
	}

	pixels, err := px.ReadPixels(width, height)
	if err != nil {
		return "", fmt.Errorf("screenshot: read pixels: %w", err)
	}

	im, err := FromRGB(pixels, width, height)
	if err != nil {
		return "", err
	}

	path := filepath.Join(e.dir, Filename(shaderPath, frame, e.now(), e.format))
	if err := e.write(path, im); err != nil {
		return "", err
	}

	e.log.Debug().Str("file", path).Int("width", width).Int("height", height).Msg("Image saved")
	return path, nil
}

func (e *Exporter) write(path string, im image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("screenshot: create %s: %w", path, err)
	}

	bw := bufio.NewWriter(f)
	if err := e.format.Encode(bw, im); err != nil {
		f.Close()
		return fmt.Errorf("screenshot: encode %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("screenshot: write %s: %w", path, err)
	}
	return f.Close()
}

// FromRGB converts bottom-up packed RGB rows into a top-down image.
func FromRGB(pixels []byte, width, height int) (*image.NRGBA, error) {
	if len(pixels) < width*height*3 {
		return nil, fmt.Errorf("screenshot: short pixel buffer: have %d bytes, need %d", len(pixels), width*height*3)
	}

	im := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		src := pixels[(height-1-y)*width*3:]
		dst := im.Pix[y*im.Stride:]
		for x := 0; x < width; x++ {
			dst[x*4+0] = src[x*3+0]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xff
		}
	}
	return im, nil
}
