package render

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"os"
	"strconv"
	"strings"

	"github.com/psykhi/wordclouds"
	"go.uber.org/zap"
)

// ErrNothingToDraw is returned when no word survives filtering
var ErrNothingToDraw = errors.New("no words to draw")

// Options configures the word cloud image
type Options struct {
	Width       int
	Height      int
	FontPath    string
	FontMaxSize int
	FontMinSize int
	Background  string
	Colors      []string
}

// Renderer draws word clouds as PNG images
type Renderer struct {
	opts       Options
	background color.Color
	colors     []color.Color
	logger     *zap.Logger
}

// NewRenderer validates the colour options and creates a Renderer
func NewRenderer(opts Options, logger *zap.Logger) (*Renderer, error) {
	background := color.Color(color.Transparent)
	if opts.Background != "" {
		c, err := ParseHexColor(opts.Background)
		if err != nil {
			return nil, fmt.Errorf("invalid word cloud background: %w", err)
		}
		background = c
	}

	colors := make([]color.Color, 0, len(opts.Colors))
	for _, hex := range opts.Colors {
		c, err := ParseHexColor(hex)
		if err != nil {
			return nil, fmt.Errorf("invalid word cloud colour: %w", err)
		}
		colors = append(colors, c)
	}
	if len(colors) == 0 {
		colors = append(colors, color.Black)
	}

	if opts.Width <= 0 {
		opts.Width = 600
	}
	if opts.Height <= 0 {
		opts.Height = 350
	}

	return &Renderer{opts: opts, background: background, colors: colors, logger: logger}, nil
}

// RenderPNG draws the word counts and encodes the image as PNG
func (r *Renderer) RenderPNG(freqs []WordCount) (data []byte, err error) {
	if len(freqs) == 0 {
		return nil, ErrNothingToDraw
	}
	if _, err := os.Stat(r.opts.FontPath); err != nil {
		return nil, fmt.Errorf("failed to load word cloud font: %w", err)
	}

	counts := make(map[string]int, len(freqs))
	for _, f := range freqs {
		counts[f.Word] = f.Count
	}

	// The drawing library panics on unreadable fonts
	defer func() {
		if rec := recover(); rec != nil {
			data, err = nil, fmt.Errorf("failed to draw word cloud: %v", rec)
		}
	}()

	options := []wordclouds.Option{
		wordclouds.FontFile(r.opts.FontPath),
		wordclouds.Width(r.opts.Width),
		wordclouds.Height(r.opts.Height),
		wordclouds.Colors(r.colors),
		wordclouds.BackgroundColor(r.background),
		wordclouds.RandomPlacement(false),
	}
	if r.opts.FontMaxSize > 0 {
		options = append(options, wordclouds.FontMaxSize(r.opts.FontMaxSize))
	}
	if r.opts.FontMinSize > 0 {
		options = append(options, wordclouds.FontMinSize(r.opts.FontMinSize))
	}

	img := wordclouds.NewWordcloud(counts, options...).Draw()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode word cloud: %w", err)
	}

	r.logger.Debug("Rendered word cloud",
		zap.Int("words", len(counts)),
		zap.Int("bytes", buf.Len()))

	return buf.Bytes(), nil
}

// ParseHexColor parses #rgb, #rrggbb or #rrggbbaa
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")

	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]}) + "ff"
	case 6:
		hex += "ff"
	case 8:
	default:
		return color.RGBA{}, fmt.Errorf("bad colour %q", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("bad colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
