package render

import (
	"bytes"
	"errors"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"
	"golang.org/x/image/font/gofont/goregular"
)

func TestFrequencies(t *testing.T) {
	text := "free prize free call now a the free call prize x"

	got := Frequencies(text, DefaultStopWords, 0)
	want := []WordCount{
		{Word: "free", Count: 3},
		{Word: "call", Count: 2},
		{Word: "prize", Count: 2},
		{Word: "now", Count: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Frequencies = %v, want %v", got, want)
	}
}

func TestFrequenciesLimit(t *testing.T) {
	got := Frequencies("bb aa cc aa bb aa", nil, 2)
	want := []WordCount{{Word: "aa", Count: 3}, {Word: "bb", Count: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Frequencies = %v, want %v", got, want)
	}
}

func TestFrequenciesEmpty(t *testing.T) {
	for _, text := range []string{"", "   ", "a b c", "the and of"} {
		if got := Frequencies(text, DefaultStopWords, 10); len(got) != 0 {
			t.Errorf("Frequencies(%q) = %v, want none", text, got)
		}
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"#fff", color.RGBA{255, 255, 255, 255}},
		{"#fc8961", color.RGBA{0xfc, 0x89, 0x61, 0xff}},
		{"00000000", color.RGBA{}},
		{" #51127c80 ", color.RGBA{0x51, 0x12, 0x7c, 0x80}},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if err != nil {
			t.Errorf("ParseHexColor(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHexColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "#12", "#zzzzzz", "#1234567"} {
		if _, err := ParseHexColor(bad); err == nil {
			t.Errorf("ParseHexColor(%q) should fail", bad)
		}
	}
}

func TestNewRendererRejectsBadColours(t *testing.T) {
	if _, err := NewRenderer(Options{Colors: []string{"red"}}, zaptest.NewLogger(t)); err == nil {
		t.Error("expected an error for a named colour")
	}
	if _, err := NewRenderer(Options{Background: "#12"}, zaptest.NewLogger(t)); err == nil {
		t.Error("expected an error for a short background")
	}
}

func TestRenderPNGErrors(t *testing.T) {
	r, err := NewRenderer(Options{FontPath: filepath.Join(t.TempDir(), "missing.ttf")}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	if _, err := r.RenderPNG(nil); !errors.Is(err, ErrNothingToDraw) {
		t.Errorf("RenderPNG(nil) error = %v, want ErrNothingToDraw", err)
	}
	if _, err := r.RenderPNG([]WordCount{{Word: "free", Count: 1}}); err == nil {
		t.Error("expected an error for a missing font")
	}
}

func TestRenderPNG(t *testing.T) {
	font := filepath.Join(t.TempDir(), "goregular.ttf")
	if err := os.WriteFile(font, goregular.TTF, 0o600); err != nil {
		t.Fatalf("write font: %v", err)
	}

	r, err := NewRenderer(Options{
		FontPath:    font,
		FontMaxSize: 48,
		FontMinSize: 10,
		Background:  "#ffffff",
		Colors:      []string{"#fc8961", "#b73779", "#51127c"},
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	data, err := r.RenderPNG(Frequencies("free prize free call now claim prize free winner", DefaultStopWords, 0))
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 600 || b.Dy() != 350 {
		t.Errorf("image size = %dx%d, want 600x350", b.Dx(), b.Dy())
	}
}
