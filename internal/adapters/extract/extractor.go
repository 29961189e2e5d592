// Package extract pulls plain text out of uploaded documents.
package extract

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/mikey/mailguard/internal/utils"
	"go.uber.org/zap"
)

var (
	// ErrUnsupportedFormat is returned for documents of an unknown type
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrDocumentTooLarge is returned when a document exceeds the size limit
	ErrDocumentTooLarge = errors.New("document exceeds the upload size limit")
)

// Format is a supported document format
type Format string

const (
	FormatUnknown Format = ""
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
	FormatText    Format = "txt"
	FormatEML     Format = "eml"
)

var mimeFormats = map[string]Format{
	"application/pdf": FormatPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FormatDOCX,
	"text/plain":     FormatText,
	"message/rfc822": FormatEML,
}

var extensionFormats = map[string]Format{
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".txt":  FormatText,
	".text": FormatText,
	".eml":  FormatEML,
}

// Document is an uploaded file
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// DetectFormat resolves the document format from its declared MIME type,
// falling back to the file extension
func DetectFormat(contentType, name string) Format {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if f, ok := mimeFormats[strings.ToLower(mediaType)]; ok {
			return f
		}
	}
	return extensionFormats[strings.ToLower(filepath.Ext(name))]
}

// ContentType returns the MIME type of a format name such as "pdf".
// Values that already look like MIME types are returned unchanged.
func ContentType(format string) string {
	if strings.Contains(format, "/") {
		return format
	}
	want := Format(strings.TrimPrefix(strings.ToLower(format), "."))
	for mediaType, f := range mimeFormats {
		if f == want {
			return mediaType
		}
	}
	return ""
}

// Extractor converts documents to text
type Extractor struct {
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
	maxBytes      int64
}

// NewExtractor creates an Extractor. maxBytes <= 0 disables the size check.
func NewExtractor(textProcessor *utils.TextProcessor, logger *zap.Logger, maxBytes int64) *Extractor {
	return &Extractor{
		textProcessor: textProcessor,
		logger:        logger,
		maxBytes:      maxBytes,
	}
}

// MaxBytes returns the document size limit
func (e *Extractor) MaxBytes() int64 {
	return e.maxBytes
}

// Extract returns the text of a document
func (e *Extractor) Extract(ctx context.Context, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if e.maxBytes > 0 && int64(len(doc.Data)) > e.maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrDocumentTooLarge, len(doc.Data), e.maxBytes)
	}

	format := DetectFormat(doc.ContentType, doc.Name)

	var (
		text string
		err  error
	)
	switch format {
	case FormatPDF:
		text, err = extractPDF(doc.Data)
	case FormatDOCX:
		text, err = extractDOCX(doc.Data)
	case FormatEML:
		text, err = extractEML(doc.Data)
	case FormatText:
		text = strings.TrimPrefix(e.textProcessor.DecodeBytes(doc.Data), "\ufeff")
	default:
		return "", fmt.Errorf("%w: %q (%s)", ErrUnsupportedFormat, doc.Name, doc.ContentType)
	}
	if err != nil {
		return "", fmt.Errorf("failed to extract text from %s document %q: %w", format, doc.Name, err)
	}

	e.logger.Debug("Extracted document text",
		zap.String("file_name", doc.Name),
		zap.String("format", string(format)),
		zap.Int("size", len(doc.Data)),
		zap.Int("text_length", len(text)))

	return e.textProcessor.SanitizeUTF8(text), nil
}
