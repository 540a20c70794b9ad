package form

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"strings"
	"time"

	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/metrics"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// DefaultMaxPhotoBytes caps a single photo before encoding.
const DefaultMaxPhotoBytes = 15 << 20

// PhotoInput is a captured file. Either Data or DataURI is set.
type PhotoInput struct {
	Name        string
	ContentType string
	Data        []byte
	DataURI     string
	CapturedAt  time.Time
}

// PhotoIngester turns captured files into durable photo records. Images are
// kept as-is; PDFs are rendered to a JPEG of their first page.
type PhotoIngester struct {
	maxBytes    int
	jpegQuality int
	logger      *zap.Logger
}

// NewPhotoIngester creates an ingester; maxBytes <= 0 uses DefaultMaxPhotoBytes.
func NewPhotoIngester(maxBytes int, logger *zap.Logger) *PhotoIngester {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPhotoBytes
	}
	return &PhotoIngester{
		maxBytes:    maxBytes,
		jpegQuality: 85,
		logger:      logger,
	}
}

// Ingest sniffs the payload and returns a photo whose DataURI survives reload.
func (p *PhotoIngester) Ingest(in PhotoInput, now time.Time) (entity.Photo, error) {
	data := in.Data
	if len(data) == 0 && in.DataURI != "" {
		_, decoded, err := entity.DecodeDataURI(in.DataURI)
		if err != nil {
			return entity.Photo{}, err
		}
		data = decoded
	}
	if len(data) == 0 {
		return entity.Photo{}, ErrEmptyPhoto
	}
	if len(data) > p.maxBytes {
		return entity.Photo{}, fmt.Errorf("%w: %d bytes", ErrPhotoTooLarge, len(data))
	}

	// the declared content type is advisory; the bytes decide
	contentType := sniff(data)

	source := "image"
	switch {
	case contentType == "application/pdf":
		rendered, err := p.renderFirstPage(data)
		if err != nil {
			return entity.Photo{}, err
		}
		data, contentType, source = rendered, "image/jpeg", "pdf"
	case strings.HasPrefix(contentType, "image/"):
	default:
		p.logger.Debug("Rejected non-image photo",
			zap.String("name", in.Name),
			zap.String("declared", in.ContentType),
			zap.String("detected", contentType))
		return entity.Photo{}, fmt.Errorf("%w: detected %s", entity.ErrNotImage, contentType)
	}

	captured := in.CapturedAt
	if captured.IsZero() {
		captured = now
	}

	metrics.PhotosIngested.WithLabelValues(source).Inc()
	return entity.Photo{
		Name:        in.Name,
		ContentType: contentType,
		DataURI:     entity.EncodeDataURI(contentType, data),
		CapturedAt:  captured.UTC().Format(entity.SavedAtLayout),
	}, nil
}

// Accept checks a photo that arrives as part of a whole draft. Only data
// URIs carrying an image survive; a PDF is rendered like Ingest does. Name
// and capture time are kept.
func (p *PhotoIngester) Accept(photo entity.Photo, now time.Time) (entity.Photo, error) {
	_, data, err := entity.DecodeDataURI(photo.DataURI)
	if err != nil {
		return entity.Photo{}, err
	}
	if len(data) > p.maxBytes {
		return entity.Photo{}, fmt.Errorf("%w: %d bytes", ErrPhotoTooLarge, len(data))
	}

	contentType := sniff(data)
	if len(data) == 0 || !strings.HasPrefix(contentType, "image/") {
		rendered, err := p.Ingest(PhotoInput{Name: photo.Name, Data: data}, now)
		if err != nil {
			return entity.Photo{}, err
		}
		if photo.CapturedAt != "" {
			rendered.CapturedAt = photo.CapturedAt
		}
		return rendered, nil
	}

	photo.ContentType = contentType
	if photo.CapturedAt == "" {
		photo.CapturedAt = now.UTC().Format(entity.SavedAtLayout)
	}
	return photo, nil
}

func sniff(data []byte) string {
	contentType := mimetype.Detect(data).String()
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return contentType
}

func (p *PhotoIngester) renderFirstPage(data []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, ErrPDFNoPages
	}

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("failed to render PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	p.logger.Debug("Rendered PDF photo",
		zap.Int("pages", doc.NumPage()),
		zap.Int("jpeg_bytes", buf.Len()))
	return buf.Bytes(), nil
}
