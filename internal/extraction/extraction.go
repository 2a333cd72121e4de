// Package extraction turns stored files into searchable text.
package extraction

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"
)

// DefaultMaxBytes caps how much of a file is read for extraction.
const DefaultMaxBytes = 10 << 20

// File is a readable document file.
type File struct {
	Reader   io.Reader
	Name     string
	MimeType string
}

// Result holds the extracted text.
type Result struct {
	Text string
}

// Supports reports whether the extractor reads text out of files of the given MIME type.
func Supports(mimeType string) bool {
	mediaType := baseMediaType(mimeType)
	return isJSON(mediaType) || isXML(mediaType) || strings.HasPrefix(mediaType, "text/")
}

// Extractor extracts text from a file. ocrLanguages are hints for image based formats.
type Extractor interface {
	ExtractTextFromFile(ctx context.Context, file File, ocrLanguages []string) (Result, error)
}

// TextExtractor reads plain text, JSON and XML files. Other types yield empty text.
type TextExtractor struct {
	MaxBytes int64
}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{MaxBytes: DefaultMaxBytes}
}

var _ Extractor = (*TextExtractor)(nil)

func (e *TextExtractor) ExtractTextFromFile(ctx context.Context, file File, _ []string) (Result, error) {
	mediaType := baseMediaType(file.MimeType)
	limit := e.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	r := io.LimitReader(contextReader{ctx: ctx, r: file.Reader}, limit)

	var (
		text string
		err  error
	)
	switch {
	case isJSON(mediaType):
		text, err = jsonText(r)
	case isXML(mediaType):
		text, err = xmlText(r)
	case strings.HasPrefix(mediaType, "text/"):
		text, err = plainText(r)
	default:
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("extract text from %s: %w", file.Name, err)
	}
	return Result{Text: strings.TrimSpace(text)}, nil
}

func baseMediaType(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mediaType
}

func isJSON(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func isXML(mediaType string) bool {
	return mediaType == "application/xml" || mediaType == "text/xml" || strings.HasSuffix(mediaType, "+xml")
}

func plainText(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return strings.ToValidUTF8(string(b), ""), nil
	}
	return string(b), nil
}

// jsonText collects every string value in document order.
func jsonText(r io.Reader) (string, error) {
	dec := json.NewDecoder(r)
	var parts []string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if len(parts) > 0 && errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return "", err
		}
		if s, ok := tok.(string); ok && strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " "), nil
}

// xmlText collects character data, dropping markup.
func xmlText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	var parts []string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if len(parts) > 0 {
				break
			}
			return "", err
		}
		if cd, ok := tok.(xml.CharData); ok {
			if s := strings.TrimSpace(string(cd)); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, " "), nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
