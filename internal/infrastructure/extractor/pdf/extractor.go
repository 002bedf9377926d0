// Package pdf turns PDF files into plain text with ledongthuc/pdf and reads
// document information with pdfcpu.
package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/kirillkom/pdf-digest/internal/core/domain"
)

const pageSeparator = "\n\n"

type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Parse reads path and returns its text with pages separated by a blank line.
// Unreadable pages are skipped. Missing document information is not an error.
func (e *Extractor) Parse(ctx context.Context, path string) (doc *domain.ParsedDocument, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = domain.WrapError(domain.ErrExtraction, "parse pdf", fmt.Errorf("malformed document %s: %v", path, r))
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "open pdf", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "stat pdf", err)
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "read pdf", err)
	}

	text, err := e.extractText(ctx, reader, path)
	if err != nil {
		return nil, err
	}

	return &domain.ParsedDocument{
		Text: text,
		Metadata: domain.DocumentMetadata{
			Path:      path,
			SizeBytes: uint64(stat.Size()),
			PageCount: uint32(reader.NumPage()),
			Info:      e.readInfo(path),
		},
	}, nil
}

func (e *Extractor) extractText(ctx context.Context, reader *pdf.Reader, path string) (string, error) {
	fonts := make(map[string]*pdf.Font)
	pages := make([]string, 0, reader.NumPage())

	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := page.Font(name)
				fonts[name] = &font
			}
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			e.logger.Warn("pdf_page_text_failed", "path", path, "page", i, "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, pageSeparator), nil
}

func (e *Extractor) readInfo(path string) map[string]string {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		e.logger.Debug("pdf_info_unavailable", "path", path, "error", err)
		return map[string]string{}
	}
	return infoFromContext(pdfCtx)
}

func infoFromContext(pdfCtx *model.Context) map[string]string {
	info := map[string]string{}
	if pdfCtx == nil || pdfCtx.XRefTable == nil {
		return info
	}
	xref := pdfCtx.XRefTable
	for key, value := range map[string]string{
		"title":         xref.Title,
		"author":        xref.Author,
		"subject":       xref.Subject,
		"keywords":      xref.Keywords,
		"creator":       xref.Creator,
		"producer":      xref.Producer,
		"creation_date": xref.CreationDate,
		"mod_date":      xref.ModDate,
	} {
		if v := strings.TrimSpace(value); v != "" {
			info[key] = v
		}
	}
	return info
}
