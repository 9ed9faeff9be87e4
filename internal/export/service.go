package export

import (
	"fmt"

	"blockforge/api/internal/store"
)

// Service renders documents into downloadable formats.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Export renders the document and its optional client metadata in the
// requested format. An empty document is rejected before any rendering.
func (s *Service) Export(doc store.Document, client *store.Client, format Format) (*Result, error) {
	if len(doc.Blocks) == 0 {
		return nil, ErrEmptyDocument
	}

	data := TemplateData{
		Title:     doc.Title,
		CreatedAt: doc.CreatedAt,
		Blocks:    make([]TemplateBlock, 0, len(doc.Blocks)),
	}
	if client != nil {
		data.ClientName = client.DisplayName()
		data.ClientCity = client.City
	}
	for _, block := range doc.Blocks {
		data.Blocks = append(data.Blocks, TemplateBlock{Name: block.Name, Content: block.Content})
	}

	html, err := RenderDocumentHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch format {
	case FormatPDF:
		return exportPDF(html, doc.Title)
	case FormatDOCX:
		return exportDOCX(html, doc.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
