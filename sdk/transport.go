package sdk

import (
	"context"

	"github.com/faciam-dev/docform/pkg/schema"
)

// Transport is the document backend. Implementations live in sdk/client.
type Transport interface {
	GetDocTypeMetadata(ctx context.Context, docType string) (*schema.Schema, error)
	GetDocument(ctx context.Context, docType, name string) (schema.Record, error)
	CreateDocument(ctx context.Context, user schema.Identity, docType string, values map[string]any) (schema.Record, error)
	UpdateDocument(ctx context.Context, user schema.Identity, docType, name string, values map[string]any) (schema.Record, error)
	DeleteDocument(ctx context.Context, user schema.Identity, docType, name string) error
	SearchDocuments(ctx context.Context, docType string, q SearchQuery) ([]schema.Record, error)
}

// Filter is one search condition. Op is "=", "!=" or "like".
type Filter struct {
	Field string `json:"field" yaml:"field"`
	Op    string `json:"op" yaml:"op"`
	Value any    `json:"value" yaml:"value"`
}

// SearchQuery narrows SearchDocuments. Empty Fields lets the transport pick
// its default columns.
type SearchQuery struct {
	Filters []Filter
	Fields  []string
	OrderBy string
	Limit   int
}

// CompanyLookup resolves the default currency of a company.
type CompanyLookup interface {
	CompanyCurrency(ctx context.Context, company string) (string, error)
}

// Uploader stores attachments for Attach and Attach Image fields.
type Uploader interface {
	Upload(ctx context.Context, docType, name, fieldname, filename string, data []byte) (string, error)
}

// NopUploader rejects every upload.
type NopUploader struct{}

func (NopUploader) Upload(context.Context, string, string, string, string, []byte) (string, error) {
	return "", ErrAttachmentUnsupported
}
