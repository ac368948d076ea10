// internal/snippets/model.go
package snippets

import "time"

// Compliance tracks the lint status of a snippet's stored content.
type Compliance string

const (
	CompliancePending      Compliance = "pending"
	ComplianceCompliant    Compliance = "compliant"
	ComplianceNotCompliant Compliance = "not-compliant"
	ComplianceFailed       Compliance = "failed"
)

// Snippet is the metadata row; the source text itself lives in the asset
// store under the same id.
type Snippet struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Language   string     `json:"language"`
	Version    string     `json:"version"`
	Owner      string     `json:"owner"`
	Compliance Compliance `json:"compliance"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// SnippetWithContent pairs metadata with the stored source text.
type SnippetWithContent struct {
	Snippet
	Content string `json:"content"`
}
