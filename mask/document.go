package mask

import (
	"bytes"

	"github.com/sokcho-kim/docmask/format"
)

// Document is an immutable byte buffer tagged with its format. Content never
// changes after construction; pipeline stages that modify a document produce
// a new one.
type Document struct {
	data []byte
	tag  format.Tag
}

// NewDocument copies b into a new Document tagged with tag.
func NewDocument(b []byte, tag format.Tag) Document {
	data := make([]byte, len(b))
	copy(data, b)
	return Document{data: data, tag: tag}
}

// Bytes returns a copy of the document content.
func (d Document) Bytes() []byte {
	b := make([]byte, len(d.data))
	copy(b, d.data)
	return b
}

// Format returns the document's format tag.
func (d Document) Format() format.Tag {
	return d.tag
}

// Len returns the content length in bytes.
func (d Document) Len() int {
	return len(d.data)
}

// Equal reports whether two documents carry byte-identical content and the
// same format tag.
func (d Document) Equal(other Document) bool {
	return d.tag == other.tag && bytes.Equal(d.data, other.data)
}
