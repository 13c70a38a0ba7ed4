package search

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
)

// computeFingerprint hashes the document slice so the index is only
// rebuilt when the tool set changes.
func computeFingerprint(docs []Doc) string {
	h := sha256.New()

	for _, doc := range docs {
		h.Write([]byte(doc.ID))
		h.Write([]byte{0})
		h.Write([]byte(doc.Name))
		h.Write([]byte{0})
		h.Write([]byte(doc.Description))
		h.Write([]byte{0})
		h.Write([]byte(doc.Text))
		h.Write([]byte{0})

		// Tags are order-independent.
		sortedTags := slices.Clone(doc.Tags)
		slices.Sort(sortedTags)
		h.Write([]byte(strings.Join(sortedTags, "\x01")))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}
