package id

import (
	"strings"

	"github.com/google/uuid"
)

// New returns 32 lowercase hex characters drawn from a random UUID.
func New() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ArtifactName builds "<prefix>_<hex>.<ext>". An empty prefix yields "<hex>.<ext>".
func ArtifactName(prefix, hex, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	name := hex
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		name = prefix + "_" + hex
	}
	if ext == "" {
		return name
	}
	return name + "." + ext
}
