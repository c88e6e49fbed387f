package storage

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// DetectContentType picks a MIME type for an object: the provided type if
// set, then the key's extension, then a sniff of head, then octet-stream.
func DetectContentType(provided, key string, head []byte) string {
	if provided != "" {
		return provided
	}
	switch {
	case strings.HasSuffix(key, stateKey), strings.HasSuffix(key, usageKey):
		return "application/json"
	case strings.HasSuffix(key, planKey):
		return "text/plain; charset=utf-8"
	}
	ext := strings.ToLower(filepath.Ext(key))
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	if len(head) > 0 {
		return http.DetectContentType(head)
	}
	return "application/octet-stream"
}

// LogoTypes are the MIME types accepted for site logos.
var LogoTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// IsAllowedLogoType reports whether contentType can be used as a site logo.
func IsAllowedLogoType(contentType string) bool {
	_, ok := LogoTypes[baseType(contentType)]
	return ok
}

// ExtensionFor returns the file extension used when storing contentType.
func ExtensionFor(contentType string) string {
	if ext, ok := LogoTypes[baseType(contentType)]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(baseType(contentType)); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

func baseType(contentType string) string {
	t, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(strings.ToLower(t))
}
