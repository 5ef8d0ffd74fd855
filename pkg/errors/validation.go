package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// reservedIDs are shape ids that collide with scope keywords.
var reservedIDs = map[string]bool{
	"parent": true,
	"self":   true,
}

// shapeIDRegex matches ids usable in scope references (`id.attr`).
var shapeIDRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateShapeID validates a shape id declared in a template.
//
// Ids must be usable as the first segment of a scope reference, so they
// follow identifier rules, and they may not shadow the `parent` or `self`
// keywords.
func ValidateShapeID(id string) error {
	if id == "" {
		return New(ErrCodePreset, "shape id cannot be empty")
	}
	if reservedIDs[id] {
		return New(ErrCodePreset, "shape id %q is reserved", id)
	}
	if !shapeIDRegex.MatchString(id) {
		return New(ErrCodePreset, "invalid shape id %q (letters, digits and underscores only)", id)
	}
	return nil
}

// ValidateTemplateName validates a template name used for selection.
func ValidateTemplateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return New(ErrCodeInvalidTemplate, "template name cannot be empty")
	}
	if len(name) > 256 {
		return New(ErrCodeInvalidTemplate, "template name too long (max 256 characters)")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidTemplate, "template name contains invalid control characters")
		}
	}
	return nil
}

// ValidatePath validates a resource path referenced by a template (image
// sources, masks, fonts) when templates come from an untrusted caller such
// as the HTTP service.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative to the resource root)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
		}
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// imageFormats are the frame encodings supported for output.
var imageFormats = map[string]bool{"png": true, "jpeg": true, "jpg": true}

// ValidateImageFormat checks that format is a supported output encoding.
func ValidateImageFormat(format string) error {
	if !imageFormats[strings.ToLower(format)] {
		return New(ErrCodeInvalidFormat, "invalid image format %q (must be 'png' or 'jpeg')", format)
	}
	return nil
}
