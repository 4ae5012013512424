package constants

import "strings"

// MaxPromptPhotos caps the number of signed photo URLs included in one
// generation prompt.
const MaxPromptPhotos = 8

// AllowedPhotoExtensions holds the accepted extensions for job photo uploads.
var AllowedPhotoExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"heic": {},
	"webp": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
