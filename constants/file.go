package constants

import "strings"

// AllowedExtensions holds the receipt extensions the pipeline picks up.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// RasterReferenceExts lists the template reference extensions eligible for a
// raster input, in lookup order.
var RasterReferenceExts = []string{"png", "jpg", "jpeg"}

// PDFReferenceExts lists the template reference extensions eligible for a PDF input.
var PDFReferenceExts = []string{"pdf"}

const ExtPDF = "pdf"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsPDF reports whether ext (with or without dot) names a PDF.
func IsPDF(ext string) bool {
	return NormalizeExt(ext) == ExtPDF
}

// IsRaster reports whether ext is one of the supported raster formats.
func IsRaster(ext string) bool {
	switch NormalizeExt(ext) {
	case "png", "jpg", "jpeg":
		return true
	}
	return false
}

// MIMEType maps an extension to the MIME type sent to the vision model.
// Unknown extensions fall back to image/jpeg.
func MIMEType(ext string) string {
	switch NormalizeExt(ext) {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "pdf":
		return "application/pdf"
	default:
		return "image/jpeg"
	}
}
