package models

import (
	"mime"
	"path"
	"strings"
	"time"
)

type AssetCategory string

const (
	CategoryModel    AssetCategory = "model"
	CategoryImage    AssetCategory = "image"
	CategoryVideo    AssetCategory = "video"
	CategoryDocument AssetCategory = "document"
)

var categoryByExtension = map[string]AssetCategory{
	"glb":  CategoryModel,
	"gltf": CategoryModel,
	"png":  CategoryImage,
	"jpg":  CategoryImage,
	"jpeg": CategoryImage,
	"svg":  CategoryImage,
	"mp4":  CategoryVideo,
	"webm": CategoryVideo,
	"pdf":  CategoryDocument,
}

// companionExtensions maps a model encoding to the sibling encodings it pairs
// with. Two assets of the same owner whose names differ only in one of these
// extensions are alternate encodings of the same scene.
var companionExtensions = map[string][]string{
	"glb":  {"gltf"},
	"gltf": {"glb"},
}

// CategoryForExtension classifies a lowercase file extension (no dot).
// Unknown extensions fall through to the document category.
func CategoryForExtension(ext string) AssetCategory {
	if cat, ok := categoryByExtension[strings.ToLower(ext)]; ok {
		return cat
	}
	return CategoryDocument
}

// Extension returns the lowercase extension of a file name without the dot.
func Extension(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(fileName), "."))
}

// CompanionNames returns the sibling file names a model asset pairs with,
// or nil when the name carries no paired model extension.
func CompanionNames(fileName string) []string {
	ext := Extension(fileName)
	siblings, ok := companionExtensions[ext]
	if !ok {
		return nil
	}
	base := strings.TrimSuffix(fileName, path.Ext(fileName))
	names := make([]string, 0, len(siblings))
	for _, sib := range siblings {
		names = append(names, base+"."+sib)
	}
	return names
}

// ContentTypeForKey infers a MIME type from an object key's extension,
// used when the store carries no content type for the object.
func ContentTypeForKey(key string) string {
	switch Extension(key) {
	case "glb":
		return "model/gltf-binary"
	case "gltf":
		return "model/gltf+json"
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

type Asset struct {
	Key             string
	OwnerID         string
	DisplayName     string
	Category        AssetCategory
	SizeBytes       int64
	IsPublic        bool
	IsAdminUpload   bool
	UploadedByAdmin *string
	CompanionKey    *string
	CreatedAt       time.Time
}

// AdminShared reports whether the asset is globally shared admin content,
// readable by any authenticated user and exempt from quota accounting.
func (a Asset) AdminShared() bool {
	return a.IsPublic && a.IsAdminUpload
}
