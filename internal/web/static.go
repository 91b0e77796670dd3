package web

import (
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

const staticCacheControl = "public, max-age=3600"

// ServeEmbeddedStatic writes one file from the static/ directory of filesystem.
// Templates live beside it and are never reachable through this handler.
func ServeEmbeddedStatic(contextGin *gin.Context, filesystem fs.FS, name string) {
	assetPath, ok := staticAssetPath(name)
	if !ok {
		contextGin.AbortWithStatus(http.StatusNotFound)
		return
	}
	data, readErr := fs.ReadFile(filesystem, assetPath)
	if readErr != nil {
		contextGin.AbortWithStatus(http.StatusNotFound)
		return
	}
	contentType := mime.TypeByExtension(path.Ext(assetPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	contextGin.Header("Cache-Control", staticCacheControl)
	contextGin.Header("X-Content-Type-Options", "nosniff")
	contextGin.Data(http.StatusOK, contentType, data)
}

func staticAssetPath(name string) (string, bool) {
	cleaned := strings.TrimPrefix(path.Clean("/"+name), "/")
	if cleaned == "" || cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", false
	}
	return path.Join("static", cleaned), true
}
