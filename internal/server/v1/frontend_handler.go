package v1

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/chat-relay/pkg/api"
)

const indexFile = "index.html"

// FrontendHandler serves the built single page app for every unmatched route.
type FrontendHandler struct {
	dir string
}

func NewFrontendHandler(dir string) *FrontendHandler {
	return &FrontendHandler{dir: dir}
}

// Serve answers unknown API paths with a JSON 404, existing files from the
// static directory as is, and everything else with index.html.
func (h *FrontendHandler) Serve(c *gin.Context) {
	urlPath := c.Request.URL.Path
	if urlPath == "/api" || strings.HasPrefix(urlPath, "/api/") {
		_ = c.Error(api.NotFoundError("API route not found"))
		return
	}

	if h.dir != "" {
		if file, ok := h.lookup(urlPath); ok {
			c.File(file)
			return
		}
		if index, ok := h.lookup("/" + indexFile); ok {
			c.File(index)
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"message": "Frontend not available"})
}

// lookup resolves urlPath inside the static directory and reports whether it
// names a regular file. Cleaning against "/" keeps ".." segments inside dir.
func (h *FrontendHandler) lookup(urlPath string) (string, bool) {
	rel := path.Clean("/" + urlPath)
	if rel == "/" {
		return "", false
	}

	file := filepath.Join(h.dir, filepath.FromSlash(rel))
	info, err := os.Stat(file)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return file, true
}
