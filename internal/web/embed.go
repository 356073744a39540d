// Package web embeds the operator console page served on "/".
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
)

//go:embed dist/*
var staticFiles embed.FS

// GetFileSystem returns the embedded filesystem with the dist folder as root.
func GetFileSystem() (fs.FS, error) {
	return fs.Sub(staticFiles, "dist")
}

// RegisterStaticRoutes serves the console. API routes must be registered
// first; anything under /api that reaches here is a 404, not the page.
func RegisterStaticRoutes(e *echo.Echo) error {
	staticFS, err := GetFileSystem()
	if err != nil {
		return err
	}
	fileServer := http.FileServer(http.FS(staticFS))

	e.GET("/*", func(c echo.Context) error {
		requestPath := path.Clean(c.Request().URL.Path)
		if strings.HasPrefix(requestPath, "/api/") {
			return echo.ErrNotFound
		}

		name := strings.TrimPrefix(requestPath, "/")
		if name == "" || name == "." {
			return serveIndexHTML(c, staticFS)
		}
		if stat, err := fs.Stat(staticFS, name); err != nil || stat.IsDir() {
			return serveIndexHTML(c, staticFS)
		}

		fileServer.ServeHTTP(c.Response(), c.Request())
		return nil
	})

	return nil
}

func serveIndexHTML(c echo.Context, staticFS fs.FS) error {
	content, err := fs.ReadFile(staticFS, "index.html")
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "index.html not found")
	}
	return c.HTMLBlob(http.StatusOK, content)
}

// HasEmbeddedFiles returns true if the console page has been embedded.
func HasEmbeddedFiles() bool {
	_, err := fs.Stat(staticFiles, "dist/index.html")
	return err == nil
}
