// Package site serves what sits behind the gate: either the embedded
// static site or a reverse-proxied upstream origin.
package site

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed dist/*
var content embed.FS

const (
	indexPage  = "index.html"
	deniedPage = "access-denied.html"
)

// Handler returns an http.Handler that serves the embedded site.
//
// denialPath serves the access-denied page whatever its configured name.
// Existing files are served as-is, "/about" resolves to about.html when
// present, and any other path falls back to the index page.
func Handler(denialPath string) (http.Handler, error) {
	fsys, err := fs.Sub(content, "dist")
	if err != nil {
		return nil, fmt.Errorf("loading embedded site: %w", err)
	}

	indexBytes, err := fs.ReadFile(fsys, indexPage)
	if err != nil {
		return nil, fmt.Errorf("reading embedded %s: %w", indexPage, err)
	}
	deniedBytes, err := fs.ReadFile(fsys, deniedPage)
	if err != nil {
		return nil, fmt.Errorf("reading embedded %s: %w", deniedPage, err)
	}

	static := http.FileServer(http.FS(fsys))

	page := func(body []byte) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Cache-Control", "no-store")
			if r.Method == http.MethodHead {
				return
			}
			_, _ = w.Write(body)
		}
	}
	serveIndex := page(indexBytes)
	serveDenied := page(deniedBytes)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == denialPath {
			serveDenied(w, r)
			return
		}

		cleanPath := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		switch cleanPath {
		case "", ".", indexPage:
			serveIndex(w, r)
			return
		case deniedPage:
			serveDenied(w, r)
			return
		}

		if info, err := fs.Stat(fsys, cleanPath); err == nil && !info.IsDir() {
			static.ServeHTTP(w, r)
			return
		}
		if b, err := fs.ReadFile(fsys, cleanPath+".html"); err == nil {
			page(b)(w, r)
			return
		}

		serveIndex(w, r)
	}), nil
}
