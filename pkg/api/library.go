package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dixieflatline76/AetherDesk/pkg/wallpaper"
)

// LibraryEntry is a wallpaper file found in the library directory.
type LibraryEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Path string `json:"path"`
	URL  string `json:"url"`
}

// resolveLibraryPath joins name to the library root and enforces that the
// result stays inside it.
func resolveLibraryPath(root, name string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid library root: %w", err)
	}
	absRoot = filepath.Clean(absRoot)

	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	full := filepath.Clean(filepath.Join(absRoot, name))
	if !strings.HasPrefix(full, absRoot+string(os.PathSeparator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return full, nil
}

// handleLibrary lists the files of the library directory that can be shown as
// wallpapers. Paging: ?page=1&per_page=24.
func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	if s.opts.Library == "" {
		http.Error(w, "Library not configured", http.StatusNotFound)
		return
	}
	root, err := filepath.Abs(s.opts.Library)
	if err != nil {
		http.Error(w, "Invalid library", http.StatusInternalServerError)
		return
	}

	page, perPage := 1, 24
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if pp, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && pp > 0 {
		perPage = pp
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusOK, []LibraryEntry{})
			return
		}
		http.Error(w, "Failed to read library", http.StatusInternalServerError)
		return
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := wallpaper.TypeForPath(e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	start := min((page-1)*perPage, len(names))
	end := min(start+perPage, len(names))

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	result := make([]LibraryEntry, 0, end-start)
	for _, name := range names[start:end] {
		t, _ := wallpaper.TypeForPath(name)
		result = append(result, LibraryEntry{
			Name: name,
			Type: t.String(),
			Path: filepath.Join(root, name),
			URL:  fmt.Sprintf("%s://%s/library/assets/%s", scheme, r.Host, name),
		})
	}
	writeJSON(w, http.StatusOK, result)
}

// handleLibraryAsset serves one library file, for previews.
func (s *Server) handleLibraryAsset(w http.ResponseWriter, r *http.Request) {
	if s.opts.Library == "" {
		http.Error(w, "Library not configured", http.StatusNotFound)
		return
	}
	full, err := resolveLibraryPath(s.opts.Library, r.PathValue("name"))
	if err != nil {
		http.Error(w, "Invalid asset path", http.StatusBadRequest)
		return
	}
	http.ServeFile(w, r, full)
}
