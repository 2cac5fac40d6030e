package web

import (
	"fmt"
	"html"
	"io/fs"
	"mime"
	"net/url"
	pathpkg "path"
	"slices"
	"strings"

	"http1d/application/http"
	"http1d/application/http/actor/server"
	"http1d/application/http/status"

	"github.com/pkg/errors"
)

// FileApp serves the files of FS. Directories are answered with their
// index.html when present and with a generated listing otherwise.
type FileApp struct {
	FS fs.FS

	// MapBareNamesToHTML serves "/about" from "about.html" when that file
	// exists and the path has no extension.
	MapBareNamesToHTML bool
}

var _ server.Dispatcher = (*FileApp)(nil)

// Media types that differ from what the mime package reports, keyed by
// lower case extension. The empty extension is the fallback.
var mediaTypeOverrides = map[string]string{
	"":     "text/plain",
	".bz2": "application/x-bzip2",
	".gz":  "application/gzip",
	".sh":  "text/plain", // show instead of download.
	".xz":  "application/x-xz",
	".z":   "application/octet-stream",
}

func (a *FileApp) Dispatch(c *server.HandleContext, req *http.Request) (*http.Response, error) {
	if err := req.AllowMethods(http.MethodGet, http.MethodHead); err != nil {
		return nil, err
	}

	urlPath, err := req.Path()
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(urlPath, "/") {
		return nil, status.Errorf(status.BadRequest, "Path is not absolute")
	}

	normPath := normURLPath(urlPath)
	if strings.Contains(normPath, "..") {
		return nil, status.NewError(nil, status.Forbidden)
	}

	name := fsName(normPath)
	if a.MapBareNamesToHTML && !strings.HasSuffix(normPath, "/") && pathpkg.Ext(name) == "" {
		if info, err := fs.Stat(a.FS, name+".html"); err == nil && info.Mode().IsRegular() {
			name += ".html"
		}
	}

	info, err := fs.Stat(a.FS, name)
	if err != nil {
		return nil, notFound(err, name)
	}

	if info.IsDir() {
		if !strings.HasSuffix(normPath, "/") {
			location := normPath + "/"
			if q := req.RawQuery(); q != "" {
				location += "?" + q
			}
			return nil, status.NewError(nil, status.MovedPermanently).WithHeader("Location", location)
		}

		index := pathpkg.Join(name, "index.html")
		if _, err := fs.Stat(a.FS, index); err != nil {
			return a.listDirectory(c, name, urlPath)
		}
		name = index
	}

	return a.serveFile(name)
}

func (a *FileApp) serveFile(name string) (*http.Response, error) {
	f, err := a.FS.Open(name)
	if err != nil {
		return nil, notFound(err, name)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat %s", name)
	}

	headers := http.Headers{
		{Name: "Content-Type", Value: MediaTypeOf(name)},
		{Name: "Last-Modified", Value: info.ModTime().UTC().Format(http.TimeFormat)},
	}
	resp, err := http.NewFileResponse(status.OK, headers, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return resp, nil
}

func (a *FileApp) listDirectory(c *server.HandleContext, name, displayPath string) (*http.Response, error) {
	entries, err := fs.ReadDir(a.FS, name)
	if err != nil {
		c.Logger().Info("failed to list directory", "dir", name, "error", err.Error())
		return nil, status.NewError(err, status.NotFound)
	}

	slices.SortFunc(entries, func(x, y fs.DirEntry) int {
		return strings.Compare(strings.ToLower(x.Name()), strings.ToLower(y.Name()))
	})

	title := html.EscapeString(displayPath)

	parts := []string{
		"<!DOCTYPE html>\n<html>",
		fmt.Sprintf("<head>\n<meta charset=\"utf-8\" />\n<title>%s</title>\n</head>", title),
		fmt.Sprintf("<body>\n<h1>%s</h1>", title),
		"<hr>\n<ul>",
	}
	for _, e := range entries {
		href := url.PathEscape(e.Name())
		text := e.Name()
		if e.IsDir() {
			href += "/"
			text += "/"
		}
		parts = append(parts, fmt.Sprintf("<li><a href=\"%s\">%s</a></li>", href, html.EscapeString(text)))
	}
	parts = append(parts, "</ul>\n<hr>\n</body>\n</html>\n")

	headers := http.Headers{{Name: "Content-Type", Value: http.MediaTypeHTML}}
	return http.NewResponse(status.OK, headers, []byte(strings.Join(parts, "\n")))
}

// MediaTypeOf guesses the media type of a file from its extension.
func MediaTypeOf(name string) string {
	ext := strings.ToLower(pathpkg.Ext(name))
	if t, ok := mediaTypeOverrides[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return mediaTypeOverrides[""]
}

// normURLPath collapses empty and "." segments and resolves ".." segments
// without going above the root. A trailing slash is kept.
func normURLPath(p string) string {
	clean := pathpkg.Clean(p)
	if clean != "/" && strings.HasSuffix(p, "/") {
		clean += "/"
	}
	return clean
}

// fsName turns a normalized absolute URL path into an [fs.FS] name.
func fsName(normPath string) string {
	name := strings.Trim(normPath, "/")
	if name == "" {
		return "."
	}
	return name
}

func notFound(err error, name string) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrInvalid) {
		return status.NewError(err, status.NotFound)
	}
	return errors.Wrapf(err, "opening %s", name)
}
