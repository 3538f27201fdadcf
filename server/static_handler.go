package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// StaticHandler 提供浏览器端页面，未知路径回退到 index.html
type StaticHandler struct {
	root string
	fs   http.Handler
}

// NewStaticHandler 创建 StaticHandler 实例
func NewStaticHandler(root string) *StaticHandler {
	return &StaticHandler{root: root, fs: http.FileServer(http.Dir(root))}
}

// ServeHTTP 实现 http.Handler 接口
func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clean := path.Clean("/" + r.URL.Path)
	full := filepath.Join(h.root, filepath.FromSlash(clean))

	if info, err := os.Stat(full); err != nil || (info.IsDir() && !hasIndex(full)) {
		index := filepath.Join(h.root, "index.html")
		if _, err := os.Stat(index); err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, index)
		return
	}

	if ct := detectContentType(clean); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "no-cache")
	h.fs.ServeHTTP(w, r)
}

func hasIndex(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "index.html"))
	return err == nil
}

// detectContentType 根据扩展名检测内容类型，未知时交给 FileServer 自行判断
func detectContentType(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".js", ".mjs":
		return "text/javascript; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".html":
		return "text/html; charset=utf-8"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return ""
	}
}
