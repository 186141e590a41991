// Package content renders the static text blocks of the public page from
// embedded Markdown.
package content

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

//go:embed blocks/*.md
var blocksFS embed.FS

// Raw HTML in the input is escaped; WithUnsafe is not set.
var md = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

const (
	About        = "about"
	Registration = "registration"
	Rules        = "rules"
)

// Blocks holds every block rendered once at startup.
type Blocks map[string]template.HTML

// Load renders all embedded blocks.
func Load() (Blocks, error) {
	return load(blocksFS, "blocks")
}

func load(fsys fs.FS, dir string) (Blocks, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	out := Blocks{}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".md" {
			continue
		}
		src, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		html, err := Render(string(src))
		if err != nil {
			return nil, fmt.Errorf("content %s: %w", e.Name(), err)
		}
		out[strings.TrimSuffix(e.Name(), ".md")] = html
	}
	return out, nil
}

// Render converts Markdown to HTML safe to embed in a template.
func Render(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// Get returns the block or empty HTML when it is missing.
func (b Blocks) Get(name string) template.HTML {
	return b[name]
}
