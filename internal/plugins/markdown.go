package plugins

import (
	"bytes"
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"git.home.luguber.info/inful/bundler/internal/compiler"
	"git.home.luguber.info/inful/bundler/internal/errors"
)

// Markdown renders .md assets to HTML right before emission. The markdown
// asset is replaced by its .html counterpart in the same compilation.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown returns a markdown renderer plugin with GitHub-flavored
// extensions enabled.
func NewMarkdown() *Markdown {
	return &Markdown{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (p *Markdown) Name() string { return "markdown" }

func (p *Markdown) Apply(c *compiler.Compiler) error {
	return c.Hooks.Emit.Tap(p.Name(), p.renderAssets)
}

func (p *Markdown) renderAssets(ctx context.Context, comp *compiler.Compilation) error {
	for _, name := range comp.AssetNames() {
		if !strings.HasSuffix(name, ".md") {
			continue
		}
		asset, ok := comp.Asset(name)
		if !ok {
			continue
		}
		var buf bytes.Buffer
		if err := p.md.Convert(asset.Source, &buf); err != nil {
			return errors.EmitFailed(name, err)
		}
		comp.ReplaceAsset(name, strings.TrimSuffix(name, ".md")+".html", buf.Bytes())
	}
	return nil
}
