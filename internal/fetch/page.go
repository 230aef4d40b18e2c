// Package fetch provides the page-fetch capability the extraction pipeline
// consumes: a fetched Page exposes CSS-selector lookup, element text, and
// link resolution, so one extractor serves every backend.
package fetch

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Page is a fetched, parsed document.
type Page interface {
	// URL returns the address the page was fetched from.
	URL() string
	// Find returns all elements matching a CSS selector.
	Find(selector string) []Element
	// Text returns the visible text of the whole document.
	Text() string
	// Title returns the document <title> text.
	Title() string
	// Meta returns the content of a <meta> tag by name or property.
	Meta(name string) string
	// ResolveLink resolves an href against the page URL.
	ResolveLink(href string) string
}

// Element is one matched node within a Page.
type Element interface {
	Text() string
	Attr(name string) string
	Find(selector string) []Element
}

// Parse builds a Page from raw HTML.
func Parse(pageURL, html string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse %s", pageURL)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse url %s", pageURL)
	}
	return &htmlPage{doc: doc, url: pageURL, base: base}, nil
}

type htmlPage struct {
	doc  *goquery.Document
	url  string
	base *url.URL
}

func (p *htmlPage) URL() string { return p.url }

func (p *htmlPage) Find(selector string) []Element {
	var out []Element
	p.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, &htmlElement{sel: sel})
	})
	return out
}

func (p *htmlPage) Text() string {
	return normalizeSpace(p.doc.Find("body").Text())
}

func (p *htmlPage) Title() string {
	return strings.TrimSpace(p.doc.Find("title").First().Text())
}

func (p *htmlPage) Meta(name string) string {
	sel := p.doc.Find(`meta[name="` + name + `"]`).First()
	if sel.Length() == 0 {
		sel = p.doc.Find(`meta[property="` + name + `"]`).First()
	}
	content, _ := sel.Attr("content")
	return strings.TrimSpace(content)
}

func (p *htmlPage) ResolveLink(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.base.ResolveReference(ref).String()
}

type htmlElement struct {
	sel *goquery.Selection
}

func (e *htmlElement) Text() string {
	return normalizeSpace(e.sel.Text())
}

func (e *htmlElement) Attr(name string) string {
	v, _ := e.sel.Attr(name)
	return strings.TrimSpace(v)
}

func (e *htmlElement) Find(selector string) []Element {
	var out []Element
	e.sel.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, &htmlElement{sel: sel})
	})
	return out
}

// normalizeSpace collapses runs of whitespace into single spaces but keeps
// newlines, which the list splitters rely on.
func normalizeSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// FirstText returns the trimmed text of the first element matching selector,
// or "" when nothing matches.
func FirstText(p Page, selector string) string {
	els := p.Find(selector)
	if len(els) == 0 {
		return ""
	}
	return els[0].Text()
}
