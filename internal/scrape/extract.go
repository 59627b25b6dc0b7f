// Package scrape fetches web pages and reduces them to title, meta
// description and visible text.
package scrape

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"memorypal/keeper/internal/capture"
	"memorypal/keeper/internal/textutil"
)

// Extract parses an HTML document into a capture.
func Extract(r io.Reader) (capture.Capture, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return capture.Capture{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var c capture.Capture
	c.Title = textutil.CollapseSpace(extractTitle(doc))
	c.Meta = strings.TrimSpace(extractMetaDescription(doc))

	root := findElement(doc, "body")
	if root == nil {
		root = doc
	}
	var b strings.Builder
	writeText(root, &b)
	c.Text = textutil.CollapseSpace(b.String())
	return c, nil
}

func extractTitle(n *html.Node) string {
	if t := findElement(n, "title"); t != nil {
		var b strings.Builder
		for c := t.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		return b.String()
	}
	return ""
}

func extractMetaDescription(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "meta" {
		var name, content string
		for _, a := range n.Attr {
			switch strings.ToLower(a.Key) {
			case "name":
				name = strings.ToLower(a.Val)
			case "content":
				content = a.Val
			}
		}
		if name == "description" {
			return content
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if d := extractMetaDescription(c); d != "" {
			return d
		}
	}
	return ""
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// writeText appends visible text, separating nodes with spaces.
func writeText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.CommentNode:
		return
	case html.TextNode:
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	case html.ElementNode:
		if isSkippedElement(n.Data) {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, b)
	}
}

func isSkippedElement(tagName string) bool {
	switch tagName {
	case "script", "style", "noscript", "template", "head", "iframe", "svg":
		return true
	}
	return false
}
