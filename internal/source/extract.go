package source

import (
	"strings"

	"golang.org/x/net/html"
)

// tags whose subtrees carry no readable article text
var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"aside":    true,
	"form":     true,
	"iframe":   true,
	"svg":      true,
}

// block-level tags that end a text run
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "blockquote": true, "br": true, "tr": true,
}

// ExtractText pulls the readable text out of an HTML document. Boilerplate
// subtrees (navigation, scripts, chrome) are skipped; block boundaries become
// line breaks and whitespace is collapsed.
func ExtractText(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	// Prefer the article/main subtree when the page marks one up.
	root := findContentRoot(doc)

	var b strings.Builder
	walk(root, &b)
	return collapse(b.String())
}

func findContentRoot(doc *html.Node) *html.Node {
	for _, tag := range []string{"article", "main"} {
		if n := findElement(doc, tag); n != nil {
			return n
		}
	}
	return doc
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

func walk(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode && skippedTags[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, b)
	}
	if n.Type == html.ElementNode && blockTags[n.Data] {
		b.WriteString("\n")
	}
}

// collapse normalizes whitespace: runs of spaces become one space, blank
// lines are dropped
func collapse(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
