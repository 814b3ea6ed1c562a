package extract

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// extractProse parses an HTML document and collects its paragraph
// text, preferring an <article> element over the whole body.
func extractProse(r io.Reader) (title, prose string, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", err
	}

	title = findTitle(doc)

	root := findElement(doc, atom.Article)
	if root == nil {
		root = findElement(doc, atom.Body)
	}
	if root == nil {
		return title, "", nil
	}

	var output []string
	collectParagraphs(root, &output)
	return title, strings.Join(output, "\n\n"), nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		return strings.TrimSpace(b.String())
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findTitle(c); res != "" {
			return res
		}
	}
	return ""
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findElement(c, a); res != nil {
			return res
		}
	}
	return nil
}

func collectParagraphs(n *html.Node, output *[]string) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Nav, atom.Header, atom.Footer, atom.Aside:
			return
		case atom.P:
			if text := cleanParagraph(n); text != "" {
				*output = append(*output, text)
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectParagraphs(c, output)
	}
}

func cleanParagraph(p *html.Node) string {
	var b strings.Builder
	traverseParagraph(p, &b)
	return strings.TrimSpace(b.String())
}

func traverseParagraph(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}

	if n.Type == html.ElementNode {
		// Skip citation markers and embedded scripts inside paragraphs.
		if n.DataAtom == atom.Sup || n.DataAtom == atom.Style || n.DataAtom == atom.Script {
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		traverseParagraph(c, b)
	}
}
