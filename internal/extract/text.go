package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// invisible lists elements whose text is never shown to a reader.
var invisible = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Svg:      true,
	atom.Img:      true,
	atom.Template: true,
}

// VisibleText returns the human-visible text of an HTML document with runs
// of whitespace collapsed to single spaces. Script, style, header and footer
// content is dropped, as is any element hidden with an inline display:none
// or visibility:hidden style.
func VisibleText(document string) string {
	root, err := html.Parse(strings.NewReader(document))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			if invisible[n.DataAtom] || hiddenByStyle(n) {
				return
			}
		case html.CommentNode, html.DoctypeNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return strings.Join(strings.Fields(b.String()), " ")
}

func hiddenByStyle(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key != "style" {
			continue
		}
		style := strings.ToLower(strings.Join(strings.Fields(attr.Val), ""))
		return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
	}
	return false
}
