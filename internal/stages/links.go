package stages

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// siteLink is one href/src reference extracted from a generated page.
type siteLink struct {
	Page string // site-relative page the link appears on
	URL  string
}

// extractLocalLinks parses an HTML file and returns the links that point
// inside the site (relative or root-relative, no scheme or host).
func extractLocalLinks(htmlPath, page string) ([]siteLink, error) {
	f, err := os.Open(filepath.Clean(htmlPath))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, err
	}

	var links []siteLink
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			attr := linkAttr(n.Data)
			if attr != "" {
				for _, a := range n.Attr {
					if a.Key == attr && isLocalLink(a.Val) {
						links = append(links, siteLink{Page: page, URL: a.Val})
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

func linkAttr(tag string) string {
	switch tag {
	case "a", "link":
		return "href"
	case "img", "script", "iframe", "source":
		return "src"
	default:
		return ""
	}
}

func isLocalLink(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, "data:") || strings.HasPrefix(raw, "mailto:") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

// resolveLink maps a local link on a page to a path under the site root.
// Directory links resolve to their index.html.
func resolveLink(siteDir, page, raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	p := u.Path
	if p == "" {
		return ""
	}
	var target string
	if strings.HasPrefix(p, "/") {
		target = filepath.Join(siteDir, filepath.FromSlash(strings.TrimPrefix(p, "/")))
	} else {
		target = filepath.Join(siteDir, filepath.Dir(filepath.FromSlash(page)), filepath.FromSlash(p))
	}
	if strings.HasSuffix(p, "/") {
		target = filepath.Join(target, "index.html")
	}
	return target
}
