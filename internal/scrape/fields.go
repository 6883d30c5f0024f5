package scrape

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

var authorNoise = regexp.MustCompile(`[^\w\s\-'À-ÿ]`)

// resolveURL resolves href against base, returning the absolute URL.
// Unparsable hrefs come back unchanged so they still de-duplicate.
func resolveURL(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// titleFromAnchor extracts a book title from a catalog anchor, trying
// increasingly generic sources. The catalog renders titles inside
// span.text, so that wins; the title attribute, the anchor text, and
// headings in or around the anchor are fallbacks. Anything under three
// characters is noise.
func titleFromAnchor(a *goquery.Selection) string {
	if t := strings.TrimSpace(a.Find("span.text").First().Text()); len(t) > 2 {
		return t
	}
	if t, ok := a.Attr("title"); ok {
		if t = strings.TrimSpace(t); len(t) > 2 {
			return t
		}
	}
	if t := strings.TrimSpace(a.Text()); len(t) > 2 {
		return t
	}
	for _, tag := range []string{"h1", "h2", "h3", "h4"} {
		if t := strings.TrimSpace(a.Find(tag).First().Text()); len(t) > 2 {
			return t
		}
	}
	if parent := a.Parent(); parent.Length() > 0 {
		for _, tag := range []string{"h1", "h2", "h3", "h4"} {
			if t := strings.TrimSpace(parent.Find(tag).First().Text()); len(t) > 2 {
				return t
			}
		}
	}
	return ""
}

// authorFromAnchor extracts an author name from a catalog anchor or
// its surroundings. Returns the empty string when nothing plausible is
// found; callers substitute model.UnknownAuthor.
func authorFromAnchor(a *goquery.Selection) string {
	scopes := []*goquery.Selection{a}
	if parent := a.Parent(); parent.Length() > 0 {
		scopes = append(scopes, parent)
	}

	for _, scope := range scopes {
		for _, sel := range []string{".author", ".book-author", ".by-author", "[data-author]"} {
			text := strings.TrimSpace(scope.Find(sel).First().Text())
			text = strings.ReplaceAll(text, "par ", "")
			text = strings.ReplaceAll(text, "by ", "")
			text = strings.TrimSpace(text)
			if len(text) > 1 {
				return text
			}
		}

		// Sibling text like "par Jane Doe" next to the anchor.
		parent := scope.Parent()
		if parent.Length() == 0 {
			continue
		}
		var found string
		parent.Find("p, span, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			lower := strings.ToLower(text)
			for _, keyword := range []string{"par ", "by ", "auteur: ", "de "} {
				if idx := strings.Index(lower, keyword); idx >= 0 {
					candidate := strings.TrimSpace(text[idx+len(keyword):])
					if candidate != "" {
						found = titleCase(candidate)
						return false
					}
				}
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// thumbnailFromAnchor finds cover art near a catalog anchor, preferring
// the anchor's own img and falling back to the parent's. Lazy-loaded
// images carry the real URL in data-src.
func thumbnailFromAnchor(a *goquery.Selection, base *url.URL) string {
	scopes := []*goquery.Selection{a}
	if parent := a.Parent(); parent.Length() > 0 {
		scopes = append(scopes, parent)
	}
	for _, scope := range scopes {
		img := scope.Find("img").First()
		if img.Length() == 0 {
			continue
		}
		src, ok := img.Attr("src")
		if !ok || src == "" {
			src, _ = img.Attr("data-src")
		}
		if src != "" {
			return resolveURL(base, src)
		}
	}
	return ""
}

// cleanAuthorName strips punctuation noise and normalizes whitespace
// in a regex-captured author name.
func cleanAuthorName(s string) string {
	s = authorNoise.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// plausibleName reports whether s looks like a real person's name:
// one to three words, two to fifty characters overall.
func plausibleName(s string) bool {
	words := strings.Fields(s)
	return len(words) >= 1 && len(words) <= 3 && len(s) >= 2 && len(s) <= 50
}

// capitalizedWords reports whether every word in s starts with an
// uppercase letter.
func capitalizedWords(s string) bool {
	for _, word := range strings.Fields(s) {
		r := []rune(word)[0]
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// titleCase uppercases the first letter of each word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		r := []rune(word)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
