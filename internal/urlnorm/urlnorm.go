// Package urlnorm canonicalizes URLs and extracts in-domain hyperlinks
// from fetched page bodies. The canonical form produced by Canonicalize
// is the identity key for web graph nodes: two URLs that canonicalize to
// the same string denote the same page.
package urlnorm

import (
	"regexp"
	"strings"
)

// hrefPattern captures the double-quoted target of anchors written as
// <a href="...">, with href as the tag's first attribute. Single-quoted
// and unquoted hrefs are intentionally not matched.
var hrefPattern = regexp.MustCompile(`(?i)<a href="(.*?)"`)

// webPrefixes are stripped from the front of a URL, each at most once,
// in this order.
var webPrefixes = []string{"http://", "https://", "www."}

// invalidSymbols are removed from URLs wherever they occur.
var invalidSymbols = []string{`"`, "”", "'", "&"}

// hrefDelimiters cut an extracted href at the first fragment, parameter
// separator, or entity ampersand.
var hrefDelimiters = []string{"#", ";", "&"}

// fileExtensions lists suffixes of resources that are never HTML pages.
// Membership is tested against the substring from the last dot onward.
var fileExtensions = map[string]struct{}{
	".jpg":     {},
	".jpeg":    {},
	".js":      {},
	".ico":     {},
	".css":     {},
	".png":     {},
	".pdf":     {},
	".rar":     {},
	".zip":     {},
	".doc":     {},
	".docx":    {},
	".xls":     {},
	".xlsx":    {},
	".mp3":     {},
	".djvu":    {},
	".rtf":     {},
	".ppt":     {},
	".txt":     {},
	".pptx":    {},
	".gz":      {},
	".gif":     {},
	".xml":     {},
	".tif":     {},
	".tiff":    {},
	".flv":     {},
	".avi":     {},
	".mkv":     {},
	".flac":    {},
	".ogg":     {},
	".mp4":     {},
	".exe":     {},
	".msi":     {},
	".deb":     {},
	".zip.001": {},
	".zip.002": {},
	".svg":     {},
	".odt":     {},
	".7z":      {},
	".ppsx":    {},
}

// Canonicalize reduces a URL to its canonical node-identity form:
// lowercased, scheme and www prefixes stripped, trailing slash stripped,
// percent-escapes decoded, and quoting punctuation removed.
func Canonicalize(url string) string {
	url = strings.ToLower(url)
	url = StripWebPrefixes(url)
	url = TrimURL(url)
	url = DecodeURL(url)
	return RemoveInvalidSymbols(url)
}

// TrimURL removes a single trailing slash.
func TrimURL(url string) string {
	return strings.TrimSuffix(url, "/")
}

// StripWebPrefixes removes the leading http://, https://, and www.
// prefixes, each at most once.
func StripWebPrefixes(url string) string {
	for _, prefix := range webPrefixes {
		url = strings.TrimPrefix(url, prefix)
	}
	return url
}

// DecodeURL replaces every %XX escape with the byte it encodes. A percent
// sign not followed by two hex digits is copied through unchanged, which
// keeps the function total. A decoded result may itself contain a valid
// escape ("%2541" decodes to "%41"), so repeated decoding can change it.
func DecodeURL(url string) string {
	var b strings.Builder
	b.Grow(len(url))

	for i := 0; i < len(url); i++ {
		if url[i] == '%' && i+2 < len(url) {
			hi, okHi := hexVal(url[i+1])
			lo, okLo := hexVal(url[i+2])
			if okHi && okLo {
				b.WriteByte(hi<<4 | lo)
				i += 2
				continue
			}
		}
		b.WriteByte(url[i])
	}

	return b.String()
}

func hexVal(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// RemoveInvalidSymbols deletes double quotes, right double quotation
// marks, single quotes, and ampersands.
func RemoveInvalidSymbols(url string) string {
	for _, symbol := range invalidSymbols {
		url = strings.ReplaceAll(url, symbol, "")
	}
	return url
}

// ExtractAndFilterLinks scans an HTML body for anchor hrefs and returns
// the in-domain page URLs they resolve to, in textual order. Duplicates
// are preserved: a page linking to the same target three times yields
// three entries, which the graph records as parallel edges.
//
// rootURL is the form the graph stores for the seed (scheme and www
// intact) and is prepended to site-relative hrefs; strippedRootURL is
// the same URL without scheme and www, used for the in-domain test.
func ExtractAndFilterLinks(body, rootURL, strippedRootURL string) []string {
	matches := hrefPattern.FindAllStringSubmatch(body, -1)

	urls := make([]string, 0, len(matches))
	for _, match := range matches {
		url := strings.ToLower(match[1])

		if isRootOrInvalid(url) || isFile(url) {
			continue
		}

		if url[0] == '/' {
			// Site-relative link, concat with root.
			url = rootURL + url
		}

		if !isHTTPURL(url) || !inDomain(url, strippedRootURL) {
			continue
		}

		url = stripURLAdditions(url)
		url = RemoveInvalidSymbols(url)
		url = DecodeURL(url)

		urls = append(urls, url)
	}

	return urls
}

// isRootOrInvalid rejects empty hrefs, the bare site root, hrefs whose
// first character can begin neither a path nor a hostname, and mailto
// links.
func isRootOrInvalid(url string) bool {
	if url == "" || url == "/" {
		return true
	}

	if c := url[0]; c != '/' && !isAlNum(c) {
		return true
	}

	return strings.HasPrefix(url, "mailto:")
}

func isAlNum(c byte) bool {
	return ('a' <= c && c <= 'z') || ('0' <= c && c <= '9')
}

// isFile reports whether the URL names a non-HTML resource, judged by
// its extension.
func isFile(url string) bool {
	dot := strings.LastIndexByte(url, '.')
	if dot < 0 {
		return false
	}

	_, ok := fileExtensions[url[dot:]]
	return ok
}

func isHTTPURL(url string) bool {
	return strings.HasPrefix(url, "http:/") || strings.HasPrefix(url, "https:/")
}

// inDomain reports whether strippedRootURL occurs in url immediately
// preceded by a dot or slash, so blog.example.com and example.com/blog
// qualify while evilexample.com does not.
func inDomain(url, strippedRootURL string) bool {
	idx := strings.Index(url, strippedRootURL)
	return idx > 0 && (url[idx-1] == '.' || url[idx-1] == '/')
}

// stripURLAdditions truncates the URL at the first fragment, semicolon
// parameter, or ampersand.
func stripURLAdditions(url string) string {
	for _, delim := range hrefDelimiters {
		if idx := strings.Index(url, delim); idx >= 0 {
			url = url[:idx]
		}
	}
	return url
}
