package jsonschema

import (
	"net/url"
	"path"
	"strings"
)

// isAbsoluteURI reports whether urlStr is an absolute URI per RFC 3986
// (has both a scheme and an authority).
func isAbsoluteURI(urlStr string) bool {
	u, err := url.Parse(urlStr)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// isValidURI verifies the string parses as a URI reference at all.
func isValidURI(s string) bool {
	_, err := url.ParseRequestURI(s)
	return err == nil
}

// resolveRelativeURI merges relativeURL against baseURI per RFC 3986 §5.3.
// If relativeURL is already absolute it is returned unchanged; if baseURI
// fails to parse as an absolute URI the relative form is returned as-is so
// callers can surface a ReferenceResolutionError further up the stack.
func resolveRelativeURI(baseURI, relativeURL string) string {
	if isAbsoluteURI(relativeURL) {
		return relativeURL
	}
	base, err := url.Parse(baseURI)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return relativeURL
	}
	rel, err := url.Parse(relativeURL)
	if err != nil {
		return relativeURL
	}
	return base.ResolveReference(rel).String()
}

// getBaseURI derives the base URI a child resource inherits from a
// resource whose $id/id is id: the directory component of id, used when
// resolving further relative references found within that resource.
func getBaseURI(id string) string {
	if id == "" {
		return ""
	}
	u, err := url.Parse(id)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	if strings.HasSuffix(u.Path, "/") {
		return u.String()
	}
	u.Path = path.Dir(u.Path)
	if u.Path == "." {
		u.Path = "/"
	}
	if u.Path != "/" && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// getURLScheme extracts the scheme of a URI, "" if it doesn't parse.
func getURLScheme(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Scheme
}

// splitRef splits a $ref/$dynamicRef value into its base-URI and fragment
// parts. The fragment does not include the leading '#'.
func splitRef(ref string) (baseURI string, fragment string) {
	parts := strings.SplitN(ref, "#", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return ref, ""
}

// isJSONPointerFragment reports whether a fragment (without leading '#')
// is a JSON Pointer rather than a plain-name anchor.
func isJSONPointerFragment(fragment string) bool {
	return fragment == "" || strings.HasPrefix(fragment, "/")
}
