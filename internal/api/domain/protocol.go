package domain

import "net/url"

// localScheme transfers cannot be relayed between two remote endpoints.
const localScheme = "file"

// ValidPair reports whether a (source, destination) URL pair is schedulable.
// Both URLs must carry a non-local scheme, and the schemes must either match
// or one side must be "srm": srm endpoints negotiate the actual transfer
// protocol themselves, so they pair with any other scheme.
func ValidPair(source, destination string) bool {
	src, err := url.Parse(source)
	if err != nil {
		return false
	}
	dst, err := url.Parse(destination)
	if err != nil {
		return false
	}

	if src.Scheme == "" || src.Scheme == localScheme {
		return false
	}
	if dst.Scheme == "" || dst.Scheme == localScheme {
		return false
	}

	return src.Scheme == dst.Scheme || src.Scheme == "srm" || dst.Scheme == "srm"
}

// StorageEndpoint reduces a transfer URL to the storage endpoint it lives
// on: scheme plus host, with port, path and query stripped.
func StorageEndpoint(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Hostname()
}
