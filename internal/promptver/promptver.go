// Package promptver extracts prompt versions from prompt content. Every
// prompt declares its version on the first line as "version=N"; a missing
// or empty header is an error, because all cache-key computation for the
// step depends on the version.
package promptver

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedVersion marks an empty, missing, or unparseable version
// header. Callers must not silently default past it.
var ErrMalformedVersion = errors.New("malformed prompt version header")

const headerPrefix = "version="

// Extract returns the version declared on the first line of a prompt.
func Extract(promptContent string) (string, error) {
	if promptContent == "" {
		return "", fmt.Errorf("%w: prompt content is empty", ErrMalformedVersion)
	}

	firstLine, _, _ := strings.Cut(promptContent, "\n")
	firstLine = strings.TrimSpace(firstLine)
	if !strings.HasPrefix(firstLine, headerPrefix) {
		return "", fmt.Errorf("%w: no version header on first line %q", ErrMalformedVersion, firstLine)
	}

	version := strings.TrimSpace(strings.TrimPrefix(firstLine, headerPrefix))
	if version == "" {
		return "", fmt.Errorf("%w: version is empty", ErrMalformedVersion)
	}
	return version, nil
}

// TrackVersions extracts the version of every prompt in the set, keyed by
// prompt name. Fails on the first malformed header.
func TrackVersions(prompts map[string]string) (map[string]string, error) {
	versions := make(map[string]string, len(prompts))
	for name, content := range prompts {
		version, err := Extract(content)
		if err != nil {
			return nil, fmt.Errorf("prompt %q: %w", name, err)
		}
		versions[name] = version
	}
	return versions, nil
}

// Strip removes the version header line from prompt content, returning
// the renderable prompt body.
func Strip(promptContent string) string {
	firstLine, rest, found := strings.Cut(promptContent, "\n")
	if strings.HasPrefix(strings.TrimSpace(firstLine), headerPrefix) {
		if !found {
			return ""
		}
		return strings.TrimPrefix(rest, "\n")
	}
	return promptContent
}
