// Package textseg splits long text into bounded chunks at natural
// break points, preferring sentence endings over paragraph breaks,
// line breaks and plain spaces, in that order.
package textseg

import (
	"fmt"
	"strings"
)

// OversizePolicy decides what happens to a run of text that contains
// no break point and exceeds the chunk size on its own.
type OversizePolicy int

const (
	// OversizeKeep forwards the oversized run verbatim rather than
	// truncating it silently. Providers with hard input limits will
	// reject it with a visible error.
	OversizeKeep OversizePolicy = iota
	// OversizeReject fails the split instead of forwarding a chunk
	// the provider may not accept.
	OversizeReject
)

// ParsePolicy maps a config string to an OversizePolicy.
func ParsePolicy(s string) (OversizePolicy, error) {
	switch s {
	case "", "keep":
		return OversizeKeep, nil
	case "reject":
		return OversizeReject, nil
	}
	return OversizeKeep, fmt.Errorf("unknown oversize policy %q", s)
}

var sentenceEnders = []string{". ", "! ", "? "}

// Split divides text into ordered chunks of at most maxSize bytes,
// forwarding oversized unbreakable runs verbatim.
// Identical input always yields an identical sequence.
func Split(text string, maxSize int) []string {
	chunks, _ := SplitWithPolicy(text, maxSize, OversizeKeep)
	return chunks
}

// SplitWithPolicy is Split with explicit oversized-run handling.
func SplitWithPolicy(text string, maxSize int, policy OversizePolicy) ([]string, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("maxSize must be > 0, got %d", maxSize)
	}
	if len(text) <= maxSize {
		return []string{text}, nil
	}

	var chunks []string
	pos := 0
	for pos < len(text) {
		end := pos + maxSize
		if end >= len(text) {
			end = len(text)
		} else {
			var err error
			end, err = breakPoint(text, pos, end, policy)
			if err != nil {
				return nil, err
			}
		}

		chunk := strings.TrimSpace(text[pos:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		pos = end
	}
	return chunks, nil
}

// breakPoint finds where the chunk starting at pos should end, given
// the window limit. The returned index lies past the matched delimiter
// so it is not duplicated in the next chunk.
func breakPoint(text string, pos, limit int, policy OversizePolicy) (int, error) {
	window := text[pos:limit]

	// 1. Last sentence terminator in the window
	if idx := lastAny(window, sentenceEnders); idx > 0 {
		return pos + idx + 2, nil
	}
	// 2. Last paragraph break
	if idx := strings.LastIndex(window, "\n\n"); idx > 0 {
		return pos + idx + 2, nil
	}
	// 3. Last single line break
	if idx := strings.LastIndex(window, "\n"); idx > 0 {
		return pos + idx + 1, nil
	}
	// 4. Last space
	if idx := strings.LastIndex(window, " "); idx > 0 {
		return pos + idx + 1, nil
	}

	// No break point in the window: the run is a single unbreakable
	// atom. Extend to its real end and apply the oversize policy.
	atomEnd := limit + nextBreak(text[limit:])
	if policy == OversizeReject {
		return 0, fmt.Errorf("unbreakable run of %d bytes exceeds chunk size %d", atomEnd-pos, limit-pos)
	}
	return atomEnd, nil
}

// lastAny returns the highest index of any of the given substrings.
func lastAny(s string, subs []string) int {
	best := -1
	for _, sub := range subs {
		if idx := strings.LastIndex(s, sub); idx > best {
			best = idx
		}
	}
	return best
}

// nextBreak returns the offset of the first whitespace in s, or len(s).
func nextBreak(s string) int {
	if idx := strings.IndexAny(s, " \n\t"); idx >= 0 {
		return idx
	}
	return len(s)
}
