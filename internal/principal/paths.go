package principal

import "strings"

// DefaultPrefix is the root segment of every principal path.
const DefaultPrefix = "principals"

// splitPath breaks a principal path into segments, discarding empties
// so "/principals/", "principals" and "principals/" all normalize the
// same way.
func splitPath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
