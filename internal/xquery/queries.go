package xquery

import (
	"fmt"
	"strings"
)

// Exists returns "true" when database exists.
func Exists(database string) string {
	return fmt.Sprintf("db:exists(%s)", Quote(database))
}

// Includes lists the file attributes of the include elements of a grinded
// database, one per line.
func Includes(database string) string {
	return fmt.Sprintf("string-join(db:open(%s)/treebank/include/@file ! string(.), '&#10;')", Quote(database))
}

// ParseIncludes splits the result of an Includes query.
func ParseIncludes(result string) []string {
	var files []string
	for _, line := range strings.Split(result, "\n") {
		if f := strings.TrimSpace(line); f != "" {
			files = append(files, f)
		}
	}
	return files
}

// Count returns the number of matches of pattern in an ungrinded database.
func Count(database, pattern string) string {
	return fmt.Sprintf("count(db:open(%s)/treebank%s)", Quote(database), rootedPattern(pattern))
}

// Tree returns the full tree of one sentence in an ungrinded database.
func Tree(database, sentenceID string) string {
	return fmt.Sprintf("db:open(%s)/treebank/alpino_ds[@id=%s]", Quote(database), Quote(sentenceID))
}
