package normalize

import (
	"regexp"
	"strings"
)

var multiSpace = regexp.MustCompile(`[\s\p{Zs}]+`)

// HeaderKey collapses embedded line breaks and whitespace runs, no-break
// spaces included, to a single space and trims the result. Header cells often wrap inside the table cell
// ("Site of\nService\nAmount"), so every lookup goes through this first.
func HeaderKey(s string) string {
	return strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
}
