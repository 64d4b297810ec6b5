// ABOUTME: Builds the clipboard text describing one inspected element
// ABOUTME: The text names the component, where it is rendered from, and its props

package inspector

import (
	"fmt"
	"sort"
	"strings"
)

// Prompt describes el as plain text ready to paste into an editor or assistant.
func Prompt(el Element) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Component: %s\n", el.Component)
	if loc := location(el); loc != "" {
		fmt.Fprintf(&b, "Source: %s\n", loc)
	}
	fmt.Fprintf(&b, "Element: %s\n", el.ID)

	if len(el.Props) > 0 {
		keys := make([]string, 0, len(el.Props))
		for k := range el.Props {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("Props:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, el.Props[k])
		}
	}

	b.WriteString("\nI'm looking at this element on the rendered page. ")
	if el.Source != "" {
		b.WriteString("Please open the source above and ")
	} else {
		b.WriteString("Please find the template that renders it and ")
	}
	b.WriteString("help me change it.\n")
	return b.String()
}

func location(el Element) string {
	switch {
	case el.Source == "":
		return ""
	case el.Line > 0:
		return fmt.Sprintf("%s:%d", el.Source, el.Line)
	default:
		return el.Source
	}
}
