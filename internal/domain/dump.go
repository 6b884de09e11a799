package domain

import (
	"fmt"
	"strings"
)

// FormatTree renders the forest as indented text, one line per node, for
// diagnostics dumps. The rendering is stable for identical trees so dumps
// can be diffed.
func FormatTree(roots []*UiElement) string {
	var b strings.Builder
	for _, root := range roots {
		writeNode(&b, root, 0)
	}
	return b.String()
}

func writeNode(b *strings.Builder, el *UiElement, depth int) {
	if el == nil {
		return
	}
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(shortClass(el.ClassName))
	if el.Identifier != "" {
		fmt.Fprintf(b, " id=%s", el.Identifier)
	}
	if el.Text != "" {
		fmt.Fprintf(b, " text=%q", el.Text)
	}
	fmt.Fprintf(b, " [%d,%d][%d,%d]", el.Bounds.Left, el.Bounds.Top, el.Bounds.Right, el.Bounds.Bottom)
	b.WriteString(" " + flagString(el))
	b.WriteByte('\n')
	for _, child := range el.Children {
		writeNode(b, child, depth+1)
	}
}

// shortClass trims the package part of an Android class name,
// "android.widget.Button" -> "Button".
func shortClass(className string) string {
	if className == "" {
		return "node"
	}
	if i := strings.LastIndexByte(className, '.'); i >= 0 && i+1 < len(className) {
		return className[i+1:]
	}
	return className
}

func flagString(el *UiElement) string {
	flags := make([]byte, 0, 4)
	if el.Clickable {
		flags = append(flags, 'c')
	}
	if el.Checkable {
		flags = append(flags, 'k')
	}
	if el.Enabled {
		flags = append(flags, 'e')
	}
	if el.Visible {
		flags = append(flags, 'v')
	}
	if len(flags) == 0 {
		return "-"
	}
	return string(flags)
}
