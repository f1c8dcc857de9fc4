package graph

import "strings"

// Render formats the call tree as indented text, one node per line,
// "file:name" with "?:" for external callees and an explicit cycle marker:
//
//	main.c:main
//	  main.c:add
//	  main.c:process_numbers
//	    main.c:add
//	    ?:print_result
func Render(t *Tree) []string {
	var lines []string
	for _, root := range t.Roots {
		lines = renderNode(lines, root, 0)
	}
	return lines
}

// RenderText joins the rendered lines into the persisted artifact body.
func RenderText(t *Tree) string {
	return strings.Join(Render(t), "\n")
}

func renderNode(lines []string, n *Node, depth int) []string {
	var sb strings.Builder
	sb.WriteString(strings.Repeat("  ", depth))
	if n.External || n.File == "" {
		sb.WriteString("?:")
	} else {
		sb.WriteString(n.File)
		sb.WriteString(":")
	}
	sb.WriteString(n.Name)
	if n.Cycle {
		sb.WriteString(" [cycle]")
	}
	lines = append(lines, sb.String())
	for _, c := range n.Children {
		lines = renderNode(lines, c, depth+1)
	}
	return lines
}
