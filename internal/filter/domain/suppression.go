package domain

import "strings"

// StyleProperty is one CSS declaration applied to suppressed elements.
type StyleProperty struct {
	Name  string
	Value string
}

// SuppressionProperties is the declaration set forced on blocked elements.
var SuppressionProperties = []StyleProperty{
	{Name: "display", Value: "none"},
	{Name: "visibility", Value: "hidden"},
	{Name: "opacity", Value: "0"},
	{Name: "height", Value: "0"},
	{Name: "width", Value: "0"},
}

// SuppressionDeclarations renders the properties with !important, e.g.
// "display: none !important; visibility: hidden !important; ...".
func SuppressionDeclarations() string {
	parts := make([]string, 0, len(SuppressionProperties))
	for _, p := range SuppressionProperties {
		parts = append(parts, p.Name+": "+p.Value+" !important;")
	}
	return strings.Join(parts, " ")
}
