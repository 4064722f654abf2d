package metadata

import "strings"

const (
	// TableNameAnnotation overrides the table an entity type maps to
	TableNameAnnotation = "Relational:TableName"
	// ColumnNameAnnotation overrides the column a property maps to
	ColumnNameAnnotation = "Relational:ColumnName"
)

// TableName returns the table an entity type maps to
func TableName(et *EntityType) string {
	if v, ok := et.FindAnnotation(TableNameAnnotation); ok {
		if name, ok := v.(string); ok && name != "" {
			return name
		}
	}
	return ToSnakeCase(et.Name())
}

// ColumnName returns the column a property maps to
func ColumnName(p *Property) string {
	if v, ok := p.FindAnnotation(ColumnNameAnnotation); ok {
		if name, ok := v.(string); ok && name != "" {
			return name
		}
	}
	return ToSnakeCase(p.Name())
}

// ColumnNames returns the columns of props in order
func ColumnNames(props []*Property) []string {
	names := make([]string, len(props))
	for i, p := range props {
		names[i] = ColumnName(p)
	}
	return names
}

// PropertyNames joins property names with ", "
func PropertyNames(props []*Property) string {
	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.name
	}
	return strings.Join(names, ", ")
}

// ToSnakeCase converts PascalCase or camelCase to snake_case, keeping acronyms together
// ("CustomerID" -> "customer_id", "HTTPServer" -> "http_server").
func ToSnakeCase(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if r == ' ' || r == '-' {
			result = append(result, '_')
			continue
		}
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			if prev >= 'a' && prev <= 'z' || prev >= '0' && prev <= '9' {
				result = append(result, '_')
			} else if i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' && prev != ' ' && prev != '-' {
				result = append(result, '_')
			}
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}
