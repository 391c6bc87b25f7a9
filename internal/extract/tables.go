package extract

import (
	"regexp"
	"strings"

	"github.com/funcdeck-hq/funcdeck/pkg/model"
)

// name: defineTable(
var reTableDef = regexp.MustCompile(`(?m)^\s*([A-Za-z_$][\w$]*)\s*:\s*defineTable\s*\(`)

// Tables extracts table declarations from a schema definition file. Each
// `name: defineTable(...)` entry yields one descriptor; when the call is
// passed an object literal directly, its validator entries become the
// table's fields. A file with no declarations yields an empty slice.
func Tables(src string) []model.TableDescriptor {
	matches := reTableDef.FindAllStringSubmatchIndex(src, -1)
	tables := make([]model.TableDescriptor, 0, len(matches))

	for _, m := range matches {
		table := model.TableDescriptor{
			Name:   src[m[2]:m[3]],
			Fields: []model.FieldDescriptor{},
		}
		table.Fields = tableFields(src[m[1]:])
		tables = append(tables, table)
	}
	return tables
}

// tableFields parses the field validators of a defineTable body. rest
// begins right after the opening parenthesis. Anything other than an
// object literal argument yields no fields.
func tableFields(rest string) []model.FieldDescriptor {
	trimmed := strings.TrimLeft(rest, " \t\r\n")
	body, ok := balancedBraces(trimmed)
	if !ok {
		return []model.FieldDescriptor{}
	}

	entries := reArgEntry.FindAllStringSubmatch(body, -1)
	fields := make([]model.FieldDescriptor, 0, len(entries))
	for _, e := range entries {
		fields = append(fields, model.FieldDescriptor{
			Name:     e[1],
			Type:     e[3],
			Optional: e[2] != "",
		})
	}
	return fields
}
