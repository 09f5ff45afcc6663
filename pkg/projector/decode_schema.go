package projector

import (
	"fmt"

	"github.com/cuemby/gridfabric/pkg/grid"
)

const (
	tableGridSchemas            = "grid_schemas"
	tableGridPropertyDefinitions = "grid_property_definitions"
)

func decodeGridSchemas(_ string, value []byte) ([]Row, error) {
	schemas, err := decodeContainer(value, func() *grid.Schema { return &grid.Schema{} })
	if err != nil {
		return nil, err
	}
	var rows []Row
	for _, s := range schemas {
		cols, err := Flatten(struct {
			Name        string
			Description string
			OwnerOrgID  string
		}{s.Name, s.Description, s.OwnerOrgID})
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Table: tableGridSchemas, NaturalKey: s.NaturalKey(), Columns: cols})
		defRows, err := propertyDefinitionRows(s.Name, "", s.Properties)
		if err != nil {
			return nil, err
		}
		rows = append(rows, defRows...)
	}
	return rows, nil
}

// propertyDefinitionRows recursively flattens a Schema's (possibly nested,
// STRUCT-typed) property definitions into one row per definition, STRUCT
// parents included, keyed by schema name plus the definition's dotted path.
func propertyDefinitionRows(schemaName, pathPrefix string, defs []grid.PropertyDefinition) ([]Row, error) {
	var rows []Row
	for _, def := range defs {
		path := def.Name
		if pathPrefix != "" {
			path = pathPrefix + "." + def.Name
		}
		cols, err := Flatten(struct {
			Name           string
			DataType       grid.PropertyDataType
			Required       bool
			Description    string
			NumberExponent int32
			EnumOptions    []string
		}{def.Name, def.DataType, def.Required, def.Description, def.NumberExponent, def.EnumOptions})
		if err != nil {
			return nil, fmt.Errorf("projector: flatten property definition %s: %w", path, err)
		}
		rows = append(rows, Row{
			Table:      tableGridPropertyDefinitions,
			NaturalKey: fmt.Sprintf("%s:%s", schemaName, path),
			Columns:    cols,
		})
		if len(def.StructProperties) > 0 {
			nested, err := propertyDefinitionRows(schemaName, path, def.StructProperties)
			if err != nil {
				return nil, err
			}
			rows = append(rows, nested...)
		}
	}
	return rows, nil
}
