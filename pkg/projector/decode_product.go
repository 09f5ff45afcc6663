package projector

import (
	"fmt"

	"github.com/cuemby/gridfabric/pkg/grid"
)

const (
	tableProducts              = "products"
	tableProductPropertyValues = "product_property_values"
)

// decodeProducts keys each product row by its state address rather than its
// product_id, because Delete carries only the address and retirement needs
// the same key space the insert used. Products sharing a collided address
// therefore share one row key: each one's upsert retires the row the
// previous one wrote, so only the last product in the container stays open.
func decodeProducts(key string, value []byte) ([]Row, error) {
	products, err := decodeContainer(value, func() *grid.Product { return &grid.Product{} })
	if err != nil {
		return nil, err
	}
	var rows []Row
	for _, p := range products {
		cols, err := Flatten(struct {
			ProductID     string
			ProductType   string
			Owner         string
			ProductAddress string
		}{p.ProductID, p.ProductType, p.Owner, key})
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Table: tableProducts, NaturalKey: key, Columns: cols})

		for i, name := range p.PropertyNames {
			if i >= len(p.Properties) {
				break
			}
			valCols, err := Flatten(p.Properties[i])
			if err != nil {
				return nil, err
			}
			valCols["ProductID"] = p.ProductID
			valCols["PropertyName"] = name
			rows = append(rows, Row{
				Table:      tableProductPropertyValues,
				NaturalKey: fmt.Sprintf("%s:%s", p.ProductID, name),
				Columns:    valCols,
			})
		}
	}
	return rows, nil
}

func deleteProduct(key string) ([]RowRef, error) {
	return []RowRef{{Table: tableProducts, NaturalKey: key}}, nil
}
