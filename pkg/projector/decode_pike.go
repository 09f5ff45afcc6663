package projector

import "github.com/cuemby/gridfabric/pkg/grid"

const (
	tableAgents        = "agents"
	tableOrganizations = "organizations"
)

func decodePikeAgents(_ string, value []byte) ([]Row, error) {
	agents, err := decodeContainer(value, func() *grid.Agent { return &grid.Agent{} })
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(agents))
	for _, a := range agents {
		cols, err := Flatten(a)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Table: tableAgents, NaturalKey: a.NaturalKey(), Columns: cols})
	}
	return rows, nil
}

func decodePikeOrganizations(_ string, value []byte) ([]Row, error) {
	orgs, err := decodeContainer(value, func() *grid.Organization { return &grid.Organization{} })
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(orgs))
	for _, o := range orgs {
		cols, err := Flatten(o)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Table: tableOrganizations, NaturalKey: o.NaturalKey(), Columns: cols})
	}
	return rows, nil
}
