package projector

import (
	"fmt"

	"github.com/cuemby/gridfabric/pkg/grid"
)

const (
	tableRecords          = "records"
	tableAssociatedAgents = "associated_agents"
	tableProperties       = "properties"
	tableReporters        = "reporters"
	tableReportedValues   = "reported_values"
	tableProposals        = "proposals"
)

func decodeRecords(_ string, value []byte) ([]Row, error) {
	records, err := decodeContainer(value, func() *grid.Record { return &grid.Record{} })
	if err != nil {
		return nil, err
	}
	var rows []Row
	for _, r := range records {
		cols, err := Flatten(struct {
			RecordID   string
			SchemaName string
			Final      bool
		}{r.RecordID, r.SchemaName, r.Final})
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Table: tableRecords, NaturalKey: r.NaturalKey(), Columns: cols})
		rows = append(rows, associatedAgentRows(r, "OWNER", r.Owners)...)
		rows = append(rows, associatedAgentRows(r, "CUSTODIAN", r.Custodians)...)
	}
	return rows, nil
}

func associatedAgentRows(r *grid.Record, role string, agentIDs []string) []Row {
	rows := make([]Row, 0, len(agentIDs))
	for _, agentID := range agentIDs {
		rows = append(rows, Row{
			Table:      tableAssociatedAgents,
			NaturalKey: fmt.Sprintf("%s:%s:%s", r.RecordID, role, agentID),
			Columns: map[string]any{
				"RecordID": r.RecordID,
				"AgentID":  agentID,
				"Role":     role,
			},
		})
	}
	return rows
}

func decodeProperties(_ string, value []byte) ([]Row, error) {
	properties, err := decodeContainer(value, func() *grid.Property { return &grid.Property{} })
	if err != nil {
		return nil, err
	}
	var rows []Row
	for _, p := range properties {
		cols, err := Flatten(struct {
			RecordID    string
			Name        string
			DataType    grid.PropertyDataType
			CurrentPage uint32
			NumUpdates  uint64
		}{p.RecordID, p.Name, p.DataType, p.CurrentPage, p.NumUpdates})
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Table: tableProperties, NaturalKey: p.NaturalKey(), Columns: cols})
		for _, reporterKey := range p.Reporters {
			rows = append(rows, Row{
				Table:      tableReporters,
				NaturalKey: fmt.Sprintf("%s:%s:%s", p.RecordID, p.Name, reporterKey),
				Columns: map[string]any{
					"RecordID":     p.RecordID,
					"PropertyName": p.Name,
					"PublicKey":    reporterKey,
				},
			})
		}
	}
	return rows, nil
}

func decodeReportedValues(_ string, value []byte) ([]Row, error) {
	pages, err := decodeContainer(value, func() *grid.PropertyPage { return &grid.PropertyPage{} })
	if err != nil {
		return nil, err
	}
	var rows []Row
	for _, page := range pages {
		for i, rv := range page.ReportedValues {
			cols, err := Flatten(rv)
			if err != nil {
				return nil, err
			}
			cols["RecordID"] = page.RecordID
			cols["PropertyName"] = page.PropertyName
			cols["PageNumber"] = page.PageNumber
			rows = append(rows, Row{
				Table:      tableReportedValues,
				NaturalKey: fmt.Sprintf("%s:%s:%d:%d", page.RecordID, page.PropertyName, page.PageNumber, i),
				Columns:    cols,
			})
		}
	}
	return rows, nil
}

func decodeProposals(_ string, value []byte) ([]Row, error) {
	proposals, err := decodeContainer(value, func() *grid.Proposal { return &grid.Proposal{} })
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(proposals))
	for _, p := range proposals {
		cols, err := Flatten(p)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Table: tableProposals, NaturalKey: p.NaturalKey(), Columns: cols})
	}
	return rows, nil
}
