package podisplay

import (
	"strings"
	"testing"

	"github.com/cuemby/gridfabric/pkg/grid"
)

func TestRenderMatchesDisplayScenario(t *testing.T) {
	po := &grid.PurchaseOrder{
		UID:               "PO-00000-0000",
		BuyerOrgID:        "test",
		SellerOrgID:       "test2",
		WorkflowType:      "default",
		WorkflowState:     "created",
		IsClosed:          false,
		AcceptedVersionID: "1",
		CreatedAt:         12345677,
		Versions: []grid.PurchaseOrderVersion{
			{
				VersionID:         "1",
				WorkflowState:     "proposed",
				IsDraft:           true,
				CurrentRevisionID: 1,
				Revisions: []grid.PurchaseOrderVersionRevision{
					{
						RevisionID:  1,
						Submitter:   "0200ef9a2b7ee",
						CreatedAt:   12345678,
						OrderXMLV34: "<tag></tag>",
					},
				},
			},
		},
	}

	rendered := Render(po)

	if !strings.Contains(rendered, "Purchase Order PO-00000-0000:") {
		t.Fatalf("rendered output missing title:\n%s", rendered)
	}
	if !strings.Contains(rendered, "Created At        1970-05-23T21:21:17+00:00") {
		t.Fatalf("rendered output missing Created At line:\n%s", rendered)
	}
}
