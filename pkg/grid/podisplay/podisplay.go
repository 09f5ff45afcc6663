/*
Package podisplay renders a grid.PurchaseOrder to a tab-indented text
block, grounded on the original CLI's purchase-order rendering
(original_source/cli/src/actions/purchase_order.rs). This is a pure
formatting helper, not a CLI front-end — the front-end itself is out
of scope here.
*/
package podisplay

import (
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/gridfabric/pkg/grid"
)

const labelWidth = 18

func line(label, value string) string {
	return fmt.Sprintf("\t%-*s%s\n", labelWidth, label, value)
}

// Render formats po as a human-readable, tab-indented text block.
func Render(po *grid.PurchaseOrder) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Purchase Order %s:\n", po.UID)
	b.WriteString(line("Buyer", po.BuyerOrgID))
	b.WriteString(line("Seller", po.SellerOrgID))
	b.WriteString(line("Workflow Type", po.WorkflowType))
	b.WriteString(line("Workflow State", po.WorkflowState))
	b.WriteString(line("Is Closed", fmt.Sprintf("%t", po.IsClosed)))
	if po.AcceptedVersionID != "" {
		b.WriteString(line("Accepted Version", po.AcceptedVersionID))
	}
	b.WriteString(line("Created At", formatEpochSeconds(po.CreatedAt)))

	for _, v := range po.Versions {
		fmt.Fprintf(&b, "\tVersion %s:\n", v.VersionID)
		b.WriteString(line("\tIs Draft", fmt.Sprintf("%t", v.IsDraft)))
		b.WriteString(line("\tWorkflow State", v.WorkflowState))
		for _, r := range v.Revisions {
			fmt.Fprintf(&b, "\t\tRevision %d:\n", r.RevisionID)
			b.WriteString(line("\t\tSubmitter", r.Submitter))
			b.WriteString(line("\t\tCreated At", formatEpochSeconds(r.CreatedAt)))
		}
	}

	return b.String()
}

// rfc3339Offset renders the numeric UTC offset ("+00:00") rather than the
// "Z" shorthand time.RFC3339 would use, matching the original CLI's output.
const rfc3339Offset = "2006-01-02T15:04:05-07:00"

func formatEpochSeconds(seconds uint64) string {
	return time.Unix(int64(seconds), 0).UTC().Format(rfc3339Offset)
}
