/*
Package purchaseorder implements the PurchaseOrder family: the
negotiated-procurement workflow state machine, draft-version lifecycle,
accepted-version immutability, alternate-ID uniqueness, and a
well-formedness gate on each revision's order XML.
*/
package purchaseorder

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/cuemby/gridfabric/pkg/address"
	"github.com/cuemby/gridfabric/pkg/container"
	"github.com/cuemby/gridfabric/pkg/families"
	"github.com/cuemby/gridfabric/pkg/grid"
	"github.com/cuemby/gridfabric/pkg/permission"
	"github.com/cuemby/gridfabric/pkg/txcontext"
	"github.com/cuemby/gridfabric/pkg/txerror"
)

// transitions enumerates the allowed workflow state moves. Closed is
// terminal: no outbound edge exists for it.
var transitions = map[WorkflowState][]WorkflowState{
	StateCreated:   {StateIssued, StateClosed},
	StateIssued:    {StateReviewed, StateConfirmed},
	StateReviewed:  {StateClosed, StateConfirmed},
	StateConfirmed: {StateClosed},
}

func transitionAllowed(from, to WorkflowState) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Handler implements families.Family for the PurchaseOrder family.
type Handler struct{}

// New creates a PurchaseOrder Handler.
func New() *Handler { return &Handler{} }

func (h *Handler) Name() string         { return "grid_purchase_order" }
func (h *Handler) Versions() []string   { return []string{"1"} }
func (h *Handler) Namespaces() []string { return []string{address.NamespacePurchaseOrder, address.NamespaceAlternateIDIdx} }

func (h *Handler) Apply(req *families.Request, ctx *txcontext.Context) error {
	payload, err := DecodePayload(req.Payload)
	if err != nil {
		return txerror.Invalidf("purchaseorder: malformed payload: %v", err)
	}

	switch payload.Action {
	case ActionCreatePurchaseOrder:
		return h.create(req, ctx, payload.CreatePurchaseOrder)
	case ActionUpdatePurchaseOrder:
		return h.updateState(req, ctx, payload.UpdatePurchaseOrder)
	case ActionCreateVersion:
		return h.createVersion(req, ctx, payload.CreateVersion)
	case ActionUpdateVersion:
		return h.updateVersion(req, ctx, payload.UpdateVersion)
	case ActionDeleteVersion:
		return h.deleteVersion(req, ctx, payload.DeleteVersion)
	case ActionAcceptVersion:
		return h.acceptVersion(req, ctx, payload.AcceptVersion)
	default:
		return txerror.Invalidf("purchaseorder: unknown action %q", payload.Action)
	}
}

func (h *Handler) loadOrders(ctx *txcontext.Context, uid string) ([]*grid.PurchaseOrder, error) {
	data, _, err := ctx.Get(address.PurchaseOrderAddress(uid))
	if err != nil {
		return nil, txerror.Internalf(err, "purchaseorder: load container")
	}
	orders, err := container.Decode(data, func() *grid.PurchaseOrder { return &grid.PurchaseOrder{} })
	if err != nil {
		return nil, txerror.Internalf(err, "purchaseorder: decode container")
	}
	return orders, nil
}

func (h *Handler) loadAlternateIDIndex(ctx *txcontext.Context, idType, id string) ([]*grid.AlternateIDIndexEntry, error) {
	data, _, err := ctx.Get(address.AlternateIDIndexAddress(idType, id))
	if err != nil {
		return nil, txerror.Internalf(err, "purchaseorder: load alternate-id index")
	}
	entries, err := container.Decode(data, func() *grid.AlternateIDIndexEntry { return &grid.AlternateIDIndexEntry{} })
	if err != nil {
		return nil, txerror.Internalf(err, "purchaseorder: decode alternate-id index")
	}
	return entries, nil
}

func validateOrderXML(xmlBody string) error {
	if xmlBody == "" {
		return nil
	}
	dec := xml.NewDecoder(strings.NewReader(xmlBody))
	for {
		_, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return txerror.Invalidf("order_xml_v3_4 is not well-formed: %v", err)
		}
	}
}

func (h *Handler) create(req *families.Request, ctx *txcontext.Context, action *CreatePurchaseOrderAction) error {
	if action == nil || action.UID == "" || action.BuyerOrgID == "" || action.SellerOrgID == "" {
		return txerror.Invalidf("purchaseorder: create requires uid, buyer_org_id, and seller_org_id")
	}
	if err := permission.New(ctx).Check(req.SignerPublicKey, "po.create", action.BuyerOrgID); err != nil {
		return txerror.Invalidf("%v", err)
	}

	orders, err := h.loadOrders(ctx, action.UID)
	if err != nil {
		return err
	}
	if _, found := container.Find(orders, action.UID); found {
		return txerror.Invalidf("purchase order %s already exists", action.UID)
	}

	writes := map[string][]byte{}
	for idType, id := range action.AlternateIDs {
		entries, err := h.loadAlternateIDIndex(ctx, idType, id)
		if err != nil {
			return err
		}
		key := idType + ":" + id
		if existing, found := container.Find(entries, key); found && existing.OrgID != action.BuyerOrgID {
			return txerror.Invalidf("alternate id %s:%s already claimed by organization %s", idType, id, existing.OrgID)
		}
		entry := &grid.AlternateIDIndexEntry{IDType: idType, ID: id, OrgID: action.BuyerOrgID}
		encodedIndex, err := container.Encode(container.Merge(entries, entry))
		if err != nil {
			return txerror.Internalf(err, "purchaseorder: encode alternate-id index")
		}
		writes[address.AlternateIDIndexAddress(idType, id)] = encodedIndex
	}

	po := &grid.PurchaseOrder{
		UID:           action.UID,
		BuyerOrgID:    action.BuyerOrgID,
		SellerOrgID:   action.SellerOrgID,
		WorkflowType:  action.WorkflowType,
		WorkflowState: string(StateCreated),
		AlternateIDs:  action.AlternateIDs,
		CreatedAt:     action.CreatedAt,
	}
	encoded, err := container.Encode(container.Merge(orders, po))
	if err != nil {
		return txerror.Internalf(err, "purchaseorder: encode container")
	}
	writes[address.PurchaseOrderAddress(action.UID)] = encoded

	if err := ctx.Set(writes); err != nil {
		return txerror.Internalf(err, "purchaseorder: commit create")
	}
	ctx.AddEvent("purchaseorder.created", map[string]string{"uid": action.UID}, nil)
	return nil
}

func (h *Handler) updateState(req *families.Request, ctx *txcontext.Context, action *UpdatePurchaseOrderAction) error {
	if action == nil || action.UID == "" {
		return txerror.Invalidf("purchaseorder: update requires uid")
	}
	orders, err := h.loadOrders(ctx, action.UID)
	if err != nil {
		return err
	}
	po, found := container.Find(orders, action.UID)
	if !found {
		return txerror.Invalidf("purchase order %s does not exist", action.UID)
	}
	if err := permission.New(ctx).Check(req.SignerPublicKey, "po.update", po.BuyerOrgID); err != nil {
		return txerror.Invalidf("%v", err)
	}
	if po.IsClosed {
		return txerror.Invalidf("purchase order %s is closed", action.UID)
	}
	from := WorkflowState(po.WorkflowState)
	if !transitionAllowed(from, action.WorkflowState) {
		return txerror.Invalidf("purchase order %s: illegal transition %s -> %s", action.UID, from, action.WorkflowState)
	}

	po.WorkflowState = string(action.WorkflowState)
	if action.WorkflowState == StateClosed {
		po.IsClosed = true
	}
	encoded, err := container.Encode(container.Merge(orders, po))
	if err != nil {
		return txerror.Internalf(err, "purchaseorder: encode container")
	}
	if err := ctx.Set(map[string][]byte{address.PurchaseOrderAddress(action.UID): encoded}); err != nil {
		return txerror.Internalf(err, "purchaseorder: commit update")
	}
	ctx.AddEvent("purchaseorder.state_changed", map[string]string{"uid": action.UID, "state": string(action.WorkflowState)}, nil)
	return nil
}

func findVersion(po *grid.PurchaseOrder, versionID string) (*grid.PurchaseOrderVersion, int) {
	for i := range po.Versions {
		if po.Versions[i].VersionID == versionID {
			return &po.Versions[i], i
		}
	}
	return nil, -1
}

func (h *Handler) createVersion(req *families.Request, ctx *txcontext.Context, action *CreateVersionAction) error {
	if action == nil || action.UID == "" || action.VersionID == "" {
		return txerror.Invalidf("purchaseorder: create_version requires uid and version_id")
	}
	if err := validateOrderXML(action.OrderXMLV34); err != nil {
		return err
	}

	orders, err := h.loadOrders(ctx, action.UID)
	if err != nil {
		return err
	}
	po, found := container.Find(orders, action.UID)
	if !found {
		return txerror.Invalidf("purchase order %s does not exist", action.UID)
	}
	if err := permission.New(ctx).Check(req.SignerPublicKey, "po.version.create", po.BuyerOrgID); err != nil {
		return txerror.Invalidf("%v", err)
	}
	if _, idx := findVersion(po, action.VersionID); idx >= 0 {
		return txerror.Invalidf("version %s already exists on purchase order %s", action.VersionID, action.UID)
	}

	version := grid.PurchaseOrderVersion{
		VersionID:         action.VersionID,
		IsDraft:           action.IsDraft,
		WorkflowState:     string(action.WorkflowState),
		CurrentRevisionID: 1,
		Revisions: []grid.PurchaseOrderVersionRevision{{
			RevisionID:  1,
			Submitter:   req.SignerPublicKey,
			CreatedAt:   action.CreatedAt,
			OrderXMLV34: action.OrderXMLV34,
		}},
	}
	po.Versions = append(po.Versions, version)

	encoded, err := container.Encode(container.Merge(orders, po))
	if err != nil {
		return txerror.Internalf(err, "purchaseorder: encode container")
	}
	if err := ctx.Set(map[string][]byte{address.PurchaseOrderAddress(action.UID): encoded}); err != nil {
		return txerror.Internalf(err, "purchaseorder: commit create_version")
	}
	ctx.AddEvent("purchaseorder.version.created", map[string]string{"uid": action.UID, "version_id": action.VersionID}, nil)
	return nil
}

func (h *Handler) updateVersion(req *families.Request, ctx *txcontext.Context, action *UpdateVersionAction) error {
	if action == nil || action.UID == "" || action.VersionID == "" {
		return txerror.Invalidf("purchaseorder: update_version requires uid and version_id")
	}
	if err := validateOrderXML(action.OrderXMLV34); err != nil {
		return err
	}

	orders, err := h.loadOrders(ctx, action.UID)
	if err != nil {
		return err
	}
	po, found := container.Find(orders, action.UID)
	if !found {
		return txerror.Invalidf("purchase order %s does not exist", action.UID)
	}
	if err := permission.New(ctx).Check(req.SignerPublicKey, "po.version.update", po.BuyerOrgID); err != nil {
		return txerror.Invalidf("%v", err)
	}
	version, idx := findVersion(po, action.VersionID)
	if idx < 0 {
		return txerror.Invalidf("version %s does not exist on purchase order %s", action.VersionID, action.UID)
	}
	if po.AcceptedVersionID == action.VersionID && !action.ReopenAccepted {
		return txerror.Invalidf("version %s is accepted and immutable; reopen it explicitly to mutate", action.VersionID)
	}

	nextRevisionID := version.CurrentRevisionID + 1
	version.Revisions = append(version.Revisions, grid.PurchaseOrderVersionRevision{
		RevisionID:  nextRevisionID,
		Submitter:   req.SignerPublicKey,
		CreatedAt:   action.CreatedAt,
		OrderXMLV34: action.OrderXMLV34,
	})
	version.CurrentRevisionID = nextRevisionID
	if action.WorkflowState != "" {
		version.WorkflowState = string(action.WorkflowState)
	}

	encoded, err := container.Encode(container.Merge(orders, po))
	if err != nil {
		return txerror.Internalf(err, "purchaseorder: encode container")
	}
	if err := ctx.Set(map[string][]byte{address.PurchaseOrderAddress(action.UID): encoded}); err != nil {
		return txerror.Internalf(err, "purchaseorder: commit update_version")
	}
	ctx.AddEvent("purchaseorder.version.updated", map[string]string{"uid": action.UID, "version_id": action.VersionID}, nil)
	return nil
}

func (h *Handler) deleteVersion(req *families.Request, ctx *txcontext.Context, action *DeleteVersionAction) error {
	if action == nil || action.UID == "" || action.VersionID == "" {
		return txerror.Invalidf("purchaseorder: delete_version requires uid and version_id")
	}
	orders, err := h.loadOrders(ctx, action.UID)
	if err != nil {
		return err
	}
	po, found := container.Find(orders, action.UID)
	if !found {
		return txerror.Invalidf("purchase order %s does not exist", action.UID)
	}
	if err := permission.New(ctx).Check(req.SignerPublicKey, "po.version.delete", po.BuyerOrgID); err != nil {
		return txerror.Invalidf("%v", err)
	}
	version, idx := findVersion(po, action.VersionID)
	if idx < 0 {
		return txerror.Invalidf("version %s does not exist on purchase order %s", action.VersionID, action.UID)
	}
	if !version.IsDraft {
		return txerror.Invalidf("version %s is not a draft and may not be deleted", action.VersionID)
	}
	if po.AcceptedVersionID == action.VersionID {
		return txerror.Invalidf("version %s is the accepted version and may not be deleted", action.VersionID)
	}
	po.Versions = append(po.Versions[:idx], po.Versions[idx+1:]...)

	encoded, err := container.Encode(container.Merge(orders, po))
	if err != nil {
		return txerror.Internalf(err, "purchaseorder: encode container")
	}
	if err := ctx.Set(map[string][]byte{address.PurchaseOrderAddress(action.UID): encoded}); err != nil {
		return txerror.Internalf(err, "purchaseorder: commit delete_version")
	}
	ctx.AddEvent("purchaseorder.version.deleted", map[string]string{"uid": action.UID, "version_id": action.VersionID}, nil)
	return nil
}

func (h *Handler) acceptVersion(req *families.Request, ctx *txcontext.Context, action *AcceptVersionAction) error {
	if action == nil || action.UID == "" || action.VersionID == "" {
		return txerror.Invalidf("purchaseorder: accept_version requires uid and version_id")
	}
	orders, err := h.loadOrders(ctx, action.UID)
	if err != nil {
		return err
	}
	po, found := container.Find(orders, action.UID)
	if !found {
		return txerror.Invalidf("purchase order %s does not exist", action.UID)
	}
	if err := permission.New(ctx).Check(req.SignerPublicKey, "po.version.accept", po.SellerOrgID); err != nil {
		return txerror.Invalidf("%v", err)
	}
	if _, idx := findVersion(po, action.VersionID); idx < 0 {
		return txerror.Invalidf("version %s does not exist on purchase order %s", action.VersionID, action.UID)
	}
	if !transitionAllowed(WorkflowState(po.WorkflowState), StateConfirmed) {
		return txerror.Invalidf("purchase order %s: illegal transition %s -> %s", action.UID, po.WorkflowState, StateConfirmed)
	}

	po.AcceptedVersionID = action.VersionID
	po.WorkflowState = string(StateConfirmed)

	encoded, err := container.Encode(container.Merge(orders, po))
	if err != nil {
		return txerror.Internalf(err, "purchaseorder: encode container")
	}
	if err := ctx.Set(map[string][]byte{address.PurchaseOrderAddress(action.UID): encoded}); err != nil {
		return txerror.Internalf(err, "purchaseorder: commit accept_version")
	}
	ctx.AddEvent("purchaseorder.version.accepted", map[string]string{"uid": action.UID, "version_id": action.VersionID}, nil)
	return nil
}
