/*
Package trackandtrace implements the track-and-trace family: record
lifecycle, role-transfer proposals, and paged property reporting (spec
§3/§4.3). Reported values for a property accumulate in fixed-size pages;
once a page is full, reporting rolls to the next page number, wrapping
around a bounded page count and flagging reuse.
*/
package trackandtrace

import (
	"github.com/cuemby/gridfabric/pkg/address"
	"github.com/cuemby/gridfabric/pkg/container"
	"github.com/cuemby/gridfabric/pkg/families"
	"github.com/cuemby/gridfabric/pkg/grid"
	"github.com/cuemby/gridfabric/pkg/permission"
	"github.com/cuemby/gridfabric/pkg/txcontext"
	"github.com/cuemby/gridfabric/pkg/txerror"
)

// MaxPages bounds the circular page count kept per property; once this many
// distinct page numbers have been used, the cycle repeats and the page
// being overwritten is flagged Wrapped.
const MaxPages = 256

// Handler implements families.Family for the track-and-trace family.
type Handler struct{}

// New creates a track-and-trace Handler.
func New() *Handler { return &Handler{} }

func (h *Handler) Name() string         { return "grid_track_and_trace" }
func (h *Handler) Versions() []string   { return []string{"2"} }
func (h *Handler) Namespaces() []string { return []string{address.NamespaceTrackAndTrace} }

func (h *Handler) Apply(req *families.Request, ctx *txcontext.Context) error {
	payload, err := DecodePayload(req.Payload)
	if err != nil {
		return txerror.Invalidf("trackandtrace: malformed payload: %v", err)
	}

	switch payload.Action {
	case ActionCreateRecord:
		return h.createRecord(req, ctx, payload.CreateRecord)
	case ActionFinalizeRecord:
		return h.finalizeRecord(req, ctx, payload.FinalizeRecord)
	case ActionCreateProposal:
		return h.createProposal(req, ctx, payload.CreateProposal)
	case ActionAnswerProposal:
		return h.answerProposal(req, ctx, payload.AnswerProposal)
	case ActionUpdateProperties:
		return h.updateProperties(req, ctx, payload.UpdateProperties)
	default:
		return txerror.Invalidf("trackandtrace: unknown action %q", payload.Action)
	}
}

func (h *Handler) loadRecords(ctx *txcontext.Context, recordID string) ([]*grid.Record, error) {
	data, _, err := ctx.Get(address.RecordAddress(recordID))
	if err != nil {
		return nil, txerror.Internalf(err, "trackandtrace: load record container")
	}
	records, err := container.Decode(data, func() *grid.Record { return &grid.Record{} })
	if err != nil {
		return nil, txerror.Internalf(err, "trackandtrace: decode record container")
	}
	return records, nil
}

func (h *Handler) loadSchemas(ctx *txcontext.Context, name string) ([]*grid.Schema, error) {
	data, _, err := ctx.Get(address.SchemaAddress(name))
	if err != nil {
		return nil, txerror.Internalf(err, "trackandtrace: load schema container")
	}
	schemas, err := container.Decode(data, func() *grid.Schema { return &grid.Schema{} })
	if err != nil {
		return nil, txerror.Internalf(err, "trackandtrace: decode schema container")
	}
	return schemas, nil
}

func (h *Handler) loadProperties(ctx *txcontext.Context, recordID, name string) ([]*grid.Property, error) {
	data, _, err := ctx.Get(address.PropertyAddress(recordID, name))
	if err != nil {
		return nil, txerror.Internalf(err, "trackandtrace: load property container")
	}
	props, err := container.Decode(data, func() *grid.Property { return &grid.Property{} })
	if err != nil {
		return nil, txerror.Internalf(err, "trackandtrace: decode property container")
	}
	return props, nil
}

func (h *Handler) loadPage(ctx *txcontext.Context, recordID, name string, page uint32) ([]*grid.PropertyPage, error) {
	data, _, err := ctx.Get(address.PropertyPageAddress(recordID, name, page))
	if err != nil {
		return nil, txerror.Internalf(err, "trackandtrace: load property page container")
	}
	pages, err := container.Decode(data, func() *grid.PropertyPage { return &grid.PropertyPage{} })
	if err != nil {
		return nil, txerror.Internalf(err, "trackandtrace: decode property page container")
	}
	return pages, nil
}

func (h *Handler) loadProposals(ctx *txcontext.Context, recordID, receivingAgent string) ([]*grid.Proposal, error) {
	data, _, err := ctx.Get(address.ProposalAddress(recordID, receivingAgent))
	if err != nil {
		return nil, txerror.Internalf(err, "trackandtrace: load proposal container")
	}
	proposals, err := container.Decode(data, func() *grid.Proposal { return &grid.Proposal{} })
	if err != nil {
		return nil, txerror.Internalf(err, "trackandtrace: decode proposal container")
	}
	return proposals, nil
}

func contains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

func (h *Handler) createRecord(req *families.Request, ctx *txcontext.Context, action *CreateRecordAction) error {
	if action == nil || action.RecordID == "" || action.SchemaName == "" {
		return txerror.Invalidf("trackandtrace: create_record requires record_id and schema_name")
	}

	schemas, err := h.loadSchemas(ctx, action.SchemaName)
	if err != nil {
		return err
	}
	if _, found := container.Find(schemas, action.SchemaName); !found {
		return txerror.Invalidf("schema %s does not exist", action.SchemaName)
	}

	records, err := h.loadRecords(ctx, action.RecordID)
	if err != nil {
		return err
	}
	if _, found := container.Find(records, action.RecordID); found {
		return txerror.Invalidf("record %s already exists", action.RecordID)
	}

	record := &grid.Record{
		RecordID:   action.RecordID,
		SchemaName: action.SchemaName,
		Owners:     []string{req.SignerPublicKey},
		Custodians: []string{req.SignerPublicKey},
	}
	encoded, err := container.Encode(container.Merge(records, record))
	if err != nil {
		return txerror.Internalf(err, "trackandtrace: encode record container")
	}
	if err := ctx.Set(map[string][]byte{address.RecordAddress(action.RecordID): encoded}); err != nil {
		return txerror.Internalf(err, "trackandtrace: commit create_record")
	}
	ctx.AddEvent("trackandtrace.record.created", map[string]string{"record_id": action.RecordID}, nil)
	return nil
}

func (h *Handler) finalizeRecord(req *families.Request, ctx *txcontext.Context, action *FinalizeRecordAction) error {
	if action == nil || action.RecordID == "" {
		return txerror.Invalidf("trackandtrace: finalize_record requires record_id")
	}
	records, err := h.loadRecords(ctx, action.RecordID)
	if err != nil {
		return err
	}
	record, found := container.Find(records, action.RecordID)
	if !found {
		return txerror.Invalidf("record %s does not exist", action.RecordID)
	}
	if !contains(record.Owners, req.SignerPublicKey) {
		return txerror.Invalidf("signer %s is not an owner of record %s", req.SignerPublicKey, action.RecordID)
	}
	if record.Final {
		return txerror.Invalidf("record %s is already final", action.RecordID)
	}
	record.Final = true
	encoded, err := container.Encode(container.Merge(records, record))
	if err != nil {
		return txerror.Internalf(err, "trackandtrace: encode record container")
	}
	if err := ctx.Set(map[string][]byte{address.RecordAddress(action.RecordID): encoded}); err != nil {
		return txerror.Internalf(err, "trackandtrace: commit finalize_record")
	}
	ctx.AddEvent("trackandtrace.record.finalized", map[string]string{"record_id": action.RecordID}, nil)
	return nil
}

func (h *Handler) createProposal(req *families.Request, ctx *txcontext.Context, action *CreateProposalAction) error {
	if action == nil || action.RecordID == "" || action.ReceivingAgent == "" {
		return txerror.Invalidf("trackandtrace: create_proposal requires record_id and receiving_agent")
	}
	records, err := h.loadRecords(ctx, action.RecordID)
	if err != nil {
		return err
	}
	record, found := container.Find(records, action.RecordID)
	if !found {
		return txerror.Invalidf("record %s does not exist", action.RecordID)
	}
	if record.Final {
		return txerror.Invalidf("record %s is final and accepts no further proposals", action.RecordID)
	}
	if !contains(record.Owners, req.SignerPublicKey) {
		return txerror.Invalidf("signer %s is not an owner of record %s", req.SignerPublicKey, action.RecordID)
	}

	proposals, err := h.loadProposals(ctx, action.RecordID, action.ReceivingAgent)
	if err != nil {
		return err
	}
	key := action.RecordID + ":" + action.ReceivingAgent
	if _, found := container.Find(proposals, key); found {
		return txerror.Invalidf("an open proposal already exists for %s", key)
	}

	proposal := &grid.Proposal{
		RecordID:       action.RecordID,
		ReceivingAgent: action.ReceivingAgent,
		IssuingAgent:   req.SignerPublicKey,
		Role:           string(action.Role),
		Status:         "OPEN",
		Properties:     action.Properties,
	}
	encoded, err := container.Encode(container.Merge(proposals, proposal))
	if err != nil {
		return txerror.Internalf(err, "trackandtrace: encode proposal container")
	}
	if err := ctx.Set(map[string][]byte{address.ProposalAddress(action.RecordID, action.ReceivingAgent): encoded}); err != nil {
		return txerror.Internalf(err, "trackandtrace: commit create_proposal")
	}
	ctx.AddEvent("trackandtrace.proposal.created", map[string]string{"record_id": action.RecordID, "receiving_agent": action.ReceivingAgent}, nil)
	return nil
}

func (h *Handler) answerProposal(req *families.Request, ctx *txcontext.Context, action *AnswerProposalAction) error {
	if action == nil || action.RecordID == "" || action.ReceivingAgent == "" {
		return txerror.Invalidf("trackandtrace: answer_proposal requires record_id and receiving_agent")
	}
	proposals, err := h.loadProposals(ctx, action.RecordID, action.ReceivingAgent)
	if err != nil {
		return err
	}
	key := action.RecordID + ":" + action.ReceivingAgent
	proposal, found := container.Find(proposals, key)
	if !found {
		return txerror.Invalidf("no open proposal for %s", key)
	}

	switch action.Response {
	case ResponseAccept:
		if req.SignerPublicKey != action.ReceivingAgent {
			return txerror.Invalidf("only %s may accept this proposal", action.ReceivingAgent)
		}
		if err := h.applyAcceptedProposal(ctx, proposal); err != nil {
			return err
		}
	case ResponseReject:
		if req.SignerPublicKey != action.ReceivingAgent {
			return txerror.Invalidf("only %s may reject this proposal", action.ReceivingAgent)
		}
	case ResponseCancel:
		if req.SignerPublicKey != proposal.IssuingAgent {
			return txerror.Invalidf("only %s may cancel this proposal", proposal.IssuingAgent)
		}
	default:
		return txerror.Invalidf("trackandtrace: unknown proposal response %q", action.Response)
	}

	remaining, _ := container.Remove(proposals, key)
	encoded, err := container.Encode(remaining)
	if err != nil {
		return txerror.Internalf(err, "trackandtrace: encode proposal container")
	}
	if err := ctx.Set(map[string][]byte{address.ProposalAddress(action.RecordID, action.ReceivingAgent): encoded}); err != nil {
		return txerror.Internalf(err, "trackandtrace: commit answer_proposal")
	}
	ctx.AddEvent("trackandtrace.proposal.answered", map[string]string{
		"record_id": action.RecordID, "receiving_agent": action.ReceivingAgent, "response": string(action.Response),
	}, nil)
	return nil
}

func (h *Handler) applyAcceptedProposal(ctx *txcontext.Context, proposal *grid.Proposal) error {
	records, err := h.loadRecords(ctx, proposal.RecordID)
	if err != nil {
		return err
	}
	record, found := container.Find(records, proposal.RecordID)
	if !found {
		return txerror.Invalidf("record %s does not exist", proposal.RecordID)
	}

	switch Role(proposal.Role) {
	case RoleOwner:
		if !contains(record.Owners, proposal.ReceivingAgent) {
			record.Owners = append(record.Owners, proposal.ReceivingAgent)
		}
	case RoleCustodian:
		if !contains(record.Custodians, proposal.ReceivingAgent) {
			record.Custodians = append(record.Custodians, proposal.ReceivingAgent)
		}
	case RoleReporter:
		for _, propName := range proposal.Properties {
			if err := h.addReporter(ctx, proposal.RecordID, propName, proposal.ReceivingAgent); err != nil {
				return err
			}
		}
		return nil
	default:
		return txerror.Invalidf("trackandtrace: unknown proposal role %q", proposal.Role)
	}

	encoded, err := container.Encode(container.Merge(records, record))
	if err != nil {
		return txerror.Internalf(err, "trackandtrace: encode record container")
	}
	return ctx.Set(map[string][]byte{address.RecordAddress(proposal.RecordID): encoded})
}

func (h *Handler) addReporter(ctx *txcontext.Context, recordID, propertyName, reporter string) error {
	props, err := h.loadProperties(ctx, recordID, propertyName)
	if err != nil {
		return err
	}
	key := recordID + ":" + propertyName
	prop, found := container.Find(props, key)
	if !found {
		prop = &grid.Property{RecordID: recordID, Name: propertyName}
	}
	if !contains(prop.Reporters, reporter) {
		prop.Reporters = append(prop.Reporters, reporter)
	}
	encoded, err := container.Encode(container.Merge(props, prop))
	if err != nil {
		return txerror.Internalf(err, "trackandtrace: encode property container")
	}
	return ctx.Set(map[string][]byte{address.PropertyAddress(recordID, propertyName): encoded})
}

func (h *Handler) updateProperties(req *families.Request, ctx *txcontext.Context, action *UpdatePropertiesAction) error {
	if action == nil || action.RecordID == "" {
		return txerror.Invalidf("trackandtrace: update_properties requires record_id")
	}
	records, err := h.loadRecords(ctx, action.RecordID)
	if err != nil {
		return err
	}
	record, found := container.Find(records, action.RecordID)
	if !found {
		return txerror.Invalidf("record %s does not exist", action.RecordID)
	}
	if record.Final {
		return txerror.Invalidf("record %s is final and accepts no further updates", action.RecordID)
	}

	for _, update := range action.Updates {
		if err := h.reportValue(ctx, req.SignerPublicKey, record, update); err != nil {
			return err
		}
	}
	ctx.AddEvent("trackandtrace.properties.updated", map[string]string{"record_id": action.RecordID}, nil)
	return nil
}

func (h *Handler) reportValue(ctx *txcontext.Context, signer string, record *grid.Record, update ReportedValueInput) error {
	key := record.RecordID + ":" + update.Name
	props, err := h.loadProperties(ctx, record.RecordID, update.Name)
	if err != nil {
		return err
	}
	prop, found := container.Find(props, key)
	if !found {
		prop = &grid.Property{RecordID: record.RecordID, Name: update.Name}
	}
	if !contains(record.Owners, signer) && len(prop.Reporters) > 0 && !contains(prop.Reporters, signer) {
		return txerror.Invalidf("signer %s is not an authorized reporter for %s", signer, key)
	}

	pages, err := h.loadPage(ctx, record.RecordID, update.Name, prop.CurrentPage)
	if err != nil {
		return err
	}
	pageKey := record.RecordID + ":" + update.Name + ":" + pageNaturalKeySuffix(prop.CurrentPage)
	page, found := container.Find(pages, pageKey)
	if !found {
		page = &grid.PropertyPage{RecordID: record.RecordID, PropertyName: update.Name, PageNumber: prop.CurrentPage}
	}

	if len(page.ReportedValues) >= grid.MaxPageValues {
		nextPageNumber := (prop.CurrentPage + 1) % MaxPages
		nextPages, err := h.loadPage(ctx, record.RecordID, update.Name, nextPageNumber)
		if err != nil {
			return err
		}
		nextKey := record.RecordID + ":" + update.Name + ":" + pageNaturalKeySuffix(nextPageNumber)
		reused := false
		if existing, found := container.Find(nextPages, nextKey); found && len(existing.ReportedValues) > 0 {
			reused = true
		}
		page = &grid.PropertyPage{RecordID: record.RecordID, PropertyName: update.Name, PageNumber: nextPageNumber, Wrapped: reused}
		pages = nextPages
		prop.CurrentPage = nextPageNumber
	}

	page.ReportedValues = append(page.ReportedValues, grid.ReportedValue{
		Timestamp:    update.Timestamp,
		BytesValue:   update.BytesValue,
		BooleanValue: update.BooleanValue,
		NumberValue:  update.NumberValue,
		StringValue:  update.StringValue,
		EnumValue:    update.EnumValue,
		LatValue:     update.LatValue,
		LongValue:    update.LongValue,
	})
	prop.NumUpdates++

	encodedPages, err := container.Encode(container.Merge(pages, page))
	if err != nil {
		return txerror.Internalf(err, "trackandtrace: encode property page container")
	}
	encodedProp, err := container.Encode(container.Merge(props, prop))
	if err != nil {
		return txerror.Internalf(err, "trackandtrace: encode property container")
	}
	return ctx.Set(map[string][]byte{
		address.PropertyPageAddress(record.RecordID, update.Name, page.PageNumber): encodedPages,
		address.PropertyAddress(record.RecordID, update.Name):                      encodedProp,
	})
}

// pageNaturalKeySuffix must match grid.PropertyPage's own NaturalKey
// encoding so container.Find locates the right page.
func pageNaturalKeySuffix(n uint32) string {
	const hexDigits = "0123456789abcdef"
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = hexDigits[n&0xf]
		n >>= 4
	}
	return string(b)
}
