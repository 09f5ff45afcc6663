/*
Package grid holds the entity types shared by every transaction-processor
family: Pike identity (Agent, Organization, Role, AlternateIDIndex),
Schema, Track-and-Trace (Record, Property, PropertyPage, ReportedValue,
Proposal), Product, and PurchaseOrder.

Every entity implements container.Item (NaturalKey plus
encoding.BinaryMarshaler/Unmarshaler) so it can be stored in a
container.Container at its family's address. Encoding uses JSON — this
repo has no protoc step, so JSON stands in for a wire protobuf encoding.
*/
package grid

import (
	"encoding/json"
	"time"
)

// Agent is a signing identity bound to an organization, holding a role set.
type Agent struct {
	PublicKey string
	OrgID     string
	Active    bool
	Roles     []string
	Metadata  map[string]string
}

func (a *Agent) NaturalKey() string                  { return a.PublicKey }
func (a *Agent) MarshalBinary() ([]byte, error)      { return json.Marshal(a) }
func (a *Agent) UnmarshalBinary(data []byte) error   { return json.Unmarshal(data, a) }
func (a *Agent) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Organization is a named party in the federation.
type Organization struct {
	OrgID        string
	Name         string
	Locations    []string
	AlternateIDs map[string]string
	Metadata     map[string]string
}

func (o *Organization) NaturalKey() string                { return o.OrgID }
func (o *Organization) MarshalBinary() ([]byte, error)    { return json.Marshal(o) }
func (o *Organization) UnmarshalBinary(data []byte) error { return json.Unmarshal(data, o) }

// AdminRoleName is the reserved role name implicitly created for every
// organization and never directly creatable, updatable, or deletable.
const AdminRoleName = "admin"

// Role is a named bundle of permissions, possibly inheriting from other
// roles, possibly cross-organization. Unique by (OrgID, Name).
type Role struct {
	OrgID                 string
	Name                  string
	Description           string
	Permissions           []string
	Active                bool
	AllowedOrganizations  []string
	InheritFrom           []string // "org_id.role_name" or bare "role_name" (same org)
}

func (r *Role) NaturalKey() string                { return r.OrgID + "." + r.Name }
func (r *Role) MarshalBinary() ([]byte, error)    { return json.Marshal(r) }
func (r *Role) UnmarshalBinary(data []byte) error { return json.Unmarshal(data, r) }

// AlternateIDIndexEntry is a secondary lookup from (id_type, id) to the org
// that claims it.
type AlternateIDIndexEntry struct {
	IDType string
	ID     string
	OrgID  string
}

func (e *AlternateIDIndexEntry) NaturalKey() string             { return e.IDType + ":" + e.ID }
func (e *AlternateIDIndexEntry) MarshalBinary() ([]byte, error) { return json.Marshal(e) }
func (e *AlternateIDIndexEntry) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, e)
}

// PropertyDataType enumerates the value kinds a PropertyDefinition may hold.
type PropertyDataType string

const (
	DataTypeBytes   PropertyDataType = "BYTES"
	DataTypeBoolean PropertyDataType = "BOOLEAN"
	DataTypeNumber  PropertyDataType = "NUMBER"
	DataTypeString  PropertyDataType = "STRING"
	DataTypeEnum    PropertyDataType = "ENUM"
	DataTypeStruct  PropertyDataType = "STRUCT"
	DataTypeLatLong PropertyDataType = "LAT_LONG"
)

// PropertyDefinition describes one property of a Schema, recursively
// through Struct-typed properties.
type PropertyDefinition struct {
	Name             string
	DataType         PropertyDataType
	Required         bool
	Description      string
	NumberExponent   int32
	EnumOptions      []string
	StructProperties []PropertyDefinition
}

// Schema is a named, versioned shape for Record properties.
type Schema struct {
	Name        string
	Description string
	OwnerOrgID  string
	Properties  []PropertyDefinition
}

func (s *Schema) NaturalKey() string                { return s.Name }
func (s *Schema) MarshalBinary() ([]byte, error)    { return json.Marshal(s) }
func (s *Schema) UnmarshalBinary(data []byte) error { return json.Unmarshal(data, s) }

// Record is a track-and-trace subject.
type Record struct {
	RecordID   string
	SchemaName string
	Owners     []string
	Custodians []string
	Final      bool
}

func (r *Record) NaturalKey() string                { return r.RecordID }
func (r *Record) MarshalBinary() ([]byte, error)    { return json.Marshal(r) }
func (r *Record) UnmarshalBinary(data []byte) error { return json.Unmarshal(data, r) }

// ReportedValue carries one typed measurement reported against a Property.
type ReportedValue struct {
	Reporter  int
	Timestamp uint64

	BytesValue   []byte
	BooleanValue bool
	NumberValue  int64
	StringValue  string
	EnumValue    int32
	StructValues []ReportedValue
	LatValue     int64
	LongValue    int64
}

// PropertyPage holds up to MaxPageValues reported values for one Property.
const MaxPageValues = 256

type PropertyPage struct {
	RecordID     string
	PropertyName string
	PageNumber   uint32
	ReportedValues []ReportedValue
	Wrapped      bool
}

func (p *PropertyPage) NaturalKey() string {
	return p.RecordID + ":" + p.PropertyName + ":" + pageKey(p.PageNumber)
}
func (p *PropertyPage) MarshalBinary() ([]byte, error)    { return json.Marshal(p) }
func (p *PropertyPage) UnmarshalBinary(data []byte) error { return json.Unmarshal(data, p) }

func pageKey(n uint32) string {
	const hexDigits = "0123456789abcdef"
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = hexDigits[n&0xf]
		n >>= 4
	}
	return string(b)
}

// Property is the per-record, per-name metadata pointing at the current page.
type Property struct {
	RecordID     string
	Name         string
	DataType     PropertyDataType
	CurrentPage  uint32
	NumUpdates   uint64
	Reporters    []string
}

func (p *Property) NaturalKey() string                { return p.RecordID + ":" + p.Name }
func (p *Property) MarshalBinary() ([]byte, error)    { return json.Marshal(p) }
func (p *Property) UnmarshalBinary(data []byte) error { return json.Unmarshal(data, p) }

// Proposal is a transfer-of-role offer over a Record.
type Proposal struct {
	RecordID       string
	ReceivingAgent string
	IssuingAgent   string
	Role           string
	Status         string
	Properties     []string
}

func (p *Proposal) NaturalKey() string                { return p.RecordID + ":" + p.ReceivingAgent }
func (p *Proposal) MarshalBinary() ([]byte, error)    { return json.Marshal(p) }
func (p *Proposal) UnmarshalBinary(data []byte) error { return json.Unmarshal(data, p) }

// Product is a catalog item owned by an organization.
type Product struct {
	ProductID   string
	ProductType string
	Owner       string
	Properties  []ReportedValue
	PropertyNames []string
}

func (p *Product) NaturalKey() string                { return p.ProductID }
func (p *Product) MarshalBinary() ([]byte, error)    { return json.Marshal(p) }
func (p *Product) UnmarshalBinary(data []byte) error { return json.Unmarshal(data, p) }

// PurchaseOrderVersionRevision is one immutable snapshot of a version's
// negotiated terms.
type PurchaseOrderVersionRevision struct {
	RevisionID   uint64
	Submitter    string
	CreatedAt    uint64
	OrderXMLV34  string
}

// PurchaseOrderVersion is a named line of negotiation for a PurchaseOrder.
type PurchaseOrderVersion struct {
	VersionID         string
	IsDraft           bool
	WorkflowState     string
	CurrentRevisionID uint64
	Revisions         []PurchaseOrderVersionRevision
}

// PurchaseOrder is the negotiated-procurement entity the purchaseorder
// family manages.
type PurchaseOrder struct {
	UID                string
	BuyerOrgID         string
	SellerOrgID        string
	WorkflowType       string
	WorkflowState      string
	IsClosed           bool
	AcceptedVersionID  string
	Versions           []PurchaseOrderVersion
	AlternateIDs       map[string]string
	CreatedAt          uint64
}

func (po *PurchaseOrder) NaturalKey() string                { return po.UID }
func (po *PurchaseOrder) MarshalBinary() ([]byte, error)    { return json.Marshal(po) }
func (po *PurchaseOrder) UnmarshalBinary(data []byte) error { return json.Unmarshal(data, po) }

// CreatedAtTime converts CreatedAt (seconds since the Unix epoch) to a
// time.Time in UTC, for rendering and comparison.
func (po *PurchaseOrder) CreatedAtTime() time.Time {
	return time.Unix(int64(po.CreatedAt), 0).UTC()
}
