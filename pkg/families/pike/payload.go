package pike

import "encoding/json"

// Action tags which variant of Payload is populated, standing in for a
// protobuf oneof (no protoc step runs in this repo).
type Action string

const (
	ActionCreateAgent        Action = "CREATE_AGENT"
	ActionUpdateAgent        Action = "UPDATE_AGENT"
	ActionCreateOrganization Action = "CREATE_ORGANIZATION"
	ActionUpdateOrganization Action = "UPDATE_ORGANIZATION"
	ActionCreateRole         Action = "CREATE_ROLE"
	ActionUpdateRole         Action = "UPDATE_ROLE"
	ActionDeleteRole         Action = "DELETE_ROLE"
)

// Payload is the Pike family's transaction payload.
type Payload struct {
	Action    Action
	Timestamp uint64

	CreateAgent        *CreateAgentAction        `json:",omitempty"`
	UpdateAgent        *UpdateAgentAction        `json:",omitempty"`
	CreateOrganization *CreateOrganizationAction `json:",omitempty"`
	UpdateOrganization *UpdateOrganizationAction `json:",omitempty"`
	CreateRole         *CreateRoleAction         `json:",omitempty"`
	UpdateRole         *UpdateRoleAction         `json:",omitempty"`
	DeleteRole         *DeleteRoleAction         `json:",omitempty"`
}

// CreateAgentAction creates a new signing identity.
type CreateAgentAction struct {
	PublicKey string
	OrgID     string
	Active    bool
	Roles     []string
	Metadata  map[string]string
}

// UpdateAgentAction mutates an existing agent's roles/activity/metadata.
type UpdateAgentAction struct {
	PublicKey string
	Active    *bool
	Roles     []string
	Metadata  map[string]string
}

// CreateOrganizationAction creates a new organization; this implicitly
// creates the org's admin role and seeds the signer as an active admin
// agent.
type CreateOrganizationAction struct {
	OrgID     string
	Name      string
	Locations []string
	Metadata  map[string]string
}

// UpdateOrganizationAction mutates an existing organization.
type UpdateOrganizationAction struct {
	OrgID     string
	Name      string
	Locations []string
	Metadata  map[string]string
}

// CreateRoleAction creates a new, non-admin role.
type CreateRoleAction struct {
	OrgID                string
	Name                 string
	Description          string
	Permissions          []string
	Active               bool
	AllowedOrganizations []string
	InheritFrom          []string
}

// UpdateRoleAction mutates an existing, non-admin role.
type UpdateRoleAction struct {
	OrgID                string
	Name                 string
	Description          *string
	Permissions          []string
	Active               *bool
	AllowedOrganizations []string
	InheritFrom          []string
}

// DeleteRoleAction retires a non-admin role.
type DeleteRoleAction struct {
	OrgID string
	Name  string
}

// DecodePayload parses raw into a Payload. Structural decode failure is the
// caller's responsibility to surface as txerror.Invalid.
func DecodePayload(raw []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
