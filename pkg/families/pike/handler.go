/*
Package pike implements the identity family: Agent, Organization, and Role
CRUD with reserved-admin-role, `.`-in-name, and self-removal rules. This
targets the current arbitrary-roles-with-inheritance model only; the
legacy single-admin-role model is not implemented.
*/
package pike

import (
	"strings"

	"github.com/cuemby/gridfabric/pkg/address"
	"github.com/cuemby/gridfabric/pkg/container"
	"github.com/cuemby/gridfabric/pkg/families"
	"github.com/cuemby/gridfabric/pkg/grid"
	"github.com/cuemby/gridfabric/pkg/permission"
	"github.com/cuemby/gridfabric/pkg/txcontext"
	"github.com/cuemby/gridfabric/pkg/txerror"
)

// Handler implements families.Family for the identity (Pike) family.
type Handler struct{}

// New creates a Pike Handler.
func New() *Handler { return &Handler{} }

func (h *Handler) Name() string         { return "pike" }
func (h *Handler) Versions() []string   { return []string{"2"} }
func (h *Handler) Namespaces() []string { return []string{address.NamespacePike} }

func (h *Handler) Apply(req *families.Request, ctx *txcontext.Context) error {
	payload, err := DecodePayload(req.Payload)
	if err != nil {
		return txerror.Invalidf("pike: malformed payload: %v", err)
	}

	switch payload.Action {
	case ActionCreateOrganization:
		return h.createOrganization(req, ctx, payload.CreateOrganization)
	case ActionUpdateOrganization:
		return h.updateOrganization(req, ctx, payload.UpdateOrganization)
	case ActionCreateAgent:
		return h.createAgent(req, ctx, payload.CreateAgent)
	case ActionUpdateAgent:
		return h.updateAgent(req, ctx, payload.UpdateAgent)
	case ActionCreateRole:
		return h.createRole(req, ctx, payload.CreateRole)
	case ActionUpdateRole:
		return h.updateRole(req, ctx, payload.UpdateRole)
	case ActionDeleteRole:
		return h.deleteRole(req, ctx, payload.DeleteRole)
	default:
		return txerror.Invalidf("pike: unknown action %q", payload.Action)
	}
}

func (h *Handler) loadAgents(ctx *txcontext.Context, publicKey string) ([]*grid.Agent, error) {
	data, _, err := ctx.Get(address.AgentAddress(publicKey))
	if err != nil {
		return nil, txerror.Internalf(err, "pike: load agent container")
	}
	agents, err := container.Decode(data, func() *grid.Agent { return &grid.Agent{} })
	if err != nil {
		return nil, txerror.Internalf(err, "pike: decode agent container")
	}
	return agents, nil
}

func (h *Handler) loadOrgs(ctx *txcontext.Context, orgID string) ([]*grid.Organization, error) {
	data, _, err := ctx.Get(address.OrganizationAddress(orgID))
	if err != nil {
		return nil, txerror.Internalf(err, "pike: load organization container")
	}
	orgs, err := container.Decode(data, func() *grid.Organization { return &grid.Organization{} })
	if err != nil {
		return nil, txerror.Internalf(err, "pike: decode organization container")
	}
	return orgs, nil
}

func (h *Handler) loadRoles(ctx *txcontext.Context, orgID, name string) ([]*grid.Role, error) {
	data, _, err := ctx.Get(address.RoleAddress(orgID, name))
	if err != nil {
		return nil, txerror.Internalf(err, "pike: load role container")
	}
	roles, err := container.Decode(data, func() *grid.Role { return &grid.Role{} })
	if err != nil {
		return nil, txerror.Internalf(err, "pike: decode role container")
	}
	return roles, nil
}

func (h *Handler) resolveSigner(ctx *txcontext.Context, publicKey string) (*grid.Agent, error) {
	agents, err := h.loadAgents(ctx, publicKey)
	if err != nil {
		return nil, err
	}
	agent, found := container.Find(agents, publicKey)
	if !found {
		return nil, txerror.Invalidf("signer is not an Agent")
	}
	if !agent.Active {
		return nil, txerror.Invalidf("signer is not active")
	}
	return agent, nil
}

func (h *Handler) createOrganization(req *families.Request, ctx *txcontext.Context, action *CreateOrganizationAction) error {
	if action == nil || action.OrgID == "" || action.Name == "" {
		return txerror.Invalidf("pike: create_organization requires org_id and name")
	}

	orgs, err := h.loadOrgs(ctx, action.OrgID)
	if err != nil {
		return err
	}
	if _, found := container.Find(orgs, action.OrgID); found {
		return txerror.Invalidf("organization %s already exists", action.OrgID)
	}

	org := &grid.Organization{
		OrgID:        action.OrgID,
		Name:         action.Name,
		Locations:    action.Locations,
		AlternateIDs: map[string]string{},
		Metadata:     action.Metadata,
	}
	encodedOrgs, err := container.Encode(container.Merge(orgs, org))
	if err != nil {
		return txerror.Internalf(err, "pike: encode organization container")
	}

	// The admin role is implicitly created and may never be created
	// explicitly via CreateRoleAction.
	roles, err := h.loadRoles(ctx, action.OrgID, grid.AdminRoleName)
	if err != nil {
		return err
	}
	adminRole := &grid.Role{
		OrgID:       action.OrgID,
		Name:        grid.AdminRoleName,
		Description: "implicit organization administrator",
		Active:      true,
	}
	encodedRoles, err := container.Encode(container.Merge(roles, adminRole))
	if err != nil {
		return txerror.Internalf(err, "pike: encode role container")
	}

	// The creator becomes an active admin agent of the new organization.
	agents, err := h.loadAgents(ctx, req.SignerPublicKey)
	if err != nil {
		return err
	}
	creator := &grid.Agent{
		PublicKey: req.SignerPublicKey,
		OrgID:     action.OrgID,
		Active:    true,
		Roles:     []string{grid.AdminRoleName},
		Metadata:  map[string]string{},
	}
	encodedAgents, err := container.Encode(container.Merge(agents, creator))
	if err != nil {
		return txerror.Internalf(err, "pike: encode agent container")
	}

	if err := ctx.Set(map[string][]byte{
		address.OrganizationAddress(action.OrgID):               encodedOrgs,
		address.RoleAddress(action.OrgID, grid.AdminRoleName):   encodedRoles,
		address.AgentAddress(req.SignerPublicKey):               encodedAgents,
	}); err != nil {
		return txerror.Internalf(err, "pike: commit create_organization")
	}
	ctx.AddEvent("pike.organization.created", map[string]string{"org_id": action.OrgID}, nil)
	return nil
}

func (h *Handler) updateOrganization(req *families.Request, ctx *txcontext.Context, action *UpdateOrganizationAction) error {
	if action == nil || action.OrgID == "" {
		return txerror.Invalidf("pike: update_organization requires org_id")
	}
	if _, err := h.resolveSigner(ctx, req.SignerPublicKey); err != nil {
		return err
	}
	if err := h.checkPermission(ctx, req.SignerPublicKey, "pike.organization.update", action.OrgID); err != nil {
		return err
	}

	orgs, err := h.loadOrgs(ctx, action.OrgID)
	if err != nil {
		return err
	}
	org, found := container.Find(orgs, action.OrgID)
	if !found {
		return txerror.Invalidf("organization %s does not exist", action.OrgID)
	}
	if action.Name != "" {
		org.Name = action.Name
	}
	if action.Locations != nil {
		org.Locations = action.Locations
	}
	if action.Metadata != nil {
		org.Metadata = action.Metadata
	}
	encoded, err := container.Encode(container.Merge(orgs, org))
	if err != nil {
		return txerror.Internalf(err, "pike: encode organization container")
	}
	if err := ctx.Set(map[string][]byte{address.OrganizationAddress(action.OrgID): encoded}); err != nil {
		return txerror.Internalf(err, "pike: commit update_organization")
	}
	ctx.AddEvent("pike.organization.updated", map[string]string{"org_id": action.OrgID}, nil)
	return nil
}

func (h *Handler) createAgent(req *families.Request, ctx *txcontext.Context, action *CreateAgentAction) error {
	if action == nil || action.PublicKey == "" || action.OrgID == "" {
		return txerror.Invalidf("pike: create_agent requires public_key and org_id")
	}
	if _, err := h.resolveSigner(ctx, req.SignerPublicKey); err != nil {
		return err
	}
	if err := h.checkPermission(ctx, req.SignerPublicKey, "pike.agent.create", action.OrgID); err != nil {
		return err
	}

	orgs, err := h.loadOrgs(ctx, action.OrgID)
	if err != nil {
		return err
	}
	if _, found := container.Find(orgs, action.OrgID); !found {
		return txerror.Invalidf("organization %s does not exist", action.OrgID)
	}

	agents, err := h.loadAgents(ctx, action.PublicKey)
	if err != nil {
		return err
	}
	if _, found := container.Find(agents, action.PublicKey); found {
		return txerror.Invalidf("agent %s already exists", action.PublicKey)
	}
	for _, roleName := range action.Roles {
		if roleName == grid.AdminRoleName {
			return txerror.Invalidf("role %q may not be assigned directly; it is implicit", grid.AdminRoleName)
		}
	}

	agent := &grid.Agent{
		PublicKey: action.PublicKey,
		OrgID:     action.OrgID,
		Active:    action.Active,
		Roles:     action.Roles,
		Metadata:  action.Metadata,
	}
	encoded, err := container.Encode(container.Merge(agents, agent))
	if err != nil {
		return txerror.Internalf(err, "pike: encode agent container")
	}
	if err := ctx.Set(map[string][]byte{address.AgentAddress(action.PublicKey): encoded}); err != nil {
		return txerror.Internalf(err, "pike: commit create_agent")
	}
	ctx.AddEvent("pike.agent.created", map[string]string{"public_key": action.PublicKey, "org_id": action.OrgID}, nil)
	return nil
}

func (h *Handler) updateAgent(req *families.Request, ctx *txcontext.Context, action *UpdateAgentAction) error {
	if action == nil || action.PublicKey == "" {
		return txerror.Invalidf("pike: update_agent requires public_key")
	}
	signer, err := h.resolveSigner(ctx, req.SignerPublicKey)
	if err != nil {
		return err
	}

	agents, err := h.loadAgents(ctx, action.PublicKey)
	if err != nil {
		return err
	}
	target, found := container.Find(agents, action.PublicKey)
	if !found {
		return txerror.Invalidf("agent %s does not exist", action.PublicKey)
	}

	if err := h.checkPermission(ctx, req.SignerPublicKey, "pike.agent.update", target.OrgID); err != nil {
		return err
	}

	selfTarget := signer.PublicKey == target.PublicKey
	wasAdmin := target.HasRole(grid.AdminRoleName)

	if action.Active != nil {
		if selfTarget && wasAdmin && !*action.Active {
			return txerror.Invalidf("admin %s may not deactivate itself", signer.PublicKey)
		}
		target.Active = *action.Active
	}
	if action.Roles != nil {
		for _, roleName := range action.Roles {
			if roleName == grid.AdminRoleName {
				return txerror.Invalidf("role %q may not be assigned directly; it is implicit", grid.AdminRoleName)
			}
		}
		if selfTarget && wasAdmin {
			return txerror.Invalidf("admin %s may not remove admin from its own roles", signer.PublicKey)
		}
		target.Roles = action.Roles
	}
	if action.Metadata != nil {
		target.Metadata = action.Metadata
	}

	encoded, err := container.Encode(container.Merge(agents, target))
	if err != nil {
		return txerror.Internalf(err, "pike: encode agent container")
	}
	if err := ctx.Set(map[string][]byte{address.AgentAddress(action.PublicKey): encoded}); err != nil {
		return txerror.Internalf(err, "pike: commit update_agent")
	}
	ctx.AddEvent("pike.agent.updated", map[string]string{"public_key": action.PublicKey}, nil)
	return nil
}

func validateRoleName(name string) error {
	if name == "" {
		return txerror.Invalidf("role name must not be empty")
	}
	if name == grid.AdminRoleName {
		return txerror.Invalidf("role name %q is reserved", grid.AdminRoleName)
	}
	if strings.Contains(name, ".") {
		return txerror.Invalidf("role name %q may not contain '.'", name)
	}
	return nil
}

func (h *Handler) createRole(req *families.Request, ctx *txcontext.Context, action *CreateRoleAction) error {
	if action == nil || action.OrgID == "" {
		return txerror.Invalidf("pike: create_role requires org_id")
	}
	if err := validateRoleName(action.Name); err != nil {
		return err
	}
	if _, err := h.resolveSigner(ctx, req.SignerPublicKey); err != nil {
		return err
	}
	if err := h.checkPermission(ctx, req.SignerPublicKey, "pike.role.create", action.OrgID); err != nil {
		return err
	}

	roles, err := h.loadRoles(ctx, action.OrgID, action.Name)
	if err != nil {
		return err
	}
	if _, found := container.Find(roles, action.OrgID+"."+action.Name); found {
		return txerror.Invalidf("role %s.%s already exists", action.OrgID, action.Name)
	}

	role := &grid.Role{
		OrgID:                action.OrgID,
		Name:                 action.Name,
		Description:          action.Description,
		Permissions:          action.Permissions,
		Active:               action.Active,
		AllowedOrganizations: action.AllowedOrganizations,
		InheritFrom:          action.InheritFrom,
	}
	encoded, err := container.Encode(container.Merge(roles, role))
	if err != nil {
		return txerror.Internalf(err, "pike: encode role container")
	}
	if err := ctx.Set(map[string][]byte{address.RoleAddress(action.OrgID, action.Name): encoded}); err != nil {
		return txerror.Internalf(err, "pike: commit create_role")
	}
	ctx.AddEvent("pike.role.created", map[string]string{"org_id": action.OrgID, "name": action.Name}, nil)
	return nil
}

func (h *Handler) updateRole(req *families.Request, ctx *txcontext.Context, action *UpdateRoleAction) error {
	if action == nil || action.OrgID == "" {
		return txerror.Invalidf("pike: update_role requires org_id")
	}
	if err := validateRoleName(action.Name); err != nil {
		return err
	}
	if _, err := h.resolveSigner(ctx, req.SignerPublicKey); err != nil {
		return err
	}
	if err := h.checkPermission(ctx, req.SignerPublicKey, "pike.role.update", action.OrgID); err != nil {
		return err
	}

	roles, err := h.loadRoles(ctx, action.OrgID, action.Name)
	if err != nil {
		return err
	}
	role, found := container.Find(roles, action.OrgID+"."+action.Name)
	if !found {
		return txerror.Invalidf("role %s.%s does not exist", action.OrgID, action.Name)
	}

	if action.Description != nil {
		role.Description = *action.Description
	}
	if action.Permissions != nil {
		role.Permissions = action.Permissions
	}
	if action.Active != nil {
		role.Active = *action.Active
	}
	if action.AllowedOrganizations != nil {
		role.AllowedOrganizations = action.AllowedOrganizations
	}
	if action.InheritFrom != nil {
		role.InheritFrom = action.InheritFrom
	}

	encoded, err := container.Encode(container.Merge(roles, role))
	if err != nil {
		return txerror.Internalf(err, "pike: encode role container")
	}
	if err := ctx.Set(map[string][]byte{address.RoleAddress(action.OrgID, action.Name): encoded}); err != nil {
		return txerror.Internalf(err, "pike: commit update_role")
	}
	ctx.AddEvent("pike.role.updated", map[string]string{"org_id": action.OrgID, "name": action.Name}, nil)
	return nil
}

func (h *Handler) deleteRole(req *families.Request, ctx *txcontext.Context, action *DeleteRoleAction) error {
	if action == nil || action.OrgID == "" {
		return txerror.Invalidf("pike: delete_role requires org_id")
	}
	if err := validateRoleName(action.Name); err != nil {
		return err
	}
	if _, err := h.resolveSigner(ctx, req.SignerPublicKey); err != nil {
		return err
	}
	if err := h.checkPermission(ctx, req.SignerPublicKey, "pike.role.delete", action.OrgID); err != nil {
		return err
	}

	roles, err := h.loadRoles(ctx, action.OrgID, action.Name)
	if err != nil {
		return err
	}
	if _, found := container.Find(roles, action.OrgID+"."+action.Name); !found {
		return txerror.Invalidf("role %s.%s does not exist", action.OrgID, action.Name)
	}
	remaining, _ := container.Remove(roles, action.OrgID+"."+action.Name)
	encoded, err := container.Encode(remaining)
	if err != nil {
		return txerror.Internalf(err, "pike: encode role container")
	}
	if err := ctx.Set(map[string][]byte{address.RoleAddress(action.OrgID, action.Name): encoded}); err != nil {
		return txerror.Internalf(err, "pike: commit delete_role")
	}
	ctx.AddEvent("pike.role.deleted", map[string]string{"org_id": action.OrgID, "name": action.Name}, nil)
	return nil
}

func (h *Handler) checkPermission(ctx *txcontext.Context, signer, perm, targetOrg string) error {
	checker := permission.New(ctx)
	if err := checker.Check(signer, perm, targetOrg); err != nil {
		return txerror.Invalidf("%v", err)
	}
	return nil
}
