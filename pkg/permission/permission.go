/*
Package permission implements the pure function over state that every
family handler consults before mutating anything: given a
signer's public key, a required permission string, and a target
organization, it resolves the signer's effective permission set — the
union of its explicit roles plus the transitive inherit_from closure,
respecting allowed_organizations and stopping at inactive roles — and
tests membership.
*/
package permission

import (
	"fmt"
	"strings"

	"github.com/cuemby/gridfabric/pkg/address"
	"github.com/cuemby/gridfabric/pkg/container"
	"github.com/cuemby/gridfabric/pkg/grid"
)

// Reader is the read-only state surface the checker needs. It is
// satisfied by *txcontext.Context.
type Reader interface {
	Get(addr string) ([]byte, bool, error)
}

// Checker resolves and tests agent permissions against Pike state.
type Checker struct {
	state Reader
}

// New creates a Checker reading Pike state through state.
func New(state Reader) *Checker {
	return &Checker{state: state}
}

func (c *Checker) loadAgent(publicKey string) (*grid.Agent, error) {
	data, ok, err := c.state.Get(address.AgentAddress(publicKey))
	if err != nil {
		return nil, fmt.Errorf("permission: load agent: %w", err)
	}
	if !ok {
		return nil, nil
	}
	agents, err := container.Decode(data, func() *grid.Agent { return &grid.Agent{} })
	if err != nil {
		return nil, fmt.Errorf("permission: decode agent list: %w", err)
	}
	agent, found := container.Find(agents, publicKey)
	if !found {
		return nil, nil
	}
	return agent, nil
}

func (c *Checker) loadRole(orgID, roleName string) (*grid.Role, error) {
	data, ok, err := c.state.Get(address.RoleAddress(orgID, roleName))
	if err != nil {
		return nil, fmt.Errorf("permission: load role: %w", err)
	}
	if !ok {
		return nil, nil
	}
	roles, err := container.Decode(data, func() *grid.Role { return &grid.Role{} })
	if err != nil {
		return nil, fmt.Errorf("permission: decode role list: %w", err)
	}
	role, found := container.Find(roles, orgID+"."+roleName)
	if !found {
		return nil, nil
	}
	return role, nil
}

// roleRef splits a possibly cross-org role reference ("other_org.role") into
// its (orgID, roleName) pair, defaulting orgID to homeOrg for a bare name.
func roleRef(homeOrg, ref string) (orgID, roleName string) {
	if idx := strings.LastIndex(ref, "."); idx >= 0 {
		return ref[:idx], ref[idx+1:]
	}
	return homeOrg, ref
}

// Permissions resolves the full set of permission strings available to the
// agent identified by publicKey, from its perspective as a member of its
// own organization (agent.OrgID), expanding inherit_from
// transitively with a visited set to break cycles.
func (c *Checker) Permissions(publicKey string) (map[string]bool, error) {
	agent, err := c.loadAgent(publicKey)
	if err != nil {
		return nil, err
	}
	if agent == nil || !agent.Active {
		return map[string]bool{}, nil
	}

	perms := make(map[string]bool)
	visited := make(map[string]bool)

	var expand func(orgID, roleName string) error
	expand = func(orgID, roleName string) error {
		key := orgID + "." + roleName
		if visited[key] {
			return nil
		}
		visited[key] = true

		role, err := c.loadRole(orgID, roleName)
		if err != nil {
			return err
		}
		if role == nil || !role.Active {
			return nil
		}
		if !roleVisibleTo(role, agent.OrgID) {
			return nil
		}
		for _, p := range role.Permissions {
			perms[p] = true
		}
		for _, parentRef := range role.InheritFrom {
			parentOrg, parentName := roleRef(orgID, parentRef)
			if err := expand(parentOrg, parentName); err != nil {
				return err
			}
		}
		return nil
	}

	for _, ref := range agent.Roles {
		orgID, roleName := roleRef(agent.OrgID, ref)
		if err := expand(orgID, roleName); err != nil {
			return nil, err
		}
	}
	return perms, nil
}

// roleVisibleTo reports whether a role may be used by an agent belonging to
// agentOrg: a role of agentOrg itself always may; a role defined in another
// org may only when agentOrg is listed in its allowed_organizations (an
// empty list admits no other org).
func roleVisibleTo(role *grid.Role, agentOrg string) bool {
	if role.OrgID == agentOrg {
		return true
	}
	if len(role.AllowedOrganizations) == 0 {
		return false
	}
	for _, org := range role.AllowedOrganizations {
		if org == agentOrg {
			return true
		}
	}
	return false
}

// Check returns nil if the signer holds permission (either directly, or as
// admin of targetOrg), and a descriptive error naming signer, permission,
// and org otherwise. The caller wraps this into a txerror.Invalid.
func (c *Checker) Check(signerPublicKey, permission, targetOrg string) error {
	agent, err := c.loadAgent(signerPublicKey)
	if err != nil {
		return err
	}
	if agent == nil {
		return fmt.Errorf("signer %s is not an Agent", signerPublicKey)
	}
	if !agent.Active {
		return fmt.Errorf("signer %s is not active", signerPublicKey)
	}

	perms, err := c.Permissions(signerPublicKey)
	if err != nil {
		return err
	}
	if perms[permission] {
		return nil
	}

	adminRole, err := c.loadRole(targetOrg, grid.AdminRoleName)
	if err == nil && adminRole != nil && adminRole.Active {
		for _, ref := range agent.Roles {
			orgID, name := roleRef(agent.OrgID, ref)
			if orgID == targetOrg && name == grid.AdminRoleName {
				return nil
			}
		}
	}

	return fmt.Errorf("signer %s lacks permission %q for organization %s", signerPublicKey, permission, targetOrg)
}
