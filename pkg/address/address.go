/*
Package address implements the namespaced, hex, 70-character state
addressing scheme shared by every family: the first six characters
identify the family's namespace, the remaining 64 are a deterministic
digest of the entity's natural key, optionally segmented by a resource
sub-type byte and an organization digest.

Addresses are wire-visible and compatibility-critical: callers must
never change an existing family's namespace or digest composition
without a migration plan.
*/
package address

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Length is the fixed length of every state address in hex characters.
const Length = 70

// NamespaceLength is the length in hex characters of a family's prefix.
const NamespaceLength = 6

// Family namespace prefixes, one per entity family.
const (
	NamespacePike           = "cad11d"
	NamespaceSchema         = "621dee"
	NamespaceTrackAndTrace  = "621dea"
	NamespaceProduct        = "621dec"
	NamespacePurchaseOrder  = "621ded"
	NamespaceAlternateIDIdx = "621de0"
)

// hash160 returns the first n hex characters of the SHA-256 digest of key.
func hash160(key string, n int) string {
	sum := sha256.Sum256([]byte(key))
	h := hex.EncodeToString(sum[:])
	if n > len(h) {
		n = len(h)
	}
	return h[:n]
}

// Compose builds a full address from a namespace, an optional two-character
// resource sub-type, and the remainder digested from key. The total length
// is always Length; digest bytes are truncated or it is an invariant
// violation for the caller to pass a namespace+subtype longer than Length-2.
func Compose(namespace, subtype, key string) string {
	prefix := namespace + subtype
	digestChars := Length - len(prefix)
	return prefix + hash160(key, digestChars)
}

// ForOrgScoped builds an address segmented by namespace, sub-type, an
// organization digest (used by role-scoped entities), and the natural key.
func ForOrgScoped(namespace, subtype, orgID, key string) string {
	prefix := namespace + subtype
	orgDigest := hash160(orgID, 12)
	remaining := Length - len(prefix) - len(orgDigest)
	return prefix + orgDigest + hash160(key, remaining)
}

// AgentAddress computes the Pike address of an Agent by public key.
func AgentAddress(publicKey string) string {
	return Compose(NamespacePike, "00", "agent:"+publicKey)
}

// OrganizationAddress computes the Pike address of an Organization by org_id.
func OrganizationAddress(orgID string) string {
	return Compose(NamespacePike, "01", "org:"+orgID)
}

// RoleAddress computes the Pike address of a Role, scoped by owning org.
func RoleAddress(orgID, roleName string) string {
	return ForOrgScoped(NamespacePike, "02", orgID, "role:"+roleName)
}

// AlternateIDIndexAddress computes the address of a secondary org lookup.
func AlternateIDIndexAddress(idType, id string) string {
	return Compose(NamespaceAlternateIDIdx, "", fmt.Sprintf("altid:%s:%s", idType, id))
}

// SchemaAddress computes the address of a Schema by name.
func SchemaAddress(name string) string {
	return Compose(NamespaceSchema, "", "schema:"+name)
}

// RecordAddress computes the address of a track-and-trace Record.
func RecordAddress(recordID string) string {
	return Compose(NamespaceTrackAndTrace, "00", "record:"+recordID)
}

// PropertyAddress computes the address of a Property (per record, per name).
func PropertyAddress(recordID, propertyName string) string {
	return Compose(NamespaceTrackAndTrace, "01", fmt.Sprintf("property:%s:%s", recordID, propertyName))
}

// PropertyPageAddress computes the address of a numbered PropertyPage.
func PropertyPageAddress(recordID, propertyName string, page uint32) string {
	return Compose(NamespaceTrackAndTrace, "02", fmt.Sprintf("page:%s:%s:%d", recordID, propertyName, page))
}

// ProposalAddress computes the address of a role-transfer Proposal.
func ProposalAddress(recordID, receivingAgent string) string {
	return Compose(NamespaceTrackAndTrace, "03", fmt.Sprintf("proposal:%s:%s", recordID, receivingAgent))
}

// ProductAddress computes the address of a Product by product_id.
func ProductAddress(productID string) string {
	return Compose(NamespaceProduct, "", "product:"+productID)
}

// PurchaseOrderAddress computes the address of a PurchaseOrder by uid.
func PurchaseOrderAddress(uid string) string {
	return Compose(NamespacePurchaseOrder, "", "po:"+uid)
}

// Namespace returns the six-character family namespace prefix of addr.
// addr must be at least NamespaceLength characters; callers should have
// already validated addr's overall length.
func Namespace(addr string) string {
	if len(addr) < NamespaceLength {
		return addr
	}
	return addr[:NamespaceLength]
}

// Valid reports whether addr is a syntactically valid state address:
// exactly Length lowercase hex characters.
func Valid(addr string) bool {
	if len(addr) != Length {
		return false
	}
	for _, r := range addr {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			return false
		}
	}
	return true
}
