/*
Package schema implements the Schema family: creation of a uniquely named
property shape, and append-only updates that may add new properties but
never rename or remove existing ones.
*/
package schema

import (
	"sort"

	"github.com/cuemby/gridfabric/pkg/address"
	"github.com/cuemby/gridfabric/pkg/container"
	"github.com/cuemby/gridfabric/pkg/families"
	"github.com/cuemby/gridfabric/pkg/grid"
	"github.com/cuemby/gridfabric/pkg/permission"
	"github.com/cuemby/gridfabric/pkg/txcontext"
	"github.com/cuemby/gridfabric/pkg/txerror"
)

// Handler implements families.Family for the Schema family.
type Handler struct{}

// New creates a schema Handler.
func New() *Handler { return &Handler{} }

func (h *Handler) Name() string         { return "grid_schema" }
func (h *Handler) Versions() []string   { return []string{"1"} }
func (h *Handler) Namespaces() []string { return []string{address.NamespaceSchema} }

func (h *Handler) Apply(req *families.Request, ctx *txcontext.Context) error {
	payload, err := DecodePayload(req.Payload)
	if err != nil {
		return txerror.Invalidf("schema: malformed payload: %v", err)
	}

	switch payload.Action {
	case ActionCreateSchema:
		return h.create(req, ctx, payload.CreateSchema)
	case ActionUpdateSchema:
		return h.update(req, ctx, payload.UpdateSchema)
	default:
		return txerror.Invalidf("schema: unknown action %q", payload.Action)
	}
}

func toPropertyDefinitions(inputs []PropertyDefinitionInput) []grid.PropertyDefinition {
	out := make([]grid.PropertyDefinition, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, grid.PropertyDefinition{
			Name:             in.Name,
			DataType:         grid.PropertyDataType(in.DataType),
			Required:         in.Required,
			Description:      in.Description,
			NumberExponent:   in.NumberExponent,
			EnumOptions:      in.EnumOptions,
			StructProperties: toPropertyDefinitions(in.StructProperties),
		})
	}
	return out
}

func (h *Handler) loadSchemas(ctx *txcontext.Context, name string) ([]*grid.Schema, error) {
	data, _, err := ctx.Get(address.SchemaAddress(name))
	if err != nil {
		return nil, txerror.Internalf(err, "schema: load container")
	}
	schemas, err := container.Decode(data, func() *grid.Schema { return &grid.Schema{} })
	if err != nil {
		return nil, txerror.Internalf(err, "schema: decode container")
	}
	return schemas, nil
}

func (h *Handler) create(req *families.Request, ctx *txcontext.Context, action *CreateSchemaAction) error {
	if action == nil || action.Name == "" || action.OwnerOrgID == "" {
		return txerror.Invalidf("schema: create_schema requires name and owner_org_id")
	}
	if err := permission.New(ctx).Check(req.SignerPublicKey, "schema.create", action.OwnerOrgID); err != nil {
		return txerror.Invalidf("%v", err)
	}

	schemas, err := h.loadSchemas(ctx, action.Name)
	if err != nil {
		return err
	}
	if _, found := container.Find(schemas, action.Name); found {
		return txerror.Invalidf("schema %s already exists", action.Name)
	}

	s := &grid.Schema{
		Name:        action.Name,
		Description: action.Description,
		OwnerOrgID:  action.OwnerOrgID,
		Properties:  toPropertyDefinitions(action.Properties),
	}
	encoded, err := container.Encode(container.Merge(schemas, s))
	if err != nil {
		return txerror.Internalf(err, "schema: encode container")
	}
	if err := ctx.Set(map[string][]byte{address.SchemaAddress(action.Name): encoded}); err != nil {
		return txerror.Internalf(err, "schema: commit create_schema")
	}
	ctx.AddEvent("schema.created", map[string]string{"name": action.Name}, nil)
	return nil
}

func (h *Handler) update(req *families.Request, ctx *txcontext.Context, action *UpdateSchemaAction) error {
	if action == nil || action.Name == "" {
		return txerror.Invalidf("schema: update_schema requires name")
	}

	schemas, err := h.loadSchemas(ctx, action.Name)
	if err != nil {
		return err
	}
	s, found := container.Find(schemas, action.Name)
	if !found {
		return txerror.Invalidf("schema %s does not exist", action.Name)
	}

	if err := permission.New(ctx).Check(req.SignerPublicKey, "schema.update", s.OwnerOrgID); err != nil {
		return txerror.Invalidf("%v", err)
	}

	existingNames := make([]string, len(s.Properties))
	for i, p := range s.Properties {
		existingNames[i] = p.Name
	}
	sort.Strings(existingNames)

	additions := toPropertyDefinitions(action.AddProperties)
	for _, p := range additions {
		i := sort.SearchStrings(existingNames, p.Name)
		if i < len(existingNames) && existingNames[i] == p.Name {
			return txerror.Invalidf("schema %s: property %q already exists", action.Name, p.Name)
		}
	}
	s.Properties = append(s.Properties, additions...)

	encoded, err := container.Encode(container.Merge(schemas, s))
	if err != nil {
		return txerror.Internalf(err, "schema: encode container")
	}
	if err := ctx.Set(map[string][]byte{address.SchemaAddress(action.Name): encoded}); err != nil {
		return txerror.Internalf(err, "schema: commit update_schema")
	}
	ctx.AddEvent("schema.updated", map[string]string{"name": action.Name}, nil)
	return nil
}
