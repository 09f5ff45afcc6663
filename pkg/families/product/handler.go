/*
Package product implements the Product family: creation, property-value
replacement, and deletion of owned catalog items.
*/
package product

import (
	"github.com/cuemby/gridfabric/pkg/address"
	"github.com/cuemby/gridfabric/pkg/container"
	"github.com/cuemby/gridfabric/pkg/families"
	"github.com/cuemby/gridfabric/pkg/grid"
	"github.com/cuemby/gridfabric/pkg/permission"
	"github.com/cuemby/gridfabric/pkg/txcontext"
	"github.com/cuemby/gridfabric/pkg/txerror"
)

// Handler implements families.Family for the Product family.
type Handler struct{}

// New creates a Product Handler.
func New() *Handler { return &Handler{} }

func (h *Handler) Name() string         { return "grid_product" }
func (h *Handler) Versions() []string   { return []string{"1"} }
func (h *Handler) Namespaces() []string { return []string{address.NamespaceProduct} }

func (h *Handler) Apply(req *families.Request, ctx *txcontext.Context) error {
	payload, err := DecodePayload(req.Payload)
	if err != nil {
		return txerror.Invalidf("product: malformed payload: %v", err)
	}

	switch payload.Action {
	case ActionCreateProduct:
		return h.create(req, ctx, payload.CreateProduct)
	case ActionUpdateProduct:
		return h.update(req, ctx, payload.UpdateProduct)
	case ActionDeleteProduct:
		return h.delete(req, ctx, payload.DeleteProduct)
	default:
		return txerror.Invalidf("product: unknown action %q", payload.Action)
	}
}

func (h *Handler) loadProducts(ctx *txcontext.Context, productID string) ([]*grid.Product, error) {
	data, _, err := ctx.Get(address.ProductAddress(productID))
	if err != nil {
		return nil, txerror.Internalf(err, "product: load container")
	}
	products, err := container.Decode(data, func() *grid.Product { return &grid.Product{} })
	if err != nil {
		return nil, txerror.Internalf(err, "product: decode container")
	}
	return products, nil
}

func toReportedValues(inputs []PropertyValueInput) ([]grid.ReportedValue, []string) {
	values := make([]grid.ReportedValue, 0, len(inputs))
	names := make([]string, 0, len(inputs))
	for _, in := range inputs {
		values = append(values, grid.ReportedValue{
			BytesValue:   in.BytesValue,
			BooleanValue: in.BooleanValue,
			NumberValue:  in.NumberValue,
			StringValue:  in.StringValue,
			EnumValue:    in.EnumValue,
			LatValue:     in.LatValue,
			LongValue:    in.LongValue,
		})
		names = append(names, in.Name)
	}
	return values, names
}

func (h *Handler) create(req *families.Request, ctx *txcontext.Context, action *CreateProductAction) error {
	if action == nil || action.ProductID == "" || action.Owner == "" {
		return txerror.Invalidf("product: create_product requires product_id and owner")
	}
	if err := permission.New(ctx).Check(req.SignerPublicKey, "product.create", action.Owner); err != nil {
		return txerror.Invalidf("%v", err)
	}

	products, err := h.loadProducts(ctx, action.ProductID)
	if err != nil {
		return err
	}
	if _, found := container.Find(products, action.ProductID); found {
		return txerror.Invalidf("product %s already exists", action.ProductID)
	}

	values, names := toReportedValues(action.Properties)
	p := &grid.Product{
		ProductID:     action.ProductID,
		ProductType:   string(action.ProductType),
		Owner:         action.Owner,
		Properties:    values,
		PropertyNames: names,
	}
	encoded, err := container.Encode(container.Merge(products, p))
	if err != nil {
		return txerror.Internalf(err, "product: encode container")
	}
	if err := ctx.Set(map[string][]byte{address.ProductAddress(action.ProductID): encoded}); err != nil {
		return txerror.Internalf(err, "product: commit create_product")
	}
	ctx.AddEvent("product.created", map[string]string{"product_id": action.ProductID}, nil)
	return nil
}

func (h *Handler) update(req *families.Request, ctx *txcontext.Context, action *UpdateProductAction) error {
	if action == nil || action.ProductID == "" {
		return txerror.Invalidf("product: update_product requires product_id")
	}
	products, err := h.loadProducts(ctx, action.ProductID)
	if err != nil {
		return err
	}
	p, found := container.Find(products, action.ProductID)
	if !found {
		return txerror.Invalidf("product %s does not exist", action.ProductID)
	}
	if err := permission.New(ctx).Check(req.SignerPublicKey, "product.update", p.Owner); err != nil {
		return txerror.Invalidf("%v", err)
	}

	values, names := toReportedValues(action.Properties)
	p.Properties = values
	p.PropertyNames = names

	encoded, err := container.Encode(container.Merge(products, p))
	if err != nil {
		return txerror.Internalf(err, "product: encode container")
	}
	if err := ctx.Set(map[string][]byte{address.ProductAddress(action.ProductID): encoded}); err != nil {
		return txerror.Internalf(err, "product: commit update_product")
	}
	ctx.AddEvent("product.updated", map[string]string{"product_id": action.ProductID}, nil)
	return nil
}

func (h *Handler) delete(req *families.Request, ctx *txcontext.Context, action *DeleteProductAction) error {
	if action == nil || action.ProductID == "" {
		return txerror.Invalidf("product: delete_product requires product_id")
	}
	products, err := h.loadProducts(ctx, action.ProductID)
	if err != nil {
		return err
	}
	p, found := container.Find(products, action.ProductID)
	if !found {
		return txerror.Invalidf("product %s does not exist", action.ProductID)
	}
	if err := permission.New(ctx).Check(req.SignerPublicKey, "product.delete", p.Owner); err != nil {
		return txerror.Invalidf("%v", err)
	}

	remaining, _ := container.Remove(products, action.ProductID)
	encoded, err := container.Encode(remaining)
	if err != nil {
		return txerror.Internalf(err, "product: encode container")
	}
	if err := ctx.Set(map[string][]byte{address.ProductAddress(action.ProductID): encoded}); err != nil {
		return txerror.Internalf(err, "product: commit delete_product")
	}
	ctx.AddEvent("product.deleted", map[string]string{"product_id": action.ProductID}, nil)
	return nil
}
