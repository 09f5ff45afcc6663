package product

import "encoding/json"

// Action tags which variant of Payload is populated.
type Action string

const (
	ActionCreateProduct Action = "CREATE_PRODUCT"
	ActionUpdateProduct Action = "UPDATE_PRODUCT"
	ActionDeleteProduct Action = "DELETE_PRODUCT"
)

// ProductType distinguishes catalog item kinds.
type ProductType string

const ProductTypeGS1 ProductType = "GS1"

// PropertyValueInput carries one named, typed property value.
type PropertyValueInput struct {
	Name         string
	BytesValue   []byte
	BooleanValue bool
	NumberValue  int64
	StringValue  string
	EnumValue    int32
	LatValue     int64
	LongValue    int64
}

// Payload is the Product family's transaction payload.
type Payload struct {
	Action    Action
	Timestamp uint64

	CreateProduct *CreateProductAction `json:",omitempty"`
	UpdateProduct *UpdateProductAction `json:",omitempty"`
	DeleteProduct *DeleteProductAction `json:",omitempty"`
}

// CreateProductAction creates a new catalog item owned by an organization.
type CreateProductAction struct {
	ProductID   string
	ProductType ProductType
	Owner       string
	Properties  []PropertyValueInput
}

// UpdateProductAction replaces an existing product's property values.
type UpdateProductAction struct {
	ProductID  string
	Properties []PropertyValueInput
}

// DeleteProductAction retires a product.
type DeleteProductAction struct {
	ProductID string
}

// DecodePayload parses raw into a Payload.
func DecodePayload(raw []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
