// Package documents implements the warehouse document aggregate and its
// workflow engine.
package documents

import (
	"warelog/internal/core/apperror"
)

// Type is the closed set of document type codes.
type Type string

const (
	TypePZ  Type = "PZ"  // goods receipt from supplier
	TypeFVZ Type = "FVZ" // purchase invoice
	TypeWZ  Type = "WZ"  // goods issue to customer
	TypeFS  Type = "FS"  // sales invoice
	TypeMM  Type = "MM"  // inter-warehouse transfer
	TypePW  Type = "PW"  // internal receipt
	TypeRW  Type = "RW"  // internal issue
	TypeZW  Type = "ZW"  // customer return
	TypeZRW Type = "ZRW" // return to supplier
	TypeINW Type = "INW" // inventory count
)

// WarehouseRole describes which warehouse side a document type writes.
type WarehouseRole int

const (
	RoleNone WarehouseRole = iota
	RoleTarget
	RoleSource
	RoleBoth
)

// Field keys used in required-field validation and error details.
const (
	FieldSupplier        = "supplier_id"
	FieldCustomer        = "customer_id"
	FieldWarehouse       = "warehouse_id"
	FieldSourceWarehouse = "source_warehouse_id"
	FieldTargetWarehouse = "target_warehouse_id"
	FieldRelatedOrder    = "related_order_id"
)

// Definition is the per-type behavior table. All type-dependent decisions
// (validation, warehouse mapping, stock effects) read from here instead of
// switching on the code in multiple places.
type Definition struct {
	Type  Type
	Label string

	// Role decides which warehouse fields the type writes
	Role WarehouseRole

	// Financial types create items and totals but never touch stock
	Financial bool

	// Required field keys beyond document date (and items for all but INW)
	Required []string

	// RequiresItems is false only for INW, which carries count lines instead
	RequiresItems bool

	// Immediate types skip the provisional phase and close on creation
	Immediate bool
}

var definitions = map[Type]Definition{
	TypePZ: {
		Type: TypePZ, Label: "Goods receipt", Role: RoleTarget,
		Required:      []string{FieldSupplier, FieldWarehouse},
		RequiresItems: true,
	},
	TypeFVZ: {
		Type: TypeFVZ, Label: "Purchase invoice", Role: RoleNone, Financial: true,
		Required:      []string{FieldSupplier},
		RequiresItems: true,
	},
	TypeWZ: {
		Type: TypeWZ, Label: "Goods issue", Role: RoleSource,
		Required:      []string{FieldRelatedOrder, FieldWarehouse},
		RequiresItems: true,
	},
	TypeFS: {
		Type: TypeFS, Label: "Sales invoice", Role: RoleNone, Financial: true,
		Required:      []string{FieldRelatedOrder},
		RequiresItems: true,
	},
	TypeMM: {
		Type: TypeMM, Label: "Stock transfer", Role: RoleBoth,
		Required:      []string{FieldSourceWarehouse, FieldTargetWarehouse},
		RequiresItems: true,
	},
	TypePW: {
		Type: TypePW, Label: "Internal receipt", Role: RoleTarget,
		Required:      []string{FieldWarehouse},
		RequiresItems: true,
	},
	TypeRW: {
		Type: TypeRW, Label: "Internal issue", Role: RoleSource,
		Required:      []string{FieldWarehouse},
		RequiresItems: true,
	},
	TypeZW: {
		Type: TypeZW, Label: "Customer return", Role: RoleTarget,
		Required:      []string{FieldRelatedOrder, FieldWarehouse},
		RequiresItems: true,
	},
	TypeZRW: {
		Type: TypeZRW, Label: "Return to supplier", Role: RoleSource,
		Required:      []string{FieldSupplier, FieldWarehouse},
		RequiresItems: true,
	},
	TypeINW: {
		Type: TypeINW, Label: "Inventory count", Role: RoleTarget,
		Required:  []string{FieldWarehouse},
		Immediate: true,
	},
}

// Lookup returns the definition for a type code.
func Lookup(t Type) (Definition, error) {
	def, ok := definitions[t]
	if !ok {
		return Definition{}, apperror.NewUnsupportedDocumentType(string(t))
	}
	return def, nil
}

// MustLookup returns the definition or panics. Use only with validated types.
func MustLookup(t Type) Definition {
	def, err := Lookup(t)
	if err != nil {
		panic(err)
	}
	return def
}

// All returns definitions in a stable order.
func All() []Definition {
	order := []Type{TypePZ, TypeFVZ, TypeWZ, TypeFS, TypeMM, TypePW, TypeRW, TypeZW, TypeZRW, TypeINW}
	out := make([]Definition, 0, len(order))
	for _, t := range order {
		out = append(out, definitions[t])
	}
	return out
}

// WritesTarget reports whether the type records inbound stock.
func (d Definition) WritesTarget() bool {
	return d.Role == RoleTarget || d.Role == RoleBoth
}

// WritesSource reports whether the type records outbound stock.
func (d Definition) WritesSource() bool {
	return d.Role == RoleSource || d.Role == RoleBoth
}
