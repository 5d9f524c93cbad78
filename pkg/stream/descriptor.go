// Package stream implements the LeafLink sync engine: the resource catalog,
// HATEOAS pagination, request parameter building, record extraction and the
// per-stream sync loop that tracks the incremental watermark.
package stream

import (
	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
)

// Descriptor identifies one syncable LeafLink endpoint. Descriptors are
// immutable after startup.
type Descriptor struct {
	// Name is the Singer stream name
	Name string
	// Path is the endpoint path relative to the API root
	Path string
	// PrimaryKeys are the fields identifying a record
	PrimaryKeys []string
	// ReplicationKey is the field filtered with __gte on incremental runs;
	// empty for full-table streams
	ReplicationKey string
	// SchemaKey names the OpenAPI component describing a record
	SchemaKey string
}

// Incremental reports whether the stream filters by a replication key.
func (d Descriptor) Incremental() bool {
	return d.ReplicationKey != ""
}

const modified = "modified"

var catalog = []Descriptor{
	{Name: "orders_received", Path: "/orders-received/", PrimaryKeys: []string{"number"}, ReplicationKey: modified, SchemaKey: "OrderResponse"},
	{Name: "order_payments", Path: "/order-payments/", PrimaryKeys: []string{"id"}, SchemaKey: "OrderPaymentResponse"},
	{Name: "line_items", Path: "/line-items/", PrimaryKeys: []string{"id"}, SchemaKey: "LineItemResponse"},
	{Name: "customers", Path: "/customers/", PrimaryKeys: []string{"id"}, ReplicationKey: modified, SchemaKey: "CustomerResponse"},
	{Name: "products", Path: "/products/", PrimaryKeys: []string{"id"}, ReplicationKey: modified, SchemaKey: "ProductResponse"},
	{Name: "batches", Path: "/batches/", PrimaryKeys: []string{"id"}, ReplicationKey: modified, SchemaKey: "BatchResponse"},
	{Name: "companies", Path: "/companies/", PrimaryKeys: []string{"id"}, SchemaKey: "CompanyResponse"},
	{Name: "brands", Path: "/brands/", PrimaryKeys: []string{"id"}, SchemaKey: "BrandResponse"},
	{Name: "licenses", Path: "/licenses/", PrimaryKeys: []string{"id"}, SchemaKey: "ComplianceLicense"},
	{Name: "license_types", Path: "/license-types/", PrimaryKeys: []string{"id"}, SchemaKey: "LicenseType"},
	{Name: "buyer_orders", Path: "/buyer/orders/", PrimaryKeys: []string{"id"}, ReplicationKey: modified, SchemaKey: "BuyerOrderResponse"},
	{Name: "order_event_logs", Path: "/order-event-logs/", PrimaryKeys: []string{"id"}, SchemaKey: "OrderEventLog"},
	{Name: "order_sales_reps", Path: "/order-sales-reps/", PrimaryKeys: []string{"id"}, SchemaKey: "OrderSalesRepSerialzer"},
	{Name: "inventory_items", Path: "/inventory/items/", PrimaryKeys: []string{"id"}, ReplicationKey: modified, SchemaKey: "InventoryItem"},
	{Name: "product_categories", Path: "/product-categories/", PrimaryKeys: []string{"id"}, SchemaKey: "ProductCategoryResponse"},
	{Name: "contacts", Path: "/contacts/", PrimaryKeys: []string{"id"}, SchemaKey: "Contact"},
	{Name: "company_staff", Path: "/company-staff/", PrimaryKeys: []string{"id"}, SchemaKey: "CompanyStaffResponse"},
}

// Catalog returns every LeafLink stream in sync order.
func Catalog() []Descriptor {
	out := make([]Descriptor, len(catalog))
	for i, d := range catalog {
		d.PrimaryKeys = append([]string(nil), d.PrimaryKeys...)
		out[i] = d
	}
	return out
}

// Lookup finds a stream by name.
func Lookup(name string) (Descriptor, bool) {
	for _, d := range Catalog() {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Select returns the named streams in catalog order, or the whole catalog
// when names is empty. Unknown names are a configuration error.
func Select(names []string) ([]Descriptor, error) {
	all := Catalog()
	if len(names) == 0 {
		return all, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := Lookup(n); !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig, "unknown stream %q", n)
		}
		wanted[n] = true
	}

	selected := make([]Descriptor, 0, len(wanted))
	for _, d := range all {
		if wanted[d.Name] {
			selected = append(selected, d)
		}
	}
	return selected, nil
}
