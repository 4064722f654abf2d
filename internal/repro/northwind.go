// Package repro runs a Northwind subquery repeatedly and concurrently against a
// database to reproduce failures in asynchronous query execution.
package repro

import (
	"time"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
	"github.com/conduit-lang/entityframe/pkg/model"
)

// Customer is a Northwind customer
type Customer struct {
	CustomerID   string
	CompanyName  string
	ContactName  *string
	ContactTitle *string
	Address      *string
	City         *string
	Region       *string
	PostalCode   *string
	Country      *string
	Phone        *string
	Fax          *string
	Orders       []*Order
}

// Employee is a Northwind employee
type Employee struct {
	EmployeeID      int64
	LastName        string
	FirstName       string
	Title           *string
	TitleOfCourtesy *string
	BirthDate       *time.Time
	HireDate        *time.Time
	Address         *string
	City            *string
	Region          *string
	PostalCode      *string
	Country         *string
	HomePhone       *string
	Extension       *string
	Photo           []byte
	Notes           *string
	ReportsTo       *int64
	PhotoPath       *string
}

// Product is a Northwind product
type Product struct {
	ProductID       int64
	ProductName     string
	SupplierID      *int64
	CategoryID      *int64
	QuantityPerUnit *string
	UnitPrice       *float64
	UnitsInStock    *int16
	UnitsOnOrder    *int16
	ReorderLevel    *int16
	Discontinued    bool
	OrderDetails    []*OrderDetail
}

// Order is a Northwind order
type Order struct {
	OrderID        int64
	CustomerID     string
	EmployeeID     *int64
	OrderDate      *time.Time
	RequiredDate   *time.Time
	ShippedDate    *time.Time
	ShipVia        *int64
	Freight        *float64
	ShipName       *string
	ShipAddress    *string
	ShipCity       *string
	ShipRegion     *string
	ShipPostalCode *string
	ShipCountry    *string
	Customer       *Customer
	OrderDetails   []*OrderDetail
}

// OrderDetail is one line of a Northwind order
type OrderDetail struct {
	OrderID   int64
	ProductID int64
	UnitPrice float64
	Quantity  int16
	Discount  float32
	Order     *Order
	Product   *Product
}

// NorthwindModel maps the Northwind types onto the classic Northwind tables. Columns
// the reproduction never reads are ignored.
func NorthwindModel(mb *model.ModelBuilder) *model.ModelBuilder {
	model.Entity[Customer](mb).Table("Customers")

	model.EntityWith[Employee](mb, func(e *model.EntityTypeBuilder) {
		e.Table("Employees")
		for _, name := range []string{
			"Address", "BirthDate", "Extension", "HireDate", "HomePhone", "LastName",
			"Notes", "Photo", "PhotoPath", "PostalCode", "Region", "TitleOfCourtesy",
		} {
			e.Ignore(name)
		}
	})

	model.EntityWith[Product](mb, func(e *model.EntityTypeBuilder) {
		e.Table("Products")
		for _, name := range []string{
			"CategoryID", "QuantityPerUnit", "ReorderLevel", "UnitPrice", "UnitsOnOrder", "SupplierID",
		} {
			e.Ignore(name)
		}
	})

	model.EntityWith[Order](mb, func(e *model.EntityTypeBuilder) {
		e.Table("Orders")
		for _, name := range []string{
			"Freight", "RequiredDate", "ShipAddress", "ShipCity", "ShipCountry", "ShipName",
			"ShipPostalCode", "ShipRegion", "ShipVia", "ShippedDate",
		} {
			e.Ignore(name)
		}
	})

	model.EntityWith[OrderDetail](mb, func(e *model.EntityTypeBuilder) {
		e.Key("OrderID", "ProductID")
		e.Table("Order Details")
	})

	return mb
}

// BuildNorthwind builds and validates the Northwind model
func BuildNorthwind(opts ...model.Option) (*metadata.Model, error) {
	return NorthwindModel(model.NewModelBuilder(opts...)).Build()
}
