package builder

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

type Customer struct {
	ID     int64
	Name   string
	Code   string
	Orders []*Order
}

type Order struct {
	ID         int64
	CustomerID int64
	Note       *string
	Customer   *Customer
}

type Blog struct {
	ID    int64
	Posts []*Post
}

type Post struct {
	ID    int64
	Title string
}

type Person struct {
	ID       int64
	Passport *Passport
}

type Passport struct {
	ID       int64
	PersonID int64
	Person   *Person
}

type Product struct {
	ID      int64
	Code    string `orm:"key,maxlength=10"`
	Name    string `orm:"required,maxlength=40,column=product_name"`
	SKU     string `orm:"unique"`
	Version int64  `orm:"concurrency"`
	Secret  string `orm:"-"`
}

func newBuilder() *InternalModelBuilder {
	return NewInternalModelBuilder(nil, DefaultConventionSet(NewTypeInspector()), nil)
}

func entity(t *testing.T, mb *InternalModelBuilder, v interface{}) *InternalEntityTypeBuilder {
	t.Helper()
	eb, err := mb.EntityForType(reflect.TypeOf(v), metadata.Explicit)
	require.NoError(t, err)
	require.NotNil(t, eb)
	return eb
}

func props(t *testing.T, et *metadata.EntityType, names ...string) []*metadata.Property {
	t.Helper()
	result := make([]*metadata.Property, len(names))
	for i, name := range names {
		result[i] = et.FindProperty(name)
		require.NotNil(t, result[i], "property %s.%s", et.Name(), name)
	}
	return result
}

func singleForeignKey(t *testing.T, et *metadata.EntityType) *metadata.ForeignKey {
	t.Helper()
	fks := et.ForeignKeys()
	require.Len(t, fks, 1)
	return fks[0]
}

func TestConventionsDiscoverOneToMany(t *testing.T) {
	mb := newBuilder()
	entity(t, mb, Customer{})

	m := mb.Metadata()
	customer := m.FindEntityType("Customer")
	order := m.FindEntityType("Order")
	require.NotNil(t, customer)
	require.NotNil(t, order)
	assert.Equal(t, metadata.Convention, order.Source())

	pk := customer.FindPrimaryKey()
	require.NotNil(t, pk)
	assert.Equal(t, "ID", pk.Properties()[0].Name())
	id := pk.Properties()[0]
	assert.True(t, id.GenerateValueOnAdd())
	assert.Equal(t, metadata.StoreGeneratedIdentity, id.StoreGeneratedPattern())

	fk := singleForeignKey(t, order)
	assert.Equal(t, "CustomerID", fk.Properties()[0].Name())
	assert.Same(t, pk, fk.PrincipalKey())
	assert.True(t, fk.IsRequired())
	assert.False(t, fk.IsUnique())
	assert.Equal(t, metadata.Cascade, fk.DeleteBehavior())
	require.NotNil(t, fk.DependentToPrincipal())
	require.NotNil(t, fk.PrincipalToDependent())
	assert.Equal(t, "Customer", fk.DependentToPrincipal().Name())
	assert.Equal(t, "Orders", fk.PrincipalToDependent().Name())
	assert.True(t, fk.PrincipalToDependent().IsCollection())

	assert.Nil(t, order.FindProperty("CustomerID1"), "shadow property should be replaced")
	idx := order.FindIndex(props(t, order, "CustomerID"))
	require.NotNil(t, idx)
	assert.False(t, idx.IsUnique())

	assert.True(t, order.FindProperty("Note").IsNullable())
	assert.False(t, order.FindProperty("CustomerID").IsNullable())

	_, err := mb.Finalize()
	assert.NoError(t, err)
}

func TestConventionsCreateShadowForeignKey(t *testing.T) {
	mb := newBuilder()
	entity(t, mb, Blog{})

	post := mb.Metadata().FindEntityType("Post")
	require.NotNil(t, post)

	fk := singleForeignKey(t, post)
	p := fk.Properties()[0]
	assert.Equal(t, "BlogID", p.Name())
	assert.True(t, p.IsShadow())
	assert.True(t, p.IsNullable())
	assert.False(t, fk.IsRequired())
	assert.Equal(t, metadata.SetNull, fk.DeleteBehavior())
	assert.Nil(t, fk.DependentToPrincipal())
	assert.Equal(t, "Posts", fk.PrincipalToDependent().Name())
	assert.NotNil(t, post.FindIndex([]*metadata.Property{p}))
}

func TestRequiredRelationshipChangesDeleteBehavior(t *testing.T) {
	mb := newBuilder()
	entity(t, mb, Blog{})

	post := mb.Metadata().FindEntityType("Post")
	fk := singleForeignKey(t, post)

	rb, err := mb.RelationshipBuilder(fk).Required(true, metadata.Explicit)
	require.NoError(t, err)
	require.NotNil(t, rb)
	assert.True(t, fk.IsRequired())
	assert.Equal(t, metadata.Cascade, fk.DeleteBehavior())

	rb.OnDelete(metadata.Restrict, metadata.Explicit)
	_, err = rb.Required(false, metadata.Explicit)
	require.NoError(t, err)
	assert.Equal(t, metadata.Restrict, fk.DeleteBehavior(), "explicit delete behavior wins")
}

func TestOneToOneInvertsToPropertySide(t *testing.T) {
	mb := newBuilder()
	entity(t, mb, Passport{})

	m := mb.Metadata()
	person := m.FindEntityType("Person")
	passport := m.FindEntityType("Passport")

	assert.Empty(t, person.ForeignKeys())
	fk := singleForeignKey(t, passport)
	assert.Equal(t, "PersonID", fk.Properties()[0].Name())
	assert.True(t, fk.IsUnique())
	assert.Equal(t, "Person", fk.DependentToPrincipal().Name())
	assert.Equal(t, "Passport", fk.PrincipalToDependent().Name())
	assert.Nil(t, person.FindProperty("PassportID"))

	idx := passport.FindIndex(fk.Properties())
	require.NotNil(t, idx)
	assert.True(t, idx.IsUnique())
}

func TestDataAnnotations(t *testing.T) {
	mb := newBuilder()
	product := entity(t, mb, Product{}).Metadata()

	pk := product.FindPrimaryKey()
	require.NotNil(t, pk)
	assert.Equal(t, "Code", pk.Properties()[0].Name())
	source, _ := product.PrimaryKeySource()
	assert.Equal(t, metadata.DataAnnotation, source)
	assert.Len(t, product.Keys(), 1)

	code := product.FindProperty("Code")
	length, ok := code.MaxLength()
	assert.True(t, ok)
	assert.Equal(t, 10, length)
	assert.False(t, code.GenerateValueOnAdd())

	name := product.FindProperty("Name")
	length, _ = name.MaxLength()
	assert.Equal(t, 40, length)
	assert.Equal(t, "product_name", metadata.ColumnName(name))

	idx := product.FindIndex(props(t, product, "SKU"))
	require.NotNil(t, idx)
	assert.True(t, idx.IsUnique())
	assert.True(t, product.FindProperty("Version").IsConcurrencyToken())

	assert.Nil(t, product.FindProperty("Secret"))
	ignored, ok := product.IsIgnored("Secret")
	assert.True(t, ok)
	assert.Equal(t, metadata.DataAnnotation, ignored)

	id := product.FindProperty("ID")
	assert.False(t, id.IsPrimaryKey())
	assert.False(t, id.GenerateValueOnAdd())
}

func TestExplicitConfigurationOverridesAnnotations(t *testing.T) {
	mb := newBuilder()
	eb := entity(t, mb, Product{})

	pb, err := eb.Property("Secret", nil, metadata.Explicit)
	require.NoError(t, err)
	require.NotNil(t, pb)
	_, ignored := eb.Metadata().IsIgnored("Secret")
	assert.False(t, ignored)

	applied, err := eb.Metadata().FindProperty("Name").SetIsNullable(false, metadata.Convention)
	require.NoError(t, err)
	assert.False(t, applied, "convention cannot change a data annotation")

	kb, err := eb.PrimaryKey([]string{"ID"}, metadata.Explicit)
	require.NoError(t, err)
	require.NotNil(t, kb)
	assert.True(t, eb.Metadata().FindProperty("ID").GenerateValueOnAdd())

	kb, err = eb.PrimaryKey([]string{"Code"}, metadata.DataAnnotation)
	require.NoError(t, err)
	assert.Nil(t, kb)
	assert.Equal(t, "ID", eb.Metadata().FindPrimaryKey().Properties()[0].Name())
}

func TestExplicitPrimaryKeyRetargetsForeignKeys(t *testing.T) {
	mb := newBuilder()
	customerBuilder := entity(t, mb, Customer{})
	customer := customerBuilder.Metadata()
	order := mb.Metadata().FindEntityType("Order")

	kb, err := customerBuilder.PrimaryKey([]string{"Code"}, metadata.Explicit)
	require.NoError(t, err)
	require.NotNil(t, kb)

	fk := singleForeignKey(t, order)
	assert.Same(t, kb.Metadata(), fk.PrincipalKey())
	assert.Len(t, customer.Keys(), 1, "unreferenced previous key is removed")

	p := fk.Properties()[0]
	assert.Equal(t, "CustomerCode", p.Name())
	assert.True(t, p.IsShadow())
	assert.NotNil(t, order.FindProperty("CustomerID"), "struct field stays mapped")
	assert.Nil(t, order.FindIndex(props(t, order, "CustomerID")))
	assert.NotNil(t, order.FindIndex(fk.Properties()))

	assert.False(t, customer.FindProperty("ID").GenerateValueOnAdd())
}

func TestExplicitForeignKeyKeepsPreviousPrincipalKey(t *testing.T) {
	mb := newBuilder()
	customerBuilder := entity(t, mb, Customer{})
	order := mb.Metadata().FindEntityType("Order")

	fk := singleForeignKey(t, order)
	rb, err := mb.RelationshipBuilder(fk).ForeignKey([]string{"CustomerID"}, metadata.Explicit)
	require.NoError(t, err)
	require.NotNil(t, rb)
	_, err = rb.PrincipalKey([]string{"ID"}, metadata.Explicit)
	require.NoError(t, err)

	_, err = customerBuilder.PrimaryKey([]string{"Code"}, metadata.Explicit)
	require.NoError(t, err)

	customer := customerBuilder.Metadata()
	assert.Len(t, customer.Keys(), 2)
	assert.Equal(t, "ID", fk.PrincipalKey().Properties()[0].Name())
	assert.False(t, fk.PrincipalKey().IsPrimaryKey())
}

func TestIgnoreNavigations(t *testing.T) {
	mb := newBuilder()
	entity(t, mb, Customer{})
	m := mb.Metadata()
	customer := mb.EntityTypeBuilder(m.FindEntityType("Customer"))
	order := mb.EntityTypeBuilder(m.FindEntityType("Order"))

	ok, err := order.Ignore("Customer", metadata.Explicit)
	require.NoError(t, err)
	assert.True(t, ok)
	fk := singleForeignKey(t, order.Metadata())
	assert.Nil(t, fk.DependentToPrincipal())

	ok, err = customer.Ignore("Orders", metadata.Explicit)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, order.Metadata().ForeignKeys())
	assert.True(t, fk.IsRemoved())
	assert.NotNil(t, order.Metadata().FindProperty("CustomerID"))
	assert.Empty(t, order.Metadata().Indexes())
}

func TestIgnoreEntityType(t *testing.T) {
	mb := newBuilder()
	entity(t, mb, Customer{})

	ok, err := mb.Ignore("Order", metadata.Explicit)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, mb.Metadata().FindEntityType("Order"))
	assert.Empty(t, mb.Metadata().FindEntityType("Customer").Navigations())

	eb, err := mb.Entity("Order", metadata.Convention)
	require.NoError(t, err)
	assert.Nil(t, eb, "convention cannot undo an explicit ignore")
}

func TestIgnoreRespectsSource(t *testing.T) {
	mb := newBuilder()
	eb := entity(t, mb, Customer{})

	_, err := eb.Property("Name", nil, metadata.Explicit)
	require.NoError(t, err)

	ok, err := eb.Ignore("Name", metadata.DataAnnotation)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotNil(t, eb.Metadata().FindProperty("Name"))
}

func TestExplicitRelationshipWithoutConventions(t *testing.T) {
	mb := NewInternalModelBuilder(nil, &ConventionSet{}, nil)

	customer := entity(t, mb, Customer{})
	order := entity(t, mb, Order{})
	assert.Empty(t, customer.Metadata().Properties())

	_, err := order.Relationship(customer, "Customer", "Orders", false, metadata.Explicit)
	require.ErrorIs(t, err, metadata.ErrNoPrimaryKey)

	_, err = customer.PrimaryKey([]string{"ID"}, metadata.Explicit)
	require.NoError(t, err)
	_, err = order.PrimaryKey([]string{"ID"}, metadata.Explicit)
	require.NoError(t, err)

	rb, err := order.Relationship(customer, "Customer", "Orders", false, metadata.Explicit)
	require.NoError(t, err)
	require.NotNil(t, rb)
	fk := rb.Metadata()
	assert.Equal(t, "CustomerID1", fk.Properties()[0].Name())

	_, err = rb.ForeignKey([]string{"CustomerID"}, metadata.Explicit)
	require.NoError(t, err)
	assert.Equal(t, "CustomerID", fk.Properties()[0].Name())
	assert.Nil(t, order.Metadata().FindProperty("CustomerID1"))
	assert.Empty(t, order.Metadata().Indexes())
}

func TestExplicitForeignKeyTypeMismatch(t *testing.T) {
	mb := newBuilder()
	customer := entity(t, mb, Customer{})
	order := mb.Metadata().FindEntityType("Order")
	fk := singleForeignKey(t, order)

	rb, err := mb.RelationshipBuilder(fk).PrincipalKey([]string{"ID"}, metadata.Explicit)
	require.NoError(t, err)
	require.NotNil(t, rb)

	_, err = mb.RelationshipBuilder(fk).ForeignKey([]string{"Note"}, metadata.Explicit)
	assert.ErrorIs(t, err, metadata.ErrIncompatibleKeys)
	assert.Len(t, customer.Metadata().Keys(), 1)
}

func TestFinalizeReportsValidationErrors(t *testing.T) {
	mb := NewInternalModelBuilder(nil, &ConventionSet{}, nil)
	entity(t, mb, Post{})

	_, err := mb.Finalize()
	require.Error(t, err)
	var verrs *metadata.ValidationErrors
	assert.ErrorAs(t, err, &verrs)
}

type Gadget struct {
	ID   int64
	Name string `orm:"maxlength=abc"`
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		name    string
		tag     reflect.StructTag
		want    Tag
		wantErr bool
	}{
		{name: "no tag", tag: `json:"name"`, want: Tag{}},
		{name: "ignore", tag: `orm:"-"`, want: Tag{Ignore: true}},
		{name: "options", tag: `orm:"key, maxlength=40,column=customer_id"`, want: Tag{Key: true, MaxLength: 40, Column: "customer_id"}},
		{name: "unique implies index", tag: `orm:"unique"`, want: Tag{Index: true, Unique: true}},
		{name: "maxlength not a number", tag: `orm:"maxlength=abc"`, wantErr: true},
		{name: "maxlength zero", tag: `orm:"maxlength=0"`, wantErr: true},
		{name: "column without name", tag: `orm:"column="`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTag(tt.tag)
			if tt.wantErr {
				assert.ErrorIs(t, got.Err, metadata.ErrInvalidType)
				assert.Zero(t, got.MaxLength)
				return
			}
			assert.NoError(t, got.Err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInvalidTagIsReported(t *testing.T) {
	mb := newBuilder()
	_, err := mb.EntityForType(reflect.TypeOf(Gadget{}), metadata.Explicit)
	require.Error(t, err)
	assert.ErrorIs(t, err, metadata.ErrInvalidType)
	assert.Contains(t, err.Error(), "Gadget.Name")
}

func TestRelationshipWithoutPrincipalKeyKeepsNavigations(t *testing.T) {
	mb := NewInternalModelBuilder(nil, &ConventionSet{}, nil)
	customer := entity(t, mb, Customer{})
	order := entity(t, mb, Order{})
	_, err := customer.PrimaryKey([]string{"ID"}, metadata.Explicit)
	require.NoError(t, err)
	_, err = order.PrimaryKey([]string{"ID"}, metadata.Explicit)
	require.NoError(t, err)

	rb, err := order.Relationship(customer, "Customer", "Orders", false, metadata.Convention)
	require.NoError(t, err)
	require.NotNil(t, rb)
	fk := rb.Metadata()

	blog := entity(t, mb, Blog{})
	require.Nil(t, blog.Metadata().FindPrimaryKey())

	_, err = order.Relationship(blog, "Customer", "", false, metadata.Explicit)
	require.ErrorIs(t, err, metadata.ErrNoPrimaryKey)

	assert.False(t, fk.IsRemoved())
	nav := order.Metadata().FindNavigation("Customer")
	require.NotNil(t, nav)
	assert.Same(t, fk, nav.ForeignKey())
	assert.Equal(t, []*metadata.ForeignKey{fk}, order.Metadata().ForeignKeys())
}

func TestIgnoreForeignKeyPropertyRederivesRelationship(t *testing.T) {
	mb := newBuilder()
	customer := entity(t, mb, Customer{})
	order := mb.Metadata().FindEntityType("Order")
	require.Equal(t, "CustomerID", singleForeignKey(t, order).Properties()[0].Name())

	ob := mb.entityTypeBuilder(order)
	ok, err := ob.Ignore("CustomerID", metadata.Explicit)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Nil(t, order.FindProperty("CustomerID"))
	fk := singleForeignKey(t, order)
	require.Len(t, fk.Properties(), 1)
	shadow := fk.Properties()[0]
	assert.True(t, shadow.IsShadow())
	assert.Equal(t, "CustomerID1", shadow.Name())
	assert.Equal(t, metadata.Convention, shadow.Source())
	assert.Same(t, customer.Metadata(), fk.PrincipalEntityType())
	require.NotNil(t, fk.DependentToPrincipal())
	require.NotNil(t, fk.PrincipalToDependent())
	assert.Equal(t, "Customer", fk.DependentToPrincipal().Name())
	assert.Equal(t, "Orders", fk.PrincipalToDependent().Name())

	_, err = mb.Finalize()
	require.NoError(t, err)
}
