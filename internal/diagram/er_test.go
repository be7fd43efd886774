package diagram

import (
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/efebarandurmaz/codechart/internal/ir"
)

func entityNames(es []Entity) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Name)
	}
	return out
}

func TestEntities_UserModelScenario(t *testing.T) {
	m := &ir.Model{Files: []*ir.FileRecord{
		file("/src/userModel.js", "Database", "createUser"),
	}}

	if got := entityNames(NewER().Entities(m)); !reflect.DeepEqual(got, []string{"User"}) {
		t.Errorf("entities = %v, want [User]", got)
	}
}

func TestEntities_EachStrategy(t *testing.T) {
	tests := []struct {
		name string
		rec  *ir.FileRecord
		want []string
	}{
		{
			name: "database category strips suffix",
			rec:  file("/db/invoiceRepository.js", "Database/ORM"),
			want: []string{"Invoice"},
		},
		{
			name: "crud function",
			rec:  file("/api/handlers.js", "API", "fetchCustomerById", "getAll", "handleClick"),
			want: []string{"Customer"},
		},
		{
			name: "import under models folder",
			rec: func() *ir.FileRecord {
				r := file("/api/routes.js", "API")
				r.Libraries = []string{"../models/shipment.model", "express", "./utils/models"}
				return r
			}(),
			want: []string{"Shipment"},
		},
		{
			name: "filename marker",
			rec:  file("/src/ticket.schema.ts", "Validation"),
			want: []string{"Ticket"},
		},
		{
			name: "snake case crud",
			rec:  file("/src/svc.js", "Backend", "delete_vendor_by_id"),
			want: []string{"Vendor"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &ir.Model{Files: []*ir.FileRecord{tt.rec}}
			if got := entityNames(NewER().Entities(m)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("entities = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntities_FallbackWhenNothingInferred(t *testing.T) {
	for _, m := range []*ir.Model{
		{},
		{Files: []*ir.FileRecord{file("/src/App.jsx", "Frontend", "render", "_onClick")}},
	} {
		got := entityNames(NewER().Entities(m))
		if !reflect.DeepEqual(got, []string{"Category", "Order", "Payment", "Product", "User"}) {
			t.Errorf("entities = %v, want the fallback set", got)
		}
	}
}

func TestEntities_CappedAndSorted(t *testing.T) {
	var fns []string
	for _, n := range []string{"Zebra", "Apple", "Mango", "Kiwi", "Lemon", "Grape", "Peach", "Berry", "Cherry", "Olive"} {
		fns = append(fns, "create"+n)
	}
	m := &ir.Model{Files: []*ir.FileRecord{file("/src/fruit.js", "Backend", fns...)}}

	got := entityNames(NewER().Entities(m))
	if len(got) != MaxEntities {
		t.Fatalf("entities = %d, want %d", len(got), MaxEntities)
	}
	if !sort.StringsAreSorted(got) {
		t.Errorf("entities not sorted: %v", got)
	}
	if got[0] != "Apple" {
		t.Errorf("first entity = %q, want Apple", got[0])
	}
}

func TestEntities_InvalidCandidatesDropped(t *testing.T) {
	m := &ir.Model{Files: []*ir.FileRecord{
		file("/src/model.js", "Database"),
		file("/src/x.js", "Backend", "createX", "update1234"),
	}}
	got := entityNames(NewER().Entities(m))
	if !reflect.DeepEqual(got, []string{"Category", "Order", "Payment", "Product", "User"}) {
		t.Errorf("entities = %v, want the fallback set", got)
	}
}

func TestSanitizeEntity(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"user", "User", true},
		{"order-item", "Order-item", true},
		{"_line_item", "Line_item", true},
		{"9lives", "Lives", true},
		{"x", "", false},
		{"", "", false},
		{"$$", "", false},
	}
	for _, tt := range tests {
		got, ok := SanitizeEntity(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("SanitizeEntity(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSplitIdentifier(t *testing.T) {
	tests := map[string][]string{
		"createUser":     {"create", "User"},
		"getHTTPServer":  {"get", "HTTP", "Server"},
		"find_all_users": {"find", "all", "users"},
		"OrderItem":      {"Order", "Item"},
		"v2Api":          {"v2", "Api"},
		"__private":      {"private"},
		"updateUserByID": {"update", "User", "By", "ID"},
	}
	for in, want := range tests {
		if got := SplitIdentifier(in); !reflect.DeepEqual(got, want) {
			t.Errorf("SplitIdentifier(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFields(t *testing.T) {
	er := NewER()
	user := er.fieldsFor("User")
	if !reflect.DeepEqual(user[:len(BaseFields)], BaseFields) {
		t.Errorf("User fields do not start with the base fields: %v", user)
	}
	hasEmail := false
	for _, f := range user {
		if f == (Field{Type: "string", Name: "email"}) {
			hasEmail = true
		}
	}
	if !hasEmail {
		t.Errorf("User fields missing email: %v", user)
	}

	other := er.fieldsFor("Widget")
	if want := append(append([]Field(nil), BaseFields...), GenericFields...); !reflect.DeepEqual(other, want) {
		t.Errorf("Widget fields = %v, want %v", other, want)
	}
}

func TestRelationships_FromEdges(t *testing.T) {
	svc := file("/src/services/orderService.js", "Backend", "createOrder")
	model := file("/src/models/userModel.js", "Database", "findUser")
	m := &ir.Model{
		Files: []*ir.FileRecord{svc, model},
		Edges: []ir.DependencyEdge{{From: "orderService.js", To: "userModel.js", RelativePath: "../models/userModel"}},
	}
	er := NewER()
	entities := er.Entities(m)
	if got := entityNames(entities); !reflect.DeepEqual(got, []string{"Order", "User"}) {
		t.Fatalf("entities = %v", got)
	}

	rels := er.Relationships(m, entities)
	want := []Relationship{{From: "Order", To: "User", Cardinality: OneToMany, Label: "references"}}
	if !reflect.DeepEqual(rels, want) {
		t.Errorf("relationships = %+v, want %+v", rels, want)
	}
}

func TestRelationships_RootDirectoryIgnored(t *testing.T) {
	root := "/home/dev/user-portal"
	order := fileAt(root, "src/orderModel.js", "Database", "createOrder")
	product := fileAt(root, "src/productModel.js", "Database", "findProduct")
	m := &ir.Model{
		Files: []*ir.FileRecord{order, product},
		Edges: []ir.DependencyEdge{{
			From: "orderModel.js", To: "productModel.js", RelativePath: "./productModel",
			FromPath: "src/orderModel.js", ToPath: "src/productModel.js",
		}},
	}
	entities := []Entity{{Name: "Order"}, {Name: "Product"}, {Name: "User"}}

	rels := NewER().Relationships(m, entities)
	want := []Relationship{{From: "Order", To: "Product", Cardinality: OneToMany, Label: "references"}}
	if !reflect.DeepEqual(rels, want) {
		t.Errorf("relationships = %+v, want %+v", rels, want)
	}
}

func TestRelationships_ChainFallback(t *testing.T) {
	er := NewER()
	entities := er.Entities(&ir.Model{})
	rels := er.Relationships(&ir.Model{}, entities)

	want := []Relationship{
		{From: "Category", To: "Order", Cardinality: OneToMany, Label: "relates"},
		{From: "Order", To: "Payment", Cardinality: OneToOne, Label: "paid by"},
		{From: "Payment", To: "Product", Cardinality: OneToMany, Label: "relates"},
		{From: "Product", To: "User", Cardinality: OneToMany, Label: "relates"},
	}
	if !reflect.DeepEqual(rels, want) {
		t.Errorf("relationships = %+v, want %+v", rels, want)
	}
}

func TestRelationships_RuleMatchesEitherDirection(t *testing.T) {
	er := NewER()
	er.Fallback = []string{"Order", "User"}

	rels := er.Relationships(&ir.Model{}, er.Entities(&ir.Model{}))
	want := []Relationship{{From: "User", To: "Order", Cardinality: OneToMany, Label: "places"}}
	if !reflect.DeepEqual(rels, want) {
		t.Errorf("relationships = %+v, want %+v", rels, want)
	}
}

func TestRelationships_ReplaceableRules(t *testing.T) {
	er := NewER()
	er.RelationRules = []RelationRule{{From: "product", To: "user", Label: "bought by"}}
	er.Fallback = []string{"Product", "User"}

	rels := er.Relationships(&ir.Model{}, er.Entities(&ir.Model{}))
	want := []Relationship{{From: "Product", To: "User", Cardinality: OneToMany, Label: "bought by"}}
	if !reflect.DeepEqual(rels, want) {
		t.Errorf("relationships = %+v, want %+v", rels, want)
	}
}

func TestRenderER(t *testing.T) {
	out := RenderER(&ir.Model{Files: []*ir.FileRecord{file("/src/userModel.js", "Database", "createUser")}})

	if !strings.HasPrefix(out, "erDiagram\n") {
		t.Errorf("missing header:\n%s", out)
	}
	mustContain(t, out, "    User {\n        int id PK\n        string name\n", "        string email\n")
	mustNotContain(t, out, "||--")
}

func TestRenderER_FallbackDiagram(t *testing.T) {
	out := RenderER(&ir.Model{})
	for _, n := range FallbackEntities {
		mustContain(t, out, "    "+n+" {\n")
	}
	mustContain(t, out, `Order ||--|| Payment : "paid by"`, `Category ||--o{ Order : "relates"`)
}
