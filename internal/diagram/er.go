package diagram

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/efebarandurmaz/codechart/internal/ir"
)

// OneToMany and OneToOne are Mermaid ER cardinality markers.
const (
	OneToMany = "||--o{"
	OneToOne  = "||--||"
)

// MaxEntities caps the number of entities drawn.
const MaxEntities = 8

// FallbackEntities are drawn when nothing can be inferred from the model.
var FallbackEntities = []string{"User", "Product", "Order", "Category", "Payment"}

// Field is one attribute line of an entity block.
type Field struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Key  string `json:"key,omitempty"`
}

// Entity is an inferred data entity.
type Entity struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Relationship connects two entities.
type Relationship struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Cardinality string `json:"cardinality"`
	Label       string `json:"label"`
}

// RelationRule links two adjacent entities when their lowercased names
// contain From and To respectively. Rules match in either direction.
type RelationRule struct {
	From        string
	To          string
	Label       string
	Cardinality string
}

// FieldRule adds Fields to entities whose lowercased name contains Keyword.
type FieldRule struct {
	Keyword string
	Fields  []Field
}

// DefaultRelationRules are consulted in order; the first match wins.
var DefaultRelationRules = []RelationRule{
	{From: "user", To: "order", Label: "places", Cardinality: OneToMany},
	{From: "order", To: "product", Label: "contains", Cardinality: OneToMany},
	{From: "category", To: "product", Label: "categorizes", Cardinality: OneToMany},
	{From: "order", To: "payment", Label: "paid by", Cardinality: OneToOne},
	{From: "user", To: "payment", Label: "makes", Cardinality: OneToMany},
}

// BaseFields open every entity block.
var BaseFields = []Field{
	{Type: "int", Name: "id", Key: "PK"},
	{Type: "string", Name: "name"},
	{Type: "datetime", Name: "created_at"},
	{Type: "datetime", Name: "updated_at"},
}

// GenericFields close entities that match no FieldRule.
var GenericFields = []Field{
	{Type: "string", Name: "description"},
	{Type: "string", Name: "status"},
}

// DefaultFieldRules are consulted in order; the first match wins.
var DefaultFieldRules = []FieldRule{
	{Keyword: "user", Fields: []Field{
		{Type: "string", Name: "email"},
		{Type: "string", Name: "password_hash"},
		{Type: "string", Name: "role"},
	}},
	{Keyword: "order", Fields: []Field{
		{Type: "int", Name: "user_id", Key: "FK"},
		{Type: "decimal", Name: "total"},
		{Type: "string", Name: "status"},
	}},
	{Keyword: "product", Fields: []Field{
		{Type: "decimal", Name: "price"},
		{Type: "int", Name: "stock"},
		{Type: "int", Name: "category_id", Key: "FK"},
	}},
	{Keyword: "category", Fields: []Field{
		{Type: "string", Name: "slug"},
		{Type: "int", Name: "parent_id", Key: "FK"},
	}},
	{Keyword: "payment", Fields: []Field{
		{Type: "int", Name: "order_id", Key: "FK"},
		{Type: "decimal", Name: "amount"},
		{Type: "string", Name: "method"},
	}},
}

var (
	validEntity = regexp.MustCompile(`^[A-Z][A-Za-z0-9_-]+$`)

	entitySuffixes   = []string{"repository", "schema", "entity", "model"}
	entityMarkers    = []string{"model", "schema", "entity", "table"}
	entityFolders    = map[string]bool{"models": true, "schemas": true, "entities": true, "model": true, "schema": true, "entity": true}
	databaseCategory = map[string]bool{"database": true, "db": true, "orm": true, "model": true, "models": true, "schema": true, "schemas": true, "persistence": true}

	crudVerbs = map[string]bool{
		"create": true, "insert": true, "save": true, "update": true, "delete": true,
		"find": true, "get": true, "fetch": true, "remove": true, "add": true,
	}
	tokenStopWords = map[string]bool{"by": true, "all": true, "new": true}
)

// ER renders entity-relationship diagrams. The zero value is not usable;
// start from NewER and replace the tables as needed.
type ER struct {
	RelationRules []RelationRule
	FieldRules    []FieldRule
	Fallback      []string
	MaxEntities   int
}

// NewER returns a renderer wired with the default tables.
func NewER() *ER {
	return &ER{
		RelationRules: DefaultRelationRules,
		FieldRules:    DefaultFieldRules,
		Fallback:      FallbackEntities,
		MaxEntities:   MaxEntities,
	}
}

// RenderER renders m with the default tables.
func RenderER(m *ir.Model) string {
	return NewER().Render(m)
}

// Render draws entities and relationships inferred from m.
func (r *ER) Render(m *ir.Model) string {
	entities := r.Entities(m)
	rels := r.Relationships(m, entities)

	var b strings.Builder
	b.WriteString("erDiagram\n")
	for _, e := range entities {
		fmt.Fprintf(&b, "    %s {\n", e.Name)
		for _, f := range e.Fields {
			if f.Key != "" {
				fmt.Fprintf(&b, "        %s %s %s\n", f.Type, f.Name, f.Key)
			} else {
				fmt.Fprintf(&b, "        %s %s\n", f.Type, f.Name)
			}
		}
		b.WriteString("    }\n")
	}
	for _, rel := range rels {
		fmt.Fprintf(&b, "    %s %s %s : \"%s\"\n", rel.From, rel.Cardinality, rel.To, quote(rel.Label))
	}
	return b.String()
}

// Entities infers the entity list: never empty, sorted by name, capped.
func (r *ER) Entities(m *ir.Model) []Entity {
	names := r.entityNames(m)
	out := make([]Entity, 0, len(names))
	for _, n := range names {
		out = append(out, Entity{Name: n, Fields: r.fieldsFor(n)})
	}
	return out
}

func (r *ER) entityNames(m *ir.Model) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(candidate string) {
		name, ok := SanitizeEntity(candidate)
		if !ok || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	for _, f := range m.Files {
		stem := strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
		if IsDatabaseCategory(f.Category) {
			add(stripEntitySuffix(stem))
		}
		for _, fn := range f.Functions {
			add(entityFromFunction(fn))
		}
		for _, lib := range f.Libraries {
			if underEntityFolder(lib) {
				base := path.Base(lib)
				add(stripEntitySuffix(strings.TrimSuffix(base, path.Ext(base))))
			}
		}
		add(stripEntityMarker(stem))
	}

	if len(names) == 0 {
		for _, n := range r.Fallback {
			add(n)
		}
	}
	sort.Strings(names)
	limit := r.MaxEntities
	if limit <= 0 {
		limit = MaxEntities
	}
	if len(names) > limit {
		names = names[:limit]
	}
	return names
}

func (r *ER) fieldsFor(name string) []Field {
	lower := strings.ToLower(name)
	fields := append([]Field(nil), BaseFields...)
	for _, rule := range r.FieldRules {
		if strings.Contains(lower, rule.Keyword) {
			return append(fields, rule.Fields...)
		}
	}
	return append(fields, GenericFields...)
}

// Relationships prefers links backed by import edges and falls back to a
// chain over adjacent entities when no edge connects two entities.
func (r *ER) Relationships(m *ir.Model, entities []Entity) []Relationship {
	if rels := r.edgeRelationships(m, entities); len(rels) > 0 {
		return rels
	}
	return r.chainRelationships(entities)
}

func (r *ER) edgeRelationships(m *ir.Model, entities []Entity) []Relationship {
	type pair struct{ a, b string }
	drawn := make(map[pair]bool)
	var rels []Relationship
	for _, ent := range entities {
		key := strings.ToLower(ent.Name)
		for _, e := range m.Edges {
			// Keys are root-relative: directories above the root never match.
			var other string
			switch {
			case strings.Contains(strings.ToLower(e.FromKey()), key):
				other = strings.ToLower(e.To)
			case strings.Contains(strings.ToLower(e.ToKey()), key):
				other = strings.ToLower(e.From)
			default:
				continue
			}
			for _, target := range entities {
				if target.Name == ent.Name || !strings.Contains(other, strings.ToLower(target.Name)) {
					continue
				}
				if drawn[pair{ent.Name, target.Name}] || drawn[pair{target.Name, ent.Name}] {
					continue
				}
				drawn[pair{ent.Name, target.Name}] = true
				rels = append(rels, Relationship{
					From:        ent.Name,
					To:          target.Name,
					Cardinality: OneToMany,
					Label:       "references",
				})
			}
		}
	}
	return rels
}

func (r *ER) chainRelationships(entities []Entity) []Relationship {
	var rels []Relationship
	for i := 0; i+1 < len(entities); i++ {
		rels = append(rels, r.link(entities[i].Name, entities[i+1].Name))
	}
	return rels
}

func (r *ER) link(a, b string) Relationship {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	for _, rule := range r.RelationRules {
		card := rule.Cardinality
		if card == "" {
			card = OneToMany
		}
		if strings.Contains(la, rule.From) && strings.Contains(lb, rule.To) {
			return Relationship{From: a, To: b, Cardinality: card, Label: rule.Label}
		}
		if strings.Contains(lb, rule.From) && strings.Contains(la, rule.To) {
			return Relationship{From: b, To: a, Cardinality: card, Label: rule.Label}
		}
	}
	return Relationship{From: a, To: b, Cardinality: OneToMany, Label: "relates"}
}

// SanitizeEntity capitalizes candidate and keeps [A-Za-z0-9_-]. The second
// result is false when the outcome is not a valid entity name.
func SanitizeEntity(candidate string) (string, bool) {
	var b strings.Builder
	for _, c := range candidate {
		if isIdentRune(c) || c == '-' {
			b.WriteRune(c)
		}
	}
	s := strings.TrimLeft(b.String(), "0123456789_-")
	if s == "" {
		return "", false
	}
	s = strings.ToUpper(s[:1]) + s[1:]
	if !validEntity.MatchString(s) {
		return "", false
	}
	return s, true
}

// IsDatabaseCategory reports whether a category label names the data layer.
func IsDatabaseCategory(category string) bool {
	for _, tok := range strings.FieldsFunc(strings.ToLower(category), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if databaseCategory[tok] {
			return true
		}
	}
	return false
}

func stripEntitySuffix(stem string) string {
	lower := strings.ToLower(stem)
	for _, suffix := range entitySuffixes {
		if strings.HasSuffix(lower, suffix) {
			stem = stem[:len(stem)-len(suffix)]
			break
		}
	}
	return strings.Trim(stem, "._-")
}

// stripEntityMarker removes the first model/schema/entity/table marker from
// stem, or returns "" when stem carries none.
func stripEntityMarker(stem string) string {
	lower := strings.ToLower(stem)
	for _, marker := range entityMarkers {
		if i := strings.Index(lower, marker); i >= 0 {
			return strings.Trim(stem[:i]+stem[i+len(marker):], "._-")
		}
	}
	return ""
}

func underEntityFolder(spec string) bool {
	parts := strings.Split(spec, "/")
	for _, p := range parts[:len(parts)-1] {
		if entityFolders[strings.ToLower(p)] {
			return true
		}
	}
	return false
}

// entityFromFunction returns the first meaningful token of a CRUD-style
// function name, or "" when fn does not start with a CRUD verb.
func entityFromFunction(fn string) string {
	tokens := SplitIdentifier(fn)
	if len(tokens) < 2 || !crudVerbs[strings.ToLower(tokens[0])] {
		return ""
	}
	for _, tok := range tokens[1:] {
		lower := strings.ToLower(tok)
		if crudVerbs[lower] || tokenStopWords[lower] || len(lower) < 4 || !isAlpha(lower) {
			continue
		}
		return tok
	}
	return ""
}

// SplitIdentifier breaks camelCase, PascalCase and snake_case names into
// tokens. Acronym runs stay together: "getHTTPServer" -> get, HTTP, Server.
func SplitIdentifier(s string) []string {
	var tokens []string
	runes := []rune(s)
	start := -1
	flush := func(end int) {
		if start >= 0 && end > start {
			tokens = append(tokens, string(runes[start:end]))
		}
		start = -1
	}
	for i, c := range runes {
		if c == '_' || c == '$' || c == '-' {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		prev := runes[i-1]
		switch {
		case unicode.IsUpper(c) && unicode.IsLower(prev):
			flush(i)
			start = i
		case unicode.IsUpper(c) && unicode.IsDigit(prev):
			flush(i)
			start = i
		case unicode.IsLower(c) && unicode.IsUpper(prev) && i-1 > start:
			flush(i - 1)
			start = i - 1
		}
	}
	flush(len(runes))
	return tokens
}

func isAlpha(s string) bool {
	for _, c := range s {
		if !unicode.IsLetter(c) {
			return false
		}
	}
	return s != ""
}
