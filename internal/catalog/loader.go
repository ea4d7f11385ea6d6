// Package catalog loads the static resource and recipe definitions from a
// YAML (or JSON) file into frozen registries.
package catalog

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/gravitas-games/craftd/internal/recipe"
	"github.com/gravitas-games/craftd/internal/resource"
)

//go:embed definitions.schema.json
var schemaJSON string

var documentSchema = jsonschema.MustCompileString("definitions.schema.json", schemaJSON)

// Catalog is the loaded static data. Both registries are frozen.
type Catalog struct {
	Resources *resource.Registry
	Recipes   *recipe.Catalog
	// Digest is the sha256 of the source document, sent to clients so they
	// can cache definitions.
	Digest string
}

type document struct {
	Categories []categoryDoc `yaml:"categories"`
	Resources  []resourceDoc `yaml:"resources"`
	Recipes    []recipeDoc   `yaml:"recipes"`
}

type categoryDoc struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type resourceDoc struct {
	ID            uint32   `yaml:"id"`
	Name          string   `yaml:"name"`
	Categories    []string `yaml:"categories"`
	StackLimit    int      `yaml:"stack_limit"`
	QuantityLimit int      `yaml:"quantity_limit"`
}

type quantityDoc struct {
	Resource uint32 `yaml:"resource"`
	Amount   int    `yaml:"amount"`
}

type recipeDoc struct {
	ID           uint32        `yaml:"id"`
	Name         string        `yaml:"name"`
	Duration     float64       `yaml:"duration"` // seconds
	Result       quantityDoc   `yaml:"result"`
	Requirements []quantityDoc `yaml:"requirements"`
}

// Load reads and parses the definitions file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions: %w", err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// Parse validates data against the definitions schema and builds the
// registries.
func Parse(data []byte) (*Catalog, error) {
	if err := validate(data); err != nil {
		return nil, err
	}

	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse definitions: %w", err)
	}

	reg, err := resource.NewRegistry()
	if err != nil {
		return nil, err
	}
	for _, c := range doc.Categories {
		flag, _ := resource.ParseCategory(c.Name)
		if err := reg.RegisterCategory(resource.CategoryInfo{Flag: flag, Name: c.Name, Description: c.Description}); err != nil {
			return nil, err
		}
	}
	for _, r := range doc.Resources {
		def := resource.Definition{
			ID:            resource.ID(r.ID),
			Name:          r.Name,
			StackLimit:    r.StackLimit,
			QuantityLimit: r.QuantityLimit,
		}
		for _, name := range r.Categories {
			flag, _ := resource.ParseCategory(name)
			def.Category |= flag
		}
		if err := reg.Register(def); err != nil {
			return nil, err
		}
	}
	reg.Freeze()

	recipes := recipe.NewCatalog(reg)
	for _, r := range doc.Recipes {
		def := recipe.Definition{
			ID:       recipe.ID(r.ID),
			Name:     r.Name,
			Duration: time.Duration(r.Duration * float64(time.Second)),
			Result:   resource.Quantity{ID: resource.ID(r.Result.Resource), Amount: r.Result.Amount},
		}
		for _, q := range r.Requirements {
			def.Requirements = append(def.Requirements, resource.Quantity{ID: resource.ID(q.Resource), Amount: q.Amount})
		}
		if err := recipes.Register(def); err != nil {
			return nil, err
		}
	}
	recipes.Freeze()

	sum := sha256.Sum256(data)
	return &Catalog{
		Resources: reg,
		Recipes:   recipes,
		Digest:    hex.EncodeToString(sum[:]),
	}, nil
}

// validate runs the schema over the document. YAML is converted to its JSON
// data model first so both formats are checked the same way.
func validate(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse definitions: %w", err)
	}
	js, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("definitions are not representable as JSON: %w", err)
	}
	var v any
	if err := json.Unmarshal(js, &v); err != nil {
		return err
	}
	if err := documentSchema.Validate(v); err != nil {
		return fmt.Errorf("invalid definitions: %w", err)
	}
	return nil
}
