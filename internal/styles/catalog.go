package styles

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrUnknownStyle is returned when a submission references a style that
// is not part of the catalog.
var ErrUnknownStyle = errors.New("unknown style")

// Style is one named transformation preset.
type Style struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	AssetPath   string `json:"-"`
}

// Catalog is the fixed set of styles the service offers. Each style
// resolves to a style image under the asset directory. The catalog never
// changes after startup.
type Catalog struct {
	styles map[string]Style
	order  []string
}

// NewCatalog builds the catalog rooted at assetDir. Style assets are
// expected at <assetDir>/<id>.jpg; a missing asset is not an error here,
// it is reported at execution time so the failure lands on the job record.
func NewCatalog(assetDir string) *Catalog {
	presets := []Style{
		{ID: "vangogh", Name: "Van Gogh - Starry Night", Description: "Swirling brushstrokes and vibrant colors"},
		{ID: "picasso", Name: "Picasso - Cubism", Description: "Geometric shapes and abstract forms"},
		{ID: "monet", Name: "Monet - Impressionism", Description: "Soft colors and light effects"},
		{ID: "kandinsky", Name: "Kandinsky - Abstract", Description: "Bold colors and abstract patterns"},
	}

	c := &Catalog{styles: make(map[string]Style, len(presets))}
	for _, s := range presets {
		s.AssetPath = filepath.Join(assetDir, s.ID+".jpg")
		c.styles[s.ID] = s
		c.order = append(c.order, s.ID)
	}
	return c
}

// Resolve maps a style id to its preset, or returns ErrUnknownStyle.
func (c *Catalog) Resolve(id string) (Style, error) {
	s, ok := c.styles[id]
	if !ok {
		return Style{}, fmt.Errorf("%w: %q", ErrUnknownStyle, id)
	}
	return s, nil
}

// ResolveAsset maps a style id to its asset and verifies the asset exists
// on disk. A catalog entry whose asset file is missing is a configuration
// error, not a transient one.
func (c *Catalog) ResolveAsset(id string) (Style, error) {
	s, err := c.Resolve(id)
	if err != nil {
		return Style{}, err
	}
	if _, err := os.Stat(s.AssetPath); err != nil {
		return Style{}, fmt.Errorf("style asset missing for %q at %s: %w", id, s.AssetPath, err)
	}
	return s, nil
}

// List returns the styles in catalog order.
func (c *Catalog) List() []Style {
	out := make([]Style, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.styles[id])
	}
	return out
}

// Len returns the number of styles in the catalog.
func (c *Catalog) Len() int { return len(c.styles) }
