package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
)

// attributeView is the API form of catalog.AttributeParams.
type attributeView struct {
	Code       string   `json:"code"`
	Type       string   `json:"type"`
	IsRequired bool     `json:"is_required"`
	IsUnique   bool     `json:"is_unique"`
	ApplyTo    []string `json:"apply_to,omitempty"`
	Options    []string `json:"options,omitempty"`
}

func newAttributeView(p catalog.AttributeParams) attributeView {
	v := attributeView{
		Code:       p.Code,
		Type:       string(p.Type),
		IsRequired: p.IsRequired,
		IsUnique:   p.IsUnique,
		ApplyTo:    p.ApplyTo,
	}
	if p.Type.IsOptionType() {
		v.Options = p.Options.Labels()
	}
	return v
}

// handleProductTypeAttributes returns the cached attributes applicable to a product type.
func (s *Server) handleProductTypeAttributes(w http.ResponseWriter, r *http.Request) {
	productType := chi.URLParam(r, "productType")

	attrs, err := s.types.Attributes(r.Context(), productType)
	if err != nil {
		respondError(w, r, err)
		return
	}

	views := make([]attributeView, 0, len(attrs))
	for _, a := range attrs {
		views = append(views, newAttributeView(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"product_type": productType,
		"attributes":   views,
	})
}

// handleListProductTypes lists the product types currently cached.
func (s *Server) handleListProductTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"product_types": s.types.Types(),
	})
}

// handleClearProductTypes drops all cached product-type metadata, e.g. after
// attributes were changed outside an import run.
func (s *Server) handleClearProductTypes(w http.ResponseWriter, r *http.Request) {
	dropped := len(s.types.Types())
	s.types.Clear()
	writeJSON(w, http.StatusOK, map[string]any{
		"dropped": dropped,
	})
}
