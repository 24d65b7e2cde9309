package api

import (
	"net/http"
	"sort"

	"github.com/newthinker/alphalab/internal/api/response"
	"github.com/newthinker/alphalab/internal/operator"
)

// OperatorInfo describes one operator for listings.
type OperatorInfo struct {
	Name      string   `json:"name"`
	Category  string   `json:"category"`
	Summary   string   `json:"summary"`
	Signature string   `json:"signature"`
	Aliases   []string `json:"aliases,omitempty"`
}

// OperatorsHandler lists the operator catalogue.
type OperatorsHandler struct {
	registry *operator.Registry
}

// NewOperatorsHandler creates a new operators handler.
func NewOperatorsHandler(registry *operator.Registry) *OperatorsHandler {
	return &OperatorsHandler{registry: registry}
}

// List handles GET /api/operators.
func (h *OperatorsHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, Operators(h.registry))
}

// Operators flattens the registry into a sorted listing.
func Operators(registry *operator.Registry) []OperatorInfo {
	aliases := make(map[string][]string)
	for alias, target := range registry.Aliases() {
		aliases[target] = append(aliases[target], alias)
	}

	specs := registry.GetAll()
	out := make([]OperatorInfo, 0, len(specs))
	for _, s := range specs {
		a := aliases[s.Name]
		sort.Strings(a)
		out = append(out, OperatorInfo{
			Name:      s.Name,
			Category:  string(s.Category),
			Summary:   s.Summary,
			Signature: s.Signature(),
			Aliases:   a,
		})
	}
	return out
}
