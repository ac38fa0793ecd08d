package httpapi

import (
	"net/http"
)

// Organisms lists the organisms registered under an instance, optionally
// narrowed to one subclass sub-context. This is a pure directory read.
func (a *API) Organisms(w http.ResponseWriter, r *http.Request) {
	instance := r.PathValue("instance")
	subclass := r.PathValue("subclass")

	organisms, err := a.resolver.Organisms(r.Context(), instance, subclass)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"instance":  instance,
		"subclass":  subclass,
		"organisms": organisms,
	})
}
