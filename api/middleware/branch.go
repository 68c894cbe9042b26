package middleware

import (
	"net/http"

	"github.com/CarlusInnocent/HotPOS/api/responses"
	pkgerrors "github.com/CarlusInnocent/HotPOS/pkg/errors"
	"github.com/CarlusInnocent/HotPOS/pkg/logger"
)

// RequireBranch rejects tokens that are not scoped to a branch. Till-level
// operations always run against the operator's own branch.
func RequireBranch(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if BranchIDFromContext(r.Context()) == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "branch scope required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
