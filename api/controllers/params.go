package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/CarlusInnocent/HotPOS/api/middleware"
	pkgerrors "github.com/CarlusInnocent/HotPOS/pkg/errors"
)

func pathID(r *http.Request, name string) (uint, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid %s", name))
	}
	return uint(id), nil
}

// branchScope resolves the branch a request operates on. Branch-bound tokens
// are pinned to their own branch; unbound tokens must name one explicitly.
func branchScope(r *http.Request) (uint, error) {
	if ctxBranch := middleware.BranchIDFromContext(r.Context()); ctxBranch != nil {
		return *ctxBranch, nil
	}
	if raw := r.URL.Query().Get("branch_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid branch_id")
		}
		return uint(id), nil
	}
	return 0, pkgerrors.New(pkgerrors.CodeValidation, "branch_id is required")
}
