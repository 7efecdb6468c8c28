package http

import (
	"context"
	"net/http"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/services"
)

// CatalogManager is the taxonomy side used by the handlers.
type CatalogManager interface {
	Catalog(ctx context.Context) (services.Catalog, error)

	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	CreateSubCategory(ctx context.Context, sc core.SubCategory) (core.SubCategory, error)
	UpdateSubCategory(ctx context.Context, sc core.SubCategory) (core.SubCategory, error)
	DeleteSubCategory(ctx context.Context, id string) error

	CreateBankAccount(ctx context.Context, b core.BankAccount) (core.BankAccount, error)
	UpdateBankAccount(ctx context.Context, b core.BankAccount) (core.BankAccount, error)
	DeleteBankAccount(ctx context.Context, id string) error
}

func (s *Server) registerCatalog(mux *http.ServeMux, c CatalogManager) {
	mux.HandleFunc("GET /api/catalog", s.handleCatalog)

	mux.HandleFunc("POST /api/categories", catalogWrite(s, (*RequestBodyParser).Category, c.CreateCategory, http.StatusCreated))
	mux.HandleFunc("PUT /api/categories/{id}", catalogWrite(s, (*RequestBodyParser).Category, c.UpdateCategory, http.StatusOK))
	mux.HandleFunc("DELETE /api/categories/{id}", catalogDelete(s, c.DeleteCategory))

	mux.HandleFunc("POST /api/subcategories", catalogWrite(s, (*RequestBodyParser).SubCategory, c.CreateSubCategory, http.StatusCreated))
	mux.HandleFunc("PUT /api/subcategories/{id}", catalogWrite(s, (*RequestBodyParser).SubCategory, c.UpdateSubCategory, http.StatusOK))
	mux.HandleFunc("DELETE /api/subcategories/{id}", catalogDelete(s, c.DeleteSubCategory))

	mux.HandleFunc("POST /api/bank-accounts", catalogWrite(s, (*RequestBodyParser).BankAccount, c.CreateBankAccount, http.StatusCreated))
	mux.HandleFunc("PUT /api/bank-accounts/{id}", catalogWrite(s, (*RequestBodyParser).BankAccount, c.UpdateBankAccount, http.StatusOK))
	mux.HandleFunc("DELETE /api/bank-accounts/{id}", catalogDelete(s, c.DeleteBankAccount))
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	c, err := s.catalog.Catalog(ctx)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(c).Write(w)
}

// catalogWrite parses an entity from the body, taking the ID from the path
// when there is one, and answers with what save returned.
func catalogWrite[T any](s *Server, parse func(*RequestBodyParser, string) (T, error), save func(context.Context, T) (T, error), status int) http.HandlerFunc {
	op := log.OpUpdate
	if status == http.StatusCreated {
		op = log.OpCreate
	}
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := parse(NewRequestBodyParser(r), r.PathValue("id"))
		if err != nil {
			writeError(w, r, log.OpParse, err)
			return
		}
		ctx, cancel := s.withTimeout(r)
		defer cancel()

		saved, err := save(ctx, v)
		if err != nil {
			writeError(w, r, op, err)
			return
		}
		NewResponse().Status(status).JSON(saved).Write(w)
	}
}

func catalogDelete(s *Server, del func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := s.withTimeout(r)
		defer cancel()

		if err := del(ctx, r.PathValue("id")); err != nil {
			writeError(w, r, log.OpDelete, err)
			return
		}
		NewResponse().Status(http.StatusNoContent).Write(w)
	}
}
