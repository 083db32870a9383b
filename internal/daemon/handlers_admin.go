package daemon

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/felixgeelhaar/storefront/internal/client"
	"github.com/felixgeelhaar/storefront/internal/domain"
	"github.com/gorilla/mux"
)

// maxUploadSize bounds product image uploads.
const maxUploadSize = 10 << 20

// User administration

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.app.API.Users(r.Context())
	if err != nil {
		s.fail(w, "failed to load users", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"users": users,
	})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.app.API.User(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, "failed to load user", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, u)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var user domain.User
	if !s.decodeJSON(w, r, &user) {
		return
	}

	u, err := s.app.API.UpdateUser(r.Context(), mux.Vars(r)["id"], user)
	if err != nil {
		s.fail(w, "failed to update user", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, u)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.app.API.DeleteUser(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, "failed to delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Product administration

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	form, err := parseProductForm(r)
	if err != nil {
		s.fail(w, "invalid product form", err)
		return
	}
	defer closeImage(form)

	p, err := s.app.API.CreateProduct(r.Context(), form)
	if err != nil {
		s.fail(w, "failed to create product", err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	form, err := parseProductForm(r)
	if err != nil {
		s.fail(w, "invalid product form", err)
		return
	}
	defer closeImage(form)
	form.Product.ID = mux.Vars(r)["id"]

	p, err := s.app.API.UpdateProduct(r.Context(), form)
	if err != nil {
		s.fail(w, "failed to update product", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.app.API.DeleteProduct(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, "failed to delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseProductForm reads the multipart product form the admin view submits.
// The image part is optional.
func parseProductForm(r *http.Request) (client.ProductForm, error) {
	var form client.ProductForm
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return form, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	p := domain.Product{
		ProductName:      r.FormValue("productName"),
		Description:      r.FormValue("description"),
		ShortDescription: r.FormValue("shortDescription"),
	}

	var err error
	if p.Price, err = strconv.ParseFloat(r.FormValue("price"), 64); err != nil {
		return form, fmt.Errorf("%w: price: %v", domain.ErrInvalidInput, err)
	}
	if p.Stock, err = strconv.Atoi(r.FormValue("stock")); err != nil {
		return form, fmt.Errorf("%w: stock: %v", domain.ErrInvalidInput, err)
	}
	if v := r.FormValue("isAvailable"); v != "" {
		if p.IsAvailable, err = strconv.ParseBool(v); err != nil {
			return form, fmt.Errorf("%w: isAvailable: %v", domain.ErrInvalidInput, err)
		}
	}
	form.Product = p

	if file, header, err := r.FormFile("image"); err == nil {
		form.Image = file
		form.ImageName = header.Filename
	}
	return form, nil
}

func closeImage(form client.ProductForm) {
	if c, ok := form.Image.(io.Closer); ok {
		c.Close()
	}
}

// Blog administration

func (s *Server) handleCreateBlog(w http.ResponseWriter, r *http.Request) {
	var blog domain.Blog
	if !s.decodeJSON(w, r, &blog) {
		return
	}

	b, err := s.app.API.CreateBlog(r.Context(), blog)
	if err != nil {
		s.fail(w, "failed to create blog", err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, b)
}

func (s *Server) handleUpdateBlog(w http.ResponseWriter, r *http.Request) {
	var blog domain.Blog
	if !s.decodeJSON(w, r, &blog) {
		return
	}
	blog.ID = mux.Vars(r)["id"]

	b, err := s.app.API.UpdateBlog(r.Context(), blog)
	if err != nil {
		s.fail(w, "failed to update blog", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBlog(w http.ResponseWriter, r *http.Request) {
	if err := s.app.API.DeleteBlog(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, "failed to delete blog", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
