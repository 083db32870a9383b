package daemon

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.app.API.Products(r.Context())
	if err != nil {
		s.fail(w, "failed to load products", err)
		return
	}

	// The catalog view lists only what can be bought unless asked otherwise
	if r.URL.Query().Get("all") != "true" {
		available := products[:0]
		for _, p := range products {
			if p.IsAvailable {
				available = append(available, p)
			}
		}
		products = available
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"products": products,
	})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.API.Product(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, "failed to load product", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}

func (s *Server) handleListBlogs(w http.ResponseWriter, r *http.Request) {
	blogs, err := s.app.API.Blogs(r.Context())
	if err != nil {
		s.fail(w, "failed to load blogs", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"blogs": blogs,
	})
}

func (s *Server) handleGetBlog(w http.ResponseWriter, r *http.Request) {
	b, err := s.app.API.Blog(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, "failed to load blog", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, b)
}
