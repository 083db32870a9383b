package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/felixgeelhaar/storefront/internal/domain"
)

// Products lists the catalog. One invalid product fails the whole listing.
func (c *Client) Products(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.get(ctx, "/products", &products); err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	for i := range products {
		if err := products[i].Validate(); err != nil {
			return nil, fmt.Errorf("fetch products: %w", err)
		}
	}
	return products, nil
}

// Product fetches one catalog entry.
func (c *Client) Product(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	if err := c.get(ctx, "/products/"+url.PathEscape(id), &p); err != nil {
		return nil, fmt.Errorf("fetch product %s: %w", id, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("fetch product %s: %w", id, err)
	}
	return &p, nil
}

// ProductForm is the multipart payload for creating or updating a product.
type ProductForm struct {
	Product   domain.Product
	Image     io.Reader
	ImageName string
}

func (f ProductForm) encode() (string, []byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	p := f.Product
	fields := [][2]string{
		{"productName", p.ProductName},
		{"description", p.Description},
		{"shortDescription", p.ShortDescription},
		{"price", strconv.FormatFloat(p.Price, 'f', -1, 64)},
		{"stock", strconv.Itoa(p.Stock)},
		{"isAvailable", strconv.FormatBool(p.IsAvailable)},
	}
	if p.ID != "" {
		fields = append([][2]string{{"_id", p.ID}}, fields...)
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return "", nil, err
		}
	}

	if f.Image != nil {
		name := f.ImageName
		if name == "" {
			name = "image"
		}
		part, err := mw.CreateFormFile("image", name)
		if err != nil {
			return "", nil, err
		}
		if _, err := io.Copy(part, f.Image); err != nil {
			return "", nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return "", nil, err
	}
	return mw.FormDataContentType(), buf.Bytes(), nil
}

// CreateProduct adds a product to the catalog.
func (c *Client) CreateProduct(ctx context.Context, form ProductForm) (*domain.Product, error) {
	return c.saveProduct(ctx, http.MethodPost, "/products/create", form)
}

// UpdateProduct replaces the product with form.Product.ID.
func (c *Client) UpdateProduct(ctx context.Context, form ProductForm) (*domain.Product, error) {
	if form.Product.ID == "" {
		return nil, fmt.Errorf("update product: %w: id required", domain.ErrInvalidInput)
	}
	return c.saveProduct(ctx, http.MethodPut, "/products/update/"+url.PathEscape(form.Product.ID), form)
}

func (c *Client) saveProduct(ctx context.Context, method, path string, form ProductForm) (*domain.Product, error) {
	contentType, body, err := form.encode()
	if err != nil {
		return nil, fmt.Errorf("encode product: %w", err)
	}

	var p domain.Product
	if err := c.writeRaw(ctx, method, path, contentType, body, &p); err != nil {
		return nil, fmt.Errorf("save product: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("save product: %w", err)
	}
	return &p, nil
}

// DeleteProduct removes a product from the catalog.
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	if err := c.write(ctx, http.MethodDelete, "/products/delete/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return nil
}

// UpdateStock decrements stock for a completed sale.
func (c *Client) UpdateStock(ctx context.Context, updates []domain.StockUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	body := struct {
		Products []domain.StockUpdate `json:"products"`
	}{updates}
	if err := c.write(ctx, http.MethodPost, "/products/updateStock", body, nil); err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	return nil
}

// Blogs lists the blog posts.
func (c *Client) Blogs(ctx context.Context) ([]domain.Blog, error) {
	var blogs []domain.Blog
	if err := c.get(ctx, "/blogs", &blogs); err != nil {
		return nil, fmt.Errorf("fetch blogs: %w", err)
	}
	for i := range blogs {
		if err := blogs[i].Validate(); err != nil {
			return nil, fmt.Errorf("fetch blogs: %w", err)
		}
	}
	return blogs, nil
}

// Blog fetches one blog post.
func (c *Client) Blog(ctx context.Context, id string) (*domain.Blog, error) {
	var b domain.Blog
	if err := c.get(ctx, "/blogs/"+url.PathEscape(id), &b); err != nil {
		return nil, fmt.Errorf("fetch blog %s: %w", id, err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("fetch blog %s: %w", id, err)
	}
	return &b, nil
}

// CreateBlog publishes a new post.
func (c *Client) CreateBlog(ctx context.Context, blog domain.Blog) (*domain.Blog, error) {
	return c.saveBlog(ctx, http.MethodPost, "/blogs/create", blog)
}

// UpdateBlog replaces the post with blog.ID.
func (c *Client) UpdateBlog(ctx context.Context, blog domain.Blog) (*domain.Blog, error) {
	if blog.ID == "" {
		return nil, fmt.Errorf("update blog: %w: id required", domain.ErrInvalidInput)
	}
	return c.saveBlog(ctx, http.MethodPut, "/blogs/update/"+url.PathEscape(blog.ID), blog)
}

func (c *Client) saveBlog(ctx context.Context, method, path string, blog domain.Blog) (*domain.Blog, error) {
	if err := blog.Validate(); err != nil {
		return nil, err
	}
	var out domain.Blog
	if err := c.write(ctx, method, path, blog, &out); err != nil {
		return nil, fmt.Errorf("save blog: %w", err)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("save blog: %w", err)
	}
	return &out, nil
}

// DeleteBlog removes a post.
func (c *Client) DeleteBlog(ctx context.Context, id string) error {
	if err := c.write(ctx, http.MethodDelete, "/blogs/delete/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete blog %s: %w", id, err)
	}
	return nil
}
