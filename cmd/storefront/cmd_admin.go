package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/felixgeelhaar/storefront/internal/domain"
)

// cmdAdmin runs administrator commands. The daemon rejects them unless the
// session role is admin.
func cmdAdmin(args []string) error {
	if len(args) < 1 {
		fmt.Println(`Admin commands:

  storefront admin users                List users
  storefront admin delete-user <id>     Delete a user
  storefront admin delete-product <id>  Delete a product
  storefront admin delete-blog <id>     Delete a blog post`)
		return nil
	}

	switch args[0] {
	case "users":
		return cmdAdminUsers()
	case "delete-user":
		return adminDelete(args[1:], "users", "user")
	case "delete-product":
		return adminDelete(args[1:], "products", "product")
	case "delete-blog":
		return adminDelete(args[1:], "blogs", "blog post")
	default:
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func cmdAdminUsers() error {
	var resp struct {
		Users []domain.User `json:"users"`
	}
	if err := call(http.MethodGet, "/v1/admin/users", nil, &resp); err != nil {
		return err
	}

	fmt.Println("Users:")
	for _, u := range resp.Users {
		fmt.Printf("  %-26s %-20s %-30s %-6s %s\n", u.ID, u.Username, u.Email, u.Role, u.Status)
	}
	return nil
}

func adminDelete(args []string, resource, label string) error {
	if len(args) < 1 {
		return fmt.Errorf("%s ID required", label)
	}
	if err := call(http.MethodDelete, "/v1/admin/"+resource+"/"+url.PathEscape(args[0]), nil, nil); err != nil {
		return err
	}
	fmt.Printf("✓ Deleted %s %s\n", label, args[0])
	return nil
}
