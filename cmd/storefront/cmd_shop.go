package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/storefront/internal/checkout"
	"github.com/felixgeelhaar/storefront/internal/domain"
	"github.com/felixgeelhaar/storefront/internal/orders"
)

// cartView mirrors the cart JSON, which carries derived totals.
type cartView struct {
	Items   []domain.LineItem `json:"items"`
	Warning bool              `json:"warning"`
	Total   float64           `json:"total"`
	Units   int               `json:"units"`
}

type cartResponse struct {
	Cart    cartView `json:"cart"`
	Warning string   `json:"warning"`
}

func money(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}

func cmdProducts(args []string) error {
	path := "/v1/products"
	if len(args) > 0 && args[0] == "--all" {
		path += "?all=true"
	}

	var resp struct {
		Products []domain.Product `json:"products"`
	}
	if err := call(http.MethodGet, path, nil, &resp); err != nil {
		return err
	}

	if len(resp.Products) == 0 {
		fmt.Println("No products available.")
		return nil
	}

	fmt.Println("Products:")
	for _, p := range resp.Products {
		status := fmt.Sprintf("stock %d", p.Stock)
		if !p.IsAvailable {
			status = "unavailable"
		}
		fmt.Printf("  %-26s %-28s %12s  %s\n", p.ID, p.ProductName, money(p.Price), status)
	}
	return nil
}

func cmdProduct(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("product ID required")
	}

	var p domain.Product
	if err := call(http.MethodGet, "/v1/products/"+url.PathEscape(args[0]), nil, &p); err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n", p.ProductName, p.ID)
	fmt.Printf("  %s\n\n", p.ShortDescription)
	fmt.Printf("  %s\n\n", p.Description)
	fmt.Printf("Price:     %s\n", money(p.Price))
	fmt.Printf("Stock:     %d\n", p.Stock)
	fmt.Printf("Available: %t\n", p.IsAvailable)
	if img := p.Image(); img != "" {
		fmt.Printf("Image:     %s\n", img)
	}
	return nil
}

func cmdBlogs() error {
	var resp struct {
		Blogs []domain.Blog `json:"blogs"`
	}
	if err := call(http.MethodGet, "/v1/blogs", nil, &resp); err != nil {
		return err
	}

	for _, b := range resp.Blogs {
		date := ""
		if b.CreatedAt != nil {
			date = b.CreatedAt.Format("2006-01-02")
		}
		fmt.Printf("  %s  %s by %s\n", date, b.Title, b.Author)
	}
	return nil
}

// cmdCart manages the cart
func cmdCart(args []string) error {
	if len(args) == 0 || args[0] == "show" {
		var resp cartResponse
		if err := call(http.MethodGet, "/v1/cart", nil, &resp); err != nil {
			return err
		}
		printCart(resp)
		return nil
	}

	var (
		resp cartResponse
		err  error
	)
	switch args[0] {
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("product ID required")
		}
		qty := 1
		if len(args) > 2 {
			if qty, err = strconv.Atoi(args[2]); err != nil {
				return fmt.Errorf("invalid quantity %q", args[2])
			}
		}
		err = call(http.MethodPost, "/v1/cart/items", map[string]any{"product_id": args[1], "quantity": qty}, &resp)
	case "inc", "dec":
		if len(args) < 2 {
			return fmt.Errorf("product ID required")
		}
		op := "increase"
		if args[0] == "dec" {
			op = "decrease"
		}
		err = call(http.MethodPost, "/v1/cart/items/"+url.PathEscape(args[1])+"/"+op, nil, &resp)
	case "rm", "remove":
		if len(args) < 2 {
			return fmt.Errorf("product ID required")
		}
		err = call(http.MethodDelete, "/v1/cart/items/"+url.PathEscape(args[1]), nil, &resp)
	case "clear":
		if err := call(http.MethodDelete, "/v1/cart", nil, nil); err != nil {
			return err
		}
		fmt.Println("✓ Cart cleared")
		return nil
	case "ack":
		if err := call(http.MethodPost, "/v1/cart/warning/ack", nil, nil); err != nil {
			return err
		}
		fmt.Println("✓ Warning dismissed")
		return nil
	default:
		return fmt.Errorf("unknown cart command: %s", args[0])
	}

	if err != nil {
		return err
	}
	printCart(resp)
	return nil
}

func printCart(resp cartResponse) {
	c := resp.Cart
	if len(c.Items) == 0 {
		fmt.Println("Your cart is empty.")
	} else {
		fmt.Println("Cart:")
		for _, item := range c.Items {
			fmt.Printf("  %-26s %-28s %d x %s = %s\n",
				item.ProductID, item.ProductName, item.Quantity, money(item.Price), money(item.Subtotal()))
		}
		fmt.Printf("\n  %d item(s), total %s\n", c.Units, money(c.Total))
	}

	if resp.Warning != "" {
		fmt.Printf("\n⚠ %s (dismiss with 'storefront cart ack')\n", resp.Warning)
	}
}

// cmdCheckout drives the payment handoff
func cmdCheckout(args []string) error {
	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "":
		var handoff checkout.Handoff
		if err := call(http.MethodPost, "/v1/checkout", nil, &handoff); err != nil {
			return err
		}
		fmt.Printf("Checkout started for %d product(s), total %s\n", len(handoff.Items), money(handoff.Total))
		fmt.Println()
		fmt.Println("Complete the payment at:")
		fmt.Printf("  %s\n", handoff.RedirectURL)
		fmt.Println()
		fmt.Println("Then run 'storefront checkout complete'.")
		return nil

	case "status":
		var resp struct {
			Snapshot checkout.Snapshot `json:"snapshot"`
			Total    float64           `json:"total"`
		}
		if err := call(http.MethodGet, "/v1/checkout", nil, &resp); err != nil {
			return err
		}
		fmt.Printf("Pending payment %s\n", resp.Snapshot.PreferenceID)
		fmt.Printf("Started:  %s\n", resp.Snapshot.CreatedAt.Local().Format("2006-01-02 15:04"))
		fmt.Printf("Products: %d\n", len(resp.Snapshot.Items))
		fmt.Printf("Total:    %s\n", money(resp.Total))
		return nil

	case "complete":
		var resp struct {
			Result checkout.Result `json:"result"`
		}
		if err := call(http.MethodGet, "/payment/success", nil, &resp); err != nil {
			return err
		}
		if resp.Result.Noop {
			fmt.Println("Nothing to settle.")
			return nil
		}
		fmt.Printf("✓ Payment approved (sale %s, total %s)\n", resp.Result.SaleID, money(resp.Result.Total))
		fmt.Println("Your cart has been emptied.")
		return nil

	case "cancel", "failure", "pending":
		status := sub
		if status == "cancel" {
			status = "failure"
		}
		if err := call(http.MethodGet, "/payment/"+status, nil, nil); err != nil {
			return err
		}
		fmt.Println("Payment not completed. Your cart is unchanged.")
		return nil

	default:
		return fmt.Errorf("unknown checkout command: %s", sub)
	}
}

// cmdOrders shows the order history
func cmdOrders() error {
	var history orders.History
	if err := call(http.MethodGet, "/v1/orders", nil, &history); err != nil {
		return err
	}

	if len(history.Orders) == 0 {
		fmt.Println("No orders yet.")
		return nil
	}

	for _, o := range history.Orders {
		fmt.Printf("Order %s  %s  %s\n", o.ID, o.DateOfSale, money(o.TotalSale))
		for _, line := range o.Lines {
			name := line.ProductName
			if name == "" {
				name = line.ProductID
			}
			fmt.Printf("    %-28s %d x %s = %s\n", name, line.Quantity, money(line.Price), money(line.Subtotal))
		}
	}

	if len(history.Missing) > 0 {
		fmt.Printf("\n%d product(s) could not be loaded: %s\n", len(history.Missing), strings.Join(history.Missing, ", "))
	}
	return nil
}
