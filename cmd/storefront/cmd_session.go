package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"

	"github.com/felixgeelhaar/storefront/internal/auth"
	"github.com/felixgeelhaar/storefront/internal/domain"
)

type sessionResponse struct {
	Identity auth.Identity `json:"identity"`
	Cart     cartView      `json:"cart"`
}

// cmdLogin logs in with email and password read from the terminal
func cmdLogin(args []string) error {
	reader := bufio.NewReader(os.Stdin)

	var creds domain.Credentials
	if len(args) > 0 {
		creds.Email = args[0]
	} else {
		fmt.Print("Email: ")
		creds.Email = readLine(reader)
	}
	fmt.Print("Password: ")
	creds.Password = readLine(reader)

	var resp sessionResponse
	if err := call(http.MethodPost, "/v1/session/login", creds, &resp); err != nil {
		return err
	}

	printSession(resp)
	return nil
}

// cmdRegister creates an account and logs in when the API hands back a token
func cmdRegister() error {
	reader := bufio.NewReader(os.Stdin)

	var user domain.User
	fmt.Print("Username: ")
	user.Username = readLine(reader)
	fmt.Print("Full name: ")
	user.FullName = readLine(reader)
	fmt.Print("Email: ")
	user.Email = readLine(reader)
	fmt.Print("Password: ")
	password := readLine(reader)
	user.Password = &password

	var resp struct {
		User     *domain.User `json:"user"`
		LoggedIn bool         `json:"logged_in"`
	}
	if err := call(http.MethodPost, "/v1/session/register", user, &resp); err != nil {
		return err
	}

	fmt.Printf("✓ Account created for %s\n", user.Email)
	if resp.LoggedIn {
		fmt.Println("You are now logged in.")
	} else {
		fmt.Println("Log in with 'storefront login'.")
	}
	return nil
}

// cmdToken adopts a token obtained outside the CLI, e.g. from the OAuth flow
func cmdToken(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("token required")
	}

	var resp sessionResponse
	if err := call(http.MethodPost, "/v1/session/token", map[string]string{"token": args[0]}, &resp); err != nil {
		return err
	}

	printSession(resp)
	return nil
}

// cmdOAuth prints the URL that starts Google sign-in
func cmdOAuth() error {
	var resp struct {
		URL      string `json:"url"`
		Callback string `json:"callback"`
	}
	if err := call(http.MethodGet, "/v1/session/oauth", nil, &resp); err != nil {
		return err
	}

	fmt.Println("Open this URL in your browser to sign in with Google:")
	fmt.Printf("  %s\n", resp.URL)
	fmt.Println()
	fmt.Printf("The API redirects back to %s when done.\n", resp.Callback)
	fmt.Println("If the redirect cannot reach the daemon, copy the token and run 'storefront token <jwt>'.")
	return nil
}

// cmdLogout ends the session
func cmdLogout() error {
	if err := call(http.MethodDelete, "/v1/session", nil, nil); err != nil {
		return err
	}
	fmt.Println("✓ Logged out (your cart is kept for your next login)")
	return nil
}

// cmdWhoami shows the current identity
func cmdWhoami() error {
	var st auth.Status
	if err := call(http.MethodGet, "/v1/session", nil, &st); err != nil {
		return err
	}

	if !st.LoggedIn {
		if st.Expired {
			fmt.Println("Session expired. Log in again with 'storefront login'.")
		} else {
			fmt.Println("Not logged in.")
		}
		return nil
	}

	fmt.Printf("User:    %s\n", st.UserID)
	fmt.Printf("Role:    %s\n", st.Role)
	if st.ExpiresAt != nil {
		fmt.Printf("Expires: %s\n", st.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func printSession(resp sessionResponse) {
	fmt.Printf("✓ Logged in as %s (%s)\n", resp.Identity.UserID, resp.Identity.Role)
	if resp.Cart.Units > 0 {
		fmt.Printf("Your cart has %d item(s), total %s\n", resp.Cart.Units, money(resp.Cart.Total))
	}
}
