package main

import (
	"fmt"
	"os"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	defaultDaemonAddr = "http://127.0.0.1:7433"
	pidFile           = "storefrontd.pid"
)

// daemonAddr is the daemon base URL, taken from the local config when it loads.
var daemonAddr = defaultDaemonAddr

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	daemonAddr = resolveDaemonAddr()

	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit()
	case "start":
		err = cmdStart()
	case "stop":
		err = cmdStop()
	case "status":
		err = cmdStatus()
	case "logs":
		err = cmdLogs()
	case "doctor":
		err = cmdDoctor()
	case "config":
		err = cmdConfig()
	case "login":
		err = cmdLogin(os.Args[2:])
	case "register":
		err = cmdRegister()
	case "token":
		err = cmdToken(os.Args[2:])
	case "oauth":
		err = cmdOAuth()
	case "logout":
		err = cmdLogout()
	case "whoami":
		err = cmdWhoami()
	case "products":
		err = cmdProducts(os.Args[2:])
	case "product":
		err = cmdProduct(os.Args[2:])
	case "blogs":
		err = cmdBlogs()
	case "cart":
		err = cmdCart(os.Args[2:])
	case "checkout":
		err = cmdCheckout(os.Args[2:])
	case "orders":
		err = cmdOrders()
	case "admin":
		err = cmdAdmin(os.Args[2:])
	case "events":
		err = cmdEvents(os.Args[2:])
	case "mcp":
		err = cmdMCP()
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("storefront %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Storefront - Guitar shop cart and session client

Usage:
  storefront <command> [arguments]

Setup Commands:
  init              Initialize Storefront (first-time setup)
  doctor            Check API, storage and broker connectivity
  config            Show current configuration

Daemon Commands:
  start             Start the Storefront daemon
  stop              Stop the Storefront daemon
  status            Show daemon status
  logs              View daemon logs

Session Commands:
  login [email]     Log in with email and password
  register          Create an account
  token <jwt>       Adopt a token issued elsewhere
  oauth             Show the Google sign-in URL
  logout            End the session (the cart is kept)
  whoami            Show the logged-in user

Shop Commands:
  products [--all]  List products
  product <id>      Show one product
  blogs             List blog posts
  cart              Show the cart
  cart add <id> [n] Add a product (at most 5 per product)
  cart inc <id>     Increase a line by one
  cart dec <id>     Decrease a line by one
  cart rm <id>      Remove a line
  cart clear        Empty the cart
  cart ack          Acknowledge the quantity warning
  checkout          Start checkout and print the payment URL
  checkout status   Show the pending checkout
  checkout complete Settle an approved payment
  checkout cancel   Abandon the payment (the cart is kept)
  orders            Show order history

Admin Commands:
  admin users                List users
  admin delete-user <id>     Delete a user
  admin delete-product <id>  Delete a product
  admin delete-blog <id>     Delete a blog post

Integration Commands:
  mcp               Start MCP server on stdio
  events [queue]    Tail storefront events from RabbitMQ

Other:
  help              Show this help message
  version           Show version information

Examples:
  storefront start                 # Start daemon
  storefront login user@shop.com   # Log in
  storefront cart add 64f1c2 2     # Add two units
  storefront checkout              # Pay for the cart`)
}
