package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/storefront/internal/app"
	"github.com/felixgeelhaar/storefront/internal/config"
	"github.com/felixgeelhaar/storefront/internal/queue"
)

// cmdInit initializes Storefront for first-time use
func cmdInit() error {
	fmt.Println("Storefront - First-Time Setup")
	fmt.Println("=============================")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Creating storefront directory structure... ")
	dir, err := config.EnsureStorefrontDir()
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	fmt.Println("✓")

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Println()
		fmt.Printf("Storefront API URL [%s]: ", cfg.API.BaseURL)
		if v := readLine(reader); v != "" {
			cfg.API.BaseURL = v
		}

		fmt.Printf("Storage backend (file, sqlite, redis, postgres) [%s]: ", cfg.Storage.Backend)
		if v := readLine(reader); v != "" {
			cfg.Storage.Backend = strings.ToLower(v)
		}
		switch cfg.Storage.Backend {
		case config.StorageRedis:
			fmt.Print("Redis URL: ")
			cfg.Storage.RedisURL = readLine(reader)
		case config.StoragePostgres:
			fmt.Print("Postgres URL: ")
			cfg.Storage.DatabaseURL = readLine(reader)
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		fmt.Print("Creating configuration... ")
		if err := config.SaveLocalConfig(cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Println("✓")
	} else {
		fmt.Println("Configuration already exists ✓")
	}

	fmt.Println()
	fmt.Println("Payment Setup")
	fmt.Println("-------------")
	if cfg.Payment.PublicKey != "" {
		fmt.Println("Payment public key: already configured ✓")
	} else {
		fmt.Print("Enter payment public key (or press Enter to skip): ")
		if key := readLine(reader); key != "" {
			cfg.Payment.PublicKey = key
		}
	}

	if err := config.SaveSecrets(config.SecretsFrom(cfg)); err != nil {
		fmt.Printf("  ⚠ Failed to save secrets: %v\n", err)
	}

	fmt.Println()
	fmt.Print("Checking storefront API... ")
	if err := checkAPI(cfg.API.BaseURL); err != nil {
		fmt.Printf("⚠ %v\n", err)
	} else {
		fmt.Println("✓")
	}

	fmt.Println()
	fmt.Println("Setup Complete!")
	fmt.Println("===============")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. storefront start     # Start the daemon")
	fmt.Println("  2. storefront doctor    # Verify configuration")
	fmt.Println("  3. storefront login     # Log in")
	fmt.Println()
	fmt.Println("For editor integration, configure MCP with 'storefront mcp'.")

	return nil
}

func readLine(r *bufio.Reader) string {
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

// cmdDoctor checks connectivity of every configured dependency
func cmdDoctor() error {
	fmt.Println("Checking storefront setup...")

	allGood := true

	fmt.Print("Directory: ")
	dir, err := config.StorefrontDir()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		allGood = false
	} else if _, err := os.Stat(dir); os.IsNotExist(err) {
		fmt.Println("✗ not created (run 'storefront init')")
		allGood = false
	} else {
		fmt.Printf("✓ %s\n", dir)
	}

	fmt.Print("Config:    ")
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		fmt.Println("\nSome checks failed. Please fix the issues above.")
		return nil
	}
	fmt.Println("✓ loaded")

	fmt.Print("API:       ")
	if err := checkAPI(cfg.API.BaseURL); err != nil {
		fmt.Printf("✗ %v\n", err)
		allGood = false
	} else {
		fmt.Printf("✓ %s\n", cfg.API.BaseURL)
	}

	fmt.Printf("Storage:   ")
	if err := checkStorage(cfg, dir); err != nil {
		fmt.Printf("✗ %s: %v\n", cfg.Storage.Backend, err)
		allGood = false
	} else {
		fmt.Printf("✓ %s\n", cfg.Storage.Backend)
	}

	fmt.Print("Events:    ")
	if !cfg.Events.Enabled {
		fmt.Println("- disabled")
	} else if err := checkRabbitMQ(cfg.Events.RabbitMQURL); err != nil {
		fmt.Printf("✗ %v\n", err)
		allGood = false
	} else {
		fmt.Println("✓ broker reachable")
	}

	fmt.Print("Payment:   ")
	if cfg.Payment.PublicKey == "" {
		fmt.Println("✗ no public key (run 'storefront init')")
		allGood = false
	} else {
		fmt.Println("✓ configured")
	}

	fmt.Print("\nDaemon:    ")
	if isRunning() {
		fmt.Println("✓ running")
	} else {
		fmt.Println("✗ not running (run 'storefront start')")
	}

	fmt.Println()
	if allGood {
		fmt.Println("All checks passed! ✓")
	} else {
		fmt.Println("Some checks failed. Please fix the issues above.")
	}

	return nil
}

// cmdConfig shows current configuration
func cmdConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Println("Storefront Configuration")

	fmt.Println("\nDaemon:")
	fmt.Printf("  bind: %s\n", cfg.Addr())
	fmt.Printf("  log_level: %s\n", cfg.Daemon.LogLevel)
	fmt.Printf("  login_rate: %d/min\n", cfg.Daemon.LoginRate)

	fmt.Println("\nAPI:")
	fmt.Printf("  base_url: %s\n", cfg.API.BaseURL)
	fmt.Printf("  timeout: %ds retries=%d workers=%d\n", cfg.API.TimeoutSeconds, cfg.API.Retries, cfg.API.Workers)

	fmt.Println("\nStorage:")
	fmt.Printf("  backend: %s\n", cfg.Storage.Backend)
	switch cfg.Storage.Backend {
	case config.StorageFile, config.StorageSQLite:
		dir, _ := config.StorefrontDir()
		fmt.Printf("  path: %s\n", cfg.DataPath(dir))
	case config.StorageRedis:
		fmt.Printf("  redis: %s prefix=%q\n", mark(cfg.Storage.RedisURL != ""), cfg.Storage.Prefix)
	case config.StoragePostgres:
		fmt.Printf("  postgres: %s\n", mark(cfg.Storage.DatabaseURL != ""))
	}

	fmt.Println("\nEvents:")
	fmt.Printf("  enabled: %t buffer=%d\n", cfg.Events.Enabled, cfg.Events.Buffer)

	fmt.Println("\nPayment:")
	fmt.Printf("  checkout_url: %s\n", cfg.Payment.CheckoutURL)
	fmt.Printf("  public_key: %s\n", mark(cfg.Payment.PublicKey != ""))

	dir, _ := config.StorefrontDir()
	fmt.Printf("\nConfig path: %s/config.yaml\n", dir)

	return nil
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimRight(baseURL, "/") + "/products")
	if err != nil {
		return fmt.Errorf("not reachable at %s", baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}

func checkStorage(cfg *config.LocalConfig, dir string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	kv, err := app.OpenStorage(ctx, cfg, dir)
	if err != nil {
		return err
	}
	defer kv.Close()

	_, err = kv.Keys(ctx, "")
	return err
}

func checkRabbitMQ(url string) error {
	conn, err := queue.NewConnection(url)
	if err != nil {
		return fmt.Errorf("broker not reachable: %w", err)
	}
	return conn.Close()
}
