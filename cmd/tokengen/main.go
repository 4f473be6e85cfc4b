// Package main provides a CLI tool for minting test API tokens.
// These tokens use the dev signing key and will NOT work in production.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"verigate/internal/platform/token"
	id "verigate/pkg/domain"
	"verigate/pkg/secrets"
)

const (
	// Dev signing key - matches config.go when API_TOKEN_SIGNING_KEY is not set
	devSigningKey = "dev-secret-key-change-in-production"

	// Default admin token for local/dev environments
	devAdminToken = "dev-admin-token-change-in-production"

	defaultIssuer   = "verigate"
	defaultTokenTTL = 24 * time.Hour
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	ExpiresIn string            `json:"expires_in,omitempty"`
	Claims    map[string]any    `json:"claims,omitempty"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	apiCmd := flag.NewFlagSet("api", flag.ExitOnError)
	adminCmd := flag.NewFlagSet("admin", flag.ExitOnError)

	apiOrgID := apiCmd.String("org-id", "", "Organization ID (UUID). Generated if empty.")
	apiSigningKey := apiCmd.String("signing-key", devSigningKey, "Signing key matching the server's API_TOKEN_SIGNING_KEY")
	apiTTL := apiCmd.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	apiJSON := apiCmd.Bool("json", false, "Output as JSON")

	adminToken := adminCmd.String("token", devAdminToken, "Operator token to hash for ADMIN_TOKEN_HASH")
	adminJSON := adminCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "api":
		apiCmd.Parse(os.Args[2:])
		generateAPIToken(*apiOrgID, *apiSigningKey, *apiTTL, *apiJSON)
	case "admin":
		adminCmd.Parse(os.Args[2:])
		showAdminToken(*adminToken, *adminJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Generate test tokens for the verigate API

WARNING: These tokens use the dev signing key and will NOT work in production.
         Only use for local development and testing.

Usage:
  tokengen <command> [flags]

Commands:
  api       Generate an org-scoped relying-party API token (JWT)
  admin     Show the admin token and its bcrypt hash for ADMIN_TOKEN_HASH

Examples:
  # Generate an API token for a fresh organization
  tokengen api

  # Generate an API token for a specific organization
  tokengen api -org-id "550e8400-e29b-41d4-a716-446655440000"

  # Generate a short-lived token
  tokengen api -ttl 1h

  # Get the admin token for the X-Admin-Token header
  tokengen admin

  # Output as JSON
  tokengen api -json

Use "tokengen <command> -h" for more information about a command.`)
}

func generateAPIToken(orgIDInput, signingKey string, ttl time.Duration, jsonOutput bool) {
	orgUUID := uuid.New()
	if orgIDInput != "" {
		parsed, err := uuid.Parse(orgIDInput)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid org-id UUID: %s\n", orgIDInput)
			os.Exit(1)
		}
		orgUUID = parsed
	}

	svc := token.NewService(signingKey, defaultIssuer, ttl)
	apiToken, err := svc.GenerateToken(id.OrgID(orgUUID))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(tokenOutput{
			Token:     apiToken,
			Type:      "api_token",
			ExpiresIn: ttl.String(),
			Claims: map[string]any{
				"org_id": orgUUID.String(),
			},
			Usage: map[string]string{
				"header": "Authorization: Bearer <token>",
			},
		})
		return
	}

	fmt.Println("API Token (JWT)")
	fmt.Println("===============")
	fmt.Printf("Org ID:     %s\n", orgUUID)
	fmt.Printf("Expires In: %s\n", ttl)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(apiToken)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/sessions/...")
}

func showAdminToken(adminToken string, jsonOutput bool) {
	hash, err := secrets.Hash(adminToken)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error hashing token: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(tokenOutput{
			Token: adminToken,
			Type:  "admin_token",
			Usage: map[string]string{
				"header": "X-Admin-Token: " + adminToken,
				"hash":   hash,
				"note":   "Set ADMIN_TOKEN_HASH to the hash on the server",
			},
		})
		return
	}

	fmt.Println("Admin API Token")
	fmt.Println("===============")
	fmt.Printf("Token: %s\n", adminToken)
	fmt.Printf("Hash:  %s\n", hash)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"X-Admin-Token: " + adminToken + "\" http://localhost:8080/admin/...")
	fmt.Println("  export ADMIN_TOKEN_HASH='" + hash + "'")
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
