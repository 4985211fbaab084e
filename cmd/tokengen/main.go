// Package main provides a CLI tool for minting bearer tokens for the pool API.
// Tokens are signed with the dev key unless -key is given and must not be
// used against a production deployment.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	jwttoken "mutualpool/internal/jwt_token"
	id "mutualpool/pkg/domain"
)

const (
	// Dev signing key, matches config.FromEnv when JWT_SIGNING_KEY is not set
	devSigningKey = "dev-secret-key-change-in-production"

	defaultIssuer   = "mutualpool"
	defaultAudience = "mutualpool-api"
	defaultTokenTTL = 15 * time.Minute
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Account   string            `json:"account"`
	Roles     []string          `json:"roles,omitempty"`
	ExpiresIn string            `json:"expires_in"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	accountCmd := flag.NewFlagSet("account", flag.ExitOnError)
	batchCmd := flag.NewFlagSet("batch", flag.ExitOnError)

	account := accountCmd.String("account", "", "Account the token is issued to (required)")
	roles := accountCmd.String("roles", "", "Comma-separated informational roles")
	ttl := accountCmd.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	key := accountCmd.String("key", "", "Signing key. Uses the dev key if empty.")
	jsonOut := accountCmd.Bool("json", false, "Output as JSON")

	prefix := batchCmd.String("prefix", "juror-", "Account prefix")
	count := batchCmd.Int("count", 21, "Number of accounts")
	batchTTL := batchCmd.Duration("ttl", time.Hour, "Token time-to-live")
	batchKey := batchCmd.String("key", "", "Signing key. Uses the dev key if empty.")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "account":
		_ = accountCmd.Parse(os.Args[2:])
		generateAccountToken(*account, parseList(*roles), *ttl, *key, *jsonOut)
	case "batch":
		_ = batchCmd.Parse(os.Args[2:])
		generateBatch(*prefix, *count, *batchTTL, *batchKey)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Mint bearer tokens for the mutual pool API

WARNING: Without -key, tokens are signed with the dev key.

Usage:
  tokengen <command> [flags]

Commands:
  account   Mint a token for one account
  batch     Mint tokens for a numbered set of accounts (one per line)

Examples:
  # Token for the administrator configured via POOL_ADMIN
  tokengen account -account root

  # Token for a claimant, valid for one hour, as JSON
  tokengen account -account alice -ttl 1h -json

  # Tokens for 21 panelists juror-00..juror-20
  tokengen batch -count 21

Use "tokengen <command> -h" for more information about a command.`)
}

func service(key string, ttl time.Duration) *jwttoken.JWTService {
	if key == "" {
		key = devSigningKey
	}
	return jwttoken.NewJWTService(key, defaultIssuer, defaultAudience, ttl)
}

func generateAccountToken(raw string, roles []string, ttl time.Duration, key string, jsonOutput bool) {
	account, err := id.ParseAccountID(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid account: %v\n", err)
		os.Exit(1)
	}
	token, err := service(key, ttl).GenerateAccessToken(account, roles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(tokenOutput{
			Token:     token,
			Account:   account.String(),
			Roles:     roles,
			ExpiresIn: ttl.String(),
			Usage: map[string]string{
				"header": "Authorization: Bearer <token>",
			},
		})
		return
	}
	fmt.Println("Access Token (JWT)")
	fmt.Println("==================")
	fmt.Printf("Account:    %s\n", account)
	if len(roles) > 0 {
		fmt.Printf("Roles:      %v\n", roles)
	}
	fmt.Printf("Expires In: %s\n", ttl)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/pool")
}

func generateBatch(prefix string, count int, ttl time.Duration, key string) {
	if count <= 0 {
		fmt.Fprintln(os.Stderr, "count must be positive")
		os.Exit(1)
	}
	svc := service(key, ttl)
	for i := range count {
		account := id.AccountID(fmt.Sprintf("%s%02d", prefix, i))
		token, err := svc.GenerateAccessToken(account)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating token for %s: %v\n", account, err)
			os.Exit(1)
		}
		fmt.Printf("%s %s\n", account, token)
	}
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, s := range parts {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
