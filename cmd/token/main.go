// Command token mints a bearer token signed with the server's JWT settings.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"qrattend/internal/auth"
	"qrattend/internal/config"
)

func main() {
	sub := flag.String("sub", "", "token subject (user id)")
	role := flag.String("role", auth.RoleStudent, "role claim: admin or student")
	ttl := flag.Duration("ttl", 0, "lifetime; defaults to ACCESS_TTL")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *role != auth.RoleAdmin && *role != auth.RoleStudent {
		log.Fatalf("unknown role %q", *role)
	}
	lifetime := cfg.AccessTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	tok, err := auth.Issue(*sub, *role, cfg.JWTIssuer, cfg.JWTSigningKey, lifetime)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Fprintln(os.Stdout, tok.Value)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.ExpiresAt.Format(time.RFC3339))
}
