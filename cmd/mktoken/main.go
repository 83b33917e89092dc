package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/internal/apitoken"
)

// mktoken mints a bearer token for the history API. The secret must match
// the apiTokenSecret the server was started with.
func main() {
	secret := flag.String("secret", os.Getenv("HISTORY_API_TOKEN_SECRET"), "shared API token secret")
	subject := flag.String("subject", "studio-ui", "client subject for the token")
	ttl := flag.Duration("ttl", apitoken.DefaultTokenTTL, "token lifetime")
	flag.Parse()

	signer, err := apitoken.NewSigner(apitoken.SignerOptions{Secret: *secret, TTL: *ttl})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mktoken: %v\n", err)
		os.Exit(1)
	}
	token, err := signer.Sign(*subject)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mktoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
