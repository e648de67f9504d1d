// Command token mints a bearer token for local testing of the study API.
//
//	go run ./cmd/token -user 42 -ttl 2h
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/studyassist/flashcard-hub/internal/infrastructure/auth"
)

func main() {
	userID := flag.Int64("user", 0, "user id to put in the sub claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if err := run(*userID, *ttl); err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(1)
	}
}

func run(userID int64, ttl time.Duration) error {
	if userID <= 0 {
		return errors.New("-user must be a positive id")
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read .env: %w", err)
	}

	verifier, err := auth.NewJWTVerifier(auth.Config{Secret: os.Getenv("JWT_SECRET")})
	if err != nil {
		return err
	}

	token, err := verifier.Sign(userID, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
