// Command hashpass reads a password from stdin and prints the bcrypt hash expected in AUTH_ADMIN_PASSWORD_HASH.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/ticket-bot/internal/auth"
)

func main() {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		log.Fatalf("failed to read password: %v", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		log.Fatal("password must not be empty")
	}

	hash, err := auth.HashPassword(password, bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}
	fmt.Println(hash)
}
