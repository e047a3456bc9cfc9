package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/stemsi/exstem-gateway/internal/service"
	"golang.org/x/term"
)

// issue-token signs a student token for local testing against the gateway
// and mock upstream.
func main() {
	studentID := flag.Int("student", 0, "student ID")
	classID := flag.Int("class", 0, "class ID")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	reader := bufio.NewReader(os.Stdin)

	fmt.Fprintln(os.Stderr, "=== Issue Student Token ===")

	// Student ID
	if *studentID <= 0 {
		fmt.Fprint(os.Stderr, "Enter Student ID: ")
		raw, _ := reader.ReadString('\n')
		id, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || id <= 0 {
			fmt.Fprintln(os.Stderr, "Error: Student ID must be a positive number")
			os.Exit(1)
		}
		*studentID = id
	}

	// Secret
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprint(os.Stderr, "Enter JWT secret: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error reading secret")
			os.Exit(1)
		}
		secret = string(raw)
	}
	if secret == "" {
		fmt.Fprintln(os.Stderr, "Error: secret is required")
		os.Exit(1)
	}

	token, err := service.NewAuthService(secret, service.WithIssuer(os.Getenv("JWT_ISSUER"))).IssueStudentToken(*studentID, *classID, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Token alone on stdout so it can be captured by scripts.
	fmt.Println(token)
}
