// Command hashpw prints the argon2id hash of a password for auth.users in
// config.yaml. The password is read from the first argument or, without one,
// from the first line of stdin.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/KevinKickass/airmedia-bridge/internal/auth"
	"github.com/spf13/pflag"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: hashpw [password]")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	password, err := readPassword(pflag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "hashpw: %v\n", err)
		os.Exit(1)
	}

	hash, err := auth.NewPasswordHasher().HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hashpw: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}

func readPassword(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("reading password from stdin: %w", err)
		}
		return "", fmt.Errorf("empty password")
	}
	return line, nil
}
