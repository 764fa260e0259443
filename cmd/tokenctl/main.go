// Command tokenctl mints operator tokens and random keys for the HTTP API.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/mit45/AutoSocial-Ai/pkg/utils"
)

type tokenCommand struct {
	Operator string        `long:"operator" short:"o" default:"operator" description:"Operator name carried in the token"`
	TTL      time.Duration `long:"ttl" default:"720h" description:"Token lifetime"`
	Secret   string        `long:"secret-key" env:"SECRET_KEY" required:"true" description:"32 byte signing key"`
}

func (c *tokenCommand) Execute(args []string) error {
	token, err := utils.GenerateToken(c.Secret, c.Operator, c.TTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

type keyCommand struct {
	Bytes int `long:"bytes" short:"n" default:"24" description:"Random bytes before encoding"`
}

func (c *keyCommand) Execute(args []string) error {
	if c.Bytes <= 0 {
		return fmt.Errorf("--bytes must be positive")
	}
	key, err := utils.GenerateRandomKey(c.Bytes)
	if err != nil {
		return err
	}
	fmt.Println(key)
	return nil
}

func main() {
	_ = godotenv.Load()

	parser := flags.NewNamedParser("tokenctl", flags.Default)
	if _, err := parser.AddCommand("token", "Mint an operator JWT", "Signs an operator token with SECRET_KEY.", &tokenCommand{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if _, err := parser.AddCommand("key", "Generate a random API key", "Prints a URL-safe random key for API_ACCESS_KEY.", &keyCommand{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if _, err := parser.Parse(); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
