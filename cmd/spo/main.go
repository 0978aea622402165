package main

import (
	"os"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
