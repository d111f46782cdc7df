package main

import (
	"os"

	"github.com/easeaico/mirror-clarity/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
