package main

import (
	"os"

	"github.com/QQCPM/ChatChat/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
