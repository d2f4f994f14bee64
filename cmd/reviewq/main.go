package main

import (
	"os"

	"github.com/review-agent/backend/internal/cli"
)

func main() {
	os.Exit(int(cli.Run()))
}
