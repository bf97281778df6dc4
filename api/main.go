package main

import (
	"github.com/joho/godotenv"

	"github.com/atriumhq/atrium/api/cmd/atrium"
)

func main() {
	_ = godotenv.Load()
	atrium.Execute()
}
