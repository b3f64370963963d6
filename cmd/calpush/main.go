package main

import (
	"log"

	"github.com/akrasniqi/calpush/internal/cli"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cli.Execute()
}
