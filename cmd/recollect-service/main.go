package main

import (
	"os"

	"github.com/recollect/recollect/recollectservice"
)

func main() {
	if err := recollectservice.Run(); err != nil {
		os.Exit(1)
	}
}
