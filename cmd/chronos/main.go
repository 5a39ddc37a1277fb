package main

import (
	"fmt"
	"os"

	"github.com/Swind/go-chronos/internal/cmd"
)

func main() {
	if err := cmd.NewApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
