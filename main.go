package main

import (
	"os"

	_ "github.com/ekaya-inc/ekaya-datagen/pkg/adapters/sink/all"
	"github.com/ekaya-inc/ekaya-datagen/pkg/cli"
	_ "github.com/ekaya-inc/ekaya-datagen/pkg/generators/all"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := cli.Execute(Version); err != nil {
		os.Exit(1)
	}
}
