package main

import (
	"github.com/atendai/atendai/cmd/atendai/cmd"
)

func main() {
	cmd.Execute()
}
