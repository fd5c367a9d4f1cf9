package main

import (
	"os"

	"github.com/ledgerwatch/turbocrdt/cmd/crdtcli/commands"
)

func main() {
	os.Exit(commands.Execute())
}
