package main

import "github.com/oscroos/bjugstad-utleie-webapp/cmd"

func main() {
	cmd.Execute()
}
