package main

import "github.com/vedsharma/apitester/cmd"

func main() {
	cmd.Execute()
}
