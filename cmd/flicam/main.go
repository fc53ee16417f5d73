/*
Copyright © 2026 OpenAstro
*/
package main

import "github.com/openastro/go-fli/cmd"

func main() {
	cmd.Execute()
}
