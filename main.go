package main

import "github.com/chartfold/chartfold/internal/cmd"

func main() {
	cmd.Execute()
}
