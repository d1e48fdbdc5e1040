package main

import (
	"log"

	"github.com/gromoveveryday/essay-grader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
