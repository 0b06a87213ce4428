// Package main is the entry point for the Moktashif cybersecurity assistant.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/moktashif/cmd/moktashif/app"
)

func main() {
	app.NewApp().Run()
}
