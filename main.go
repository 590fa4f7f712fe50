// Command wikietl streams a Wikipedia XML dump through extraction,
// transformation, identity resolution, and bulk loading into a relational
// store and a search index.
package main

import (
	"log"

	"wikidat.dev/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
