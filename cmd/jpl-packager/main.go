// Command jpl-packager bundles a compiled Jamcast plugin into a .jpl archive.
package main

import "github.com/oshokin/jpl-packager/cmd/jpl-packager/cmd"

func main() {
	cmd.Execute()
}
