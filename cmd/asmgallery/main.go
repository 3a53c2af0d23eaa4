// Command asmgallery compiles a tree of C and C++ examples on Compiler
// Explorer under several optimization scenarios and archives the assembly
// with a narrative explanation of each listing.
package main

import (
	"os"
)

func main() {
	os.Exit(New(os.Stdout, os.Stderr).Run(os.Args))
}
