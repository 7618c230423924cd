// Command pyrunner runs Python source in an embedded WebAssembly
// interpreter, installing the packages it imports and collecting the files
// it saves.
package main

func main() {
	Execute()
}
