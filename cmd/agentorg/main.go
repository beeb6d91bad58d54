// Command agentorg runs, validates and scaffolds agent organizations.
package main

func main() {
	Execute()
}
