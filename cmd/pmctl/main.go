// Command pmctl runs maintenance jobs against a photomarket deployment.
package main

func main() {
	Execute()
}
