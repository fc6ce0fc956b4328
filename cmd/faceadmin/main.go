// Command faceadmin registers and authenticates administrators by face.
package main

func main() {
	Execute()
}
