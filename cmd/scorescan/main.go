// scorescan recognizes guitar score images (staff, tab, staff+tab or
// jianpu notation) and prints the event stream as JSON.
package main

func main() {
	Execute()
}
