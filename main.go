package main

import "builddesk/internal/app"

func main() {
	app.Main()
}
