package main

import "auction-bidding-api/app"

func main() {
	app.Run()
}
