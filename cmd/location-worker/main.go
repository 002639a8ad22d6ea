package main

import (
	"github.com/SerAbin1/order-tracking-system/internal/app/locationworker"
	"github.com/SerAbin1/order-tracking-system/internal/config"
)

func main() {
	config.MustInit("location-worker")
	locationworker.MustNewApp().Run()
}
