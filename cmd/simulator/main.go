package main

import (
	"github.com/SerAbin1/order-tracking-system/internal/app/simulator"
	"github.com/SerAbin1/order-tracking-system/internal/config"
)

func main() {
	config.MustInit("simulator")
	simulator.MustNewApp().Run()
}
