package main

import (
	"github.com/SerAbin1/order-tracking-system/internal/app/orderworker"
	"github.com/SerAbin1/order-tracking-system/internal/config"
)

func main() {
	config.MustInit("order-worker")
	orderworker.MustNewApp().Run()
}
