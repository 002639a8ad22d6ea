package main

import (
	"github.com/SerAbin1/order-tracking-system/internal/app/api"
	"github.com/SerAbin1/order-tracking-system/internal/config"
)

func main() {
	config.MustInit("api")
	api.MustNewApp().Run()
}
