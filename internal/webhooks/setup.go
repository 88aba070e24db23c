package webhooks

import "github.com/cuencahub/hub-backend/internal/db"

type Settings struct {
	// GatewaySecret signs gateway deliveries. Empty disables the endpoint.
	GatewaySecret string
}

var settings Settings

func Init(s Settings) {
	settings = s
	db.MustInit("webhooks", &Delivery{})
}
