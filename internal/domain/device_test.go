package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayNamePrecedence(t *testing.T) {
	d := Device{Address: "AA:BB:CC:DD:EE:FF"}
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", d.DisplayName())

	d.AdvertisedName = "Pixel 9"
	assert.Equal(t, "Pixel 9", d.DisplayName())

	d.FriendlyName = "my phone"
	assert.Equal(t, "my phone", d.DisplayName())
}
