package hiveapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeMarkdownV2(t *testing.T) {
	assert.Equal(t, "0xabc\\.def", EscapeMarkdownV2("0xabc.def"))
	assert.Equal(t, "a\\_b\\*c", EscapeMarkdownV2("a_b*c"))
}

func TestNotificationChannel(t *testing.T) {
	assert.Equal(t, "notification_ch@0xabc", NotificationChannel("0xABC"))
}

func TestMatrixFullAlert(t *testing.T) {
	wallet := testWallet(7)
	msg := MatrixFullAlert(wallet, 3)
	assert.Contains(t, msg, "Matrix full")
	assert.Contains(t, msg, "bscscan.com/address/"+wallet)
	assert.Contains(t, msg, "Level: 3")
}
