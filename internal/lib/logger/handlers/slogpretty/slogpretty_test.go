package slogpretty_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/linemk/shop-bot/internal/lib/logger/handlers/slogpretty"
)

func TestPrettyHandler(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	opts := slogpretty.PrettyHandlerOptions{SlogOpts: &slog.HandlerOptions{Level: slog.LevelInfo}}
	log := slog.New(opts.NewPrettyHandler(&buf)).With(slog.String("op", "test.op"))

	log.Debug("hidden")
	log.Error("order failed", slog.Any("error", errors.New("boom")), slog.Int64("orderID", 7))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "ERROR:")
	assert.Contains(t, out, "order failed")
	assert.Contains(t, out, `"error": "boom"`)
	assert.Contains(t, out, `"op": "test.op"`)
	assert.Contains(t, out, `"orderID": 7`)
}
