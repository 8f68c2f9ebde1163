package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Run("set variable wins over default", func(t *testing.T) {
		t.Setenv("TEST_EXPAND_HOST", "db.internal")
		assert.Equal(t, "host: db.internal", expandEnv("host: ${TEST_EXPAND_HOST:localhost}"))
	})

	t.Run("default used when unset", func(t *testing.T) {
		assert.Equal(t, "host: localhost", expandEnv("host: ${TEST_EXPAND_MISSING:localhost}"))
	})

	t.Run("empty default", func(t *testing.T) {
		assert.Equal(t, "password: ", expandEnv("password: ${TEST_EXPAND_PASSWORD:}"))
	})

	t.Run("no default keeps placeholder", func(t *testing.T) {
		assert.Equal(t, "key: ${TEST_EXPAND_NODEF}", expandEnv("key: ${TEST_EXPAND_NODEF}"))
	})

	t.Run("set variable with empty value", func(t *testing.T) {
		t.Setenv("TEST_EXPAND_EMPTY", "")
		assert.Equal(t, "v: ", expandEnv("v: ${TEST_EXPAND_EMPTY:fallback}"))
	})

	t.Run("multiple placeholders", func(t *testing.T) {
		t.Setenv("TEST_EXPAND_A", "1")
		got := expandEnv("${TEST_EXPAND_A:0}-${TEST_EXPAND_B:2}")
		assert.Equal(t, "1-2", got)
	})
}
