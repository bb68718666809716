package configbinder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/congresso/pkg/batch/support/util/configbinder"
)

type storeProps struct {
	Type    string `yaml:"type"`
	Port    int    `yaml:"port"`
	Enabled bool   `yaml:"enabled"`
}

func TestBindPropertiesWeaklyTyped(t *testing.T) {
	var p storeProps
	err := configbinder.BindProperties(map[string]interface{}{
		"type":    "postgres",
		"port":    "5432",
		"enabled": "true",
	}, &p)

	require.NoError(t, err)
	assert.Equal(t, storeProps{Type: "postgres", Port: 5432, Enabled: true}, p)
}

func TestBindPropertiesRejectsBadValues(t *testing.T) {
	var p storeProps
	err := configbinder.BindProperties(map[string]interface{}{"port": "not-a-number"}, &p)
	assert.Error(t, err)
}

func TestBindStringPropertiesEmptyIsNoop(t *testing.T) {
	p := storeProps{Type: "sqlite"}
	require.NoError(t, configbinder.BindStringProperties(nil, &p))
	assert.Equal(t, "sqlite", p.Type)
}

func TestAsMap(t *testing.T) {
	m, ok := configbinder.AsMap(map[interface{}]interface{}{"type": "local"})
	require.True(t, ok)
	assert.Equal(t, "local", m["type"])

	_, ok = configbinder.AsMap([]interface{}{"x"})
	assert.False(t, ok)
}
