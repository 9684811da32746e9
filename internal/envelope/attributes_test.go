package envelope

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAttrs() TransportAttributes {
	return TransportAttributes{
		EventType:     "order_proposal",
		SchemaVersion: "1",
		Producer:      "scalper-agent",
		Environment:   "prod",
	}
}

func TestTransportAttributesValidate(t *testing.T) {
	require.NoError(t, validAttrs().Validate())

	a := validAttrs()
	a.EventType = "  "
	assert.Error(t, a.Validate())

	a = validAttrs()
	a.Environment = strings.Repeat("x", maxAttributeLength+1)
	assert.Error(t, a.Validate())
}

func TestTransportAttributesToMap(t *testing.T) {
	m := validAttrs().ToMap()
	assert.Equal(t, "order_proposal", m["event_type"])
	assert.Equal(t, "prod", m["environment"])
}
