package notifierhost

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUpdatedProperties(t *testing.T) {
	t.Run("Valid argument", func(t *testing.T) {
		data := [][]any{
			{int32(3), map[string]dbus.Variant{
				"label":   dbus.MakeVariant("Reconnect"),
				"enabled": dbus.MakeVariant(true),
			}},
			{int32(7), map[string]dbus.Variant{
				"visible": dbus.MakeVariant(false),
			}},
		}

		updated, err := getUpdatedProperties(data)
		require.NoError(t, err)
		require.Len(t, updated, 2)

		assert.Equal(t, int32(3), updated[0].NodeID)
		assert.Equal(t, "Reconnect", updated[0].Properties["label"])
		assert.Equal(t, true, updated[0].Properties["enabled"])

		assert.Equal(t, int32(7), updated[1].NodeID)
		assert.Equal(t, false, updated[1].Properties["visible"])
	})

	t.Run("Malformed entries are skipped", func(t *testing.T) {
		data := [][]any{
			{int32(1)},
			{"1", map[string]dbus.Variant{}},
			{int32(2), "props"},
			{int32(3), map[string]dbus.Variant{}},
		}

		updated, err := getUpdatedProperties(data)
		require.NoError(t, err)
		require.Len(t, updated, 1)
		assert.Equal(t, int32(3), updated[0].NodeID)
	})

	t.Run("Invalid argument format", func(t *testing.T) {
		_, err := getUpdatedProperties("nope")
		assert.Error(t, err)
	})
}

func TestGetRemovedProperties(t *testing.T) {
	t.Run("Valid argument", func(t *testing.T) {
		data := [][]any{
			{int32(3), []string{"icon-name", "label"}},
		}

		removed, err := getRemovedProperties(data)
		require.NoError(t, err)
		require.Len(t, removed, 1)
		assert.Equal(t, int32(3), removed[0].NodeID)
		assert.Equal(t, []string{"icon-name", "label"}, removed[0].Properties)
	})

	t.Run("Malformed entries are skipped", func(t *testing.T) {
		data := [][]any{
			{int32(1), map[string]dbus.Variant{}},
			{int32(2), []string{"label"}},
		}

		removed, err := getRemovedProperties(data)
		require.NoError(t, err)
		require.Len(t, removed, 1)
		assert.Equal(t, int32(2), removed[0].NodeID)
	})

	t.Run("Invalid argument format", func(t *testing.T) {
		_, err := getRemovedProperties(42)
		assert.Error(t, err)
	})
}
