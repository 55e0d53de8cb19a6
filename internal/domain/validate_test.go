package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStruct(t *testing.T) {
	t.Run("valid gps", func(t *testing.T) {
		gps := GPSMetadata{Latitude: 12.97, Longitude: 77.59, Accuracy: 5, Timestamp: time.Now()}
		assert.NoError(t, ValidateStruct("test", gps))
	})

	t.Run("field errors use json names", func(t *testing.T) {
		gps := GPSMetadata{Latitude: 91, Longitude: -181, Accuracy: -1}
		err := ValidateStruct("test", gps)
		require.Error(t, err)

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "must be at most 90", ve.Fields["latitude"])
		assert.Equal(t, "must be at least -180", ve.Fields["longitude"])
		assert.Equal(t, "must be at least 0", ve.Fields["accuracy"])
		assert.Equal(t, "is required", ve.Fields["timestamp"])
		assert.Equal(t, EINVALID, ErrorCode(err))
	})

	t.Run("nested iot data", func(t *testing.T) {
		battery := 120.0
		iot := IoTSensorData{DeviceID: "dev-1", VibrationStatus: "SHAKING", BatteryLevel: &battery}
		err := ValidateStruct("test", iot)

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields, "vibrationStatus")
		assert.Contains(t, ve.Fields, "batteryLevel")
	})
}
