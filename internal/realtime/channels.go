// Package realtime pushes live updates to WebSocket clients. A Hub tracks
// which local connections belong to which named channel and fans out
// payloads that arrive through a Broker, so every instance sharing the
// broker delivers to its own members.
package realtime

import "strconv"

// Fixed channel names.
const (
	ChannelAnimalUpdates        = "animal_updates"
	ChannelGeneralNotifications = "general_notifications"
	ChannelAdminLogs            = "admin_logs"
)

// AnimalChannel carries changes to one animal for clients that subscribed
// to it explicitly.
func AnimalChannel(animalID int64) string {
	return "animal_" + strconv.FormatInt(animalID, 10)
}

// UserChannel carries notifications addressed to one user.
func UserChannel(userID int64) string {
	return "user_" + strconv.FormatInt(userID, 10)
}
