package utils

import "os"

// GetHostname returns the system hostname, falling back to a generic name
func GetHostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "startpage-device"
	}
	return name
}
