package instance

import "os"

// ID names the running process in logs and lock ownership. It prefers an
// explicit RENTPAY_INSTANCE_ID, then the platform dyno name, then the host.
func ID() string {
	for _, key := range []string{"RENTPAY_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
