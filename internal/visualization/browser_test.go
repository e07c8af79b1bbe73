package visualization

import (
	"runtime"
	"testing"
)

func TestOpenBrowser_SupportedPlatform(t *testing.T) {
	switch runtime.GOOS {
	case "linux", "darwin", "windows":
		// Supported platforms only.
	default:
		t.Skipf("skipping on unsupported platform: %s", runtime.GOOS)
	}
}
